// Package ledgerhttp exposes ledger generation over HTTP for operators and resolvers.
package ledgerhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/odyssey-erp/chargeledger/internal/fx"
	"github.com/odyssey-erp/chargeledger/internal/ledger"
	"github.com/odyssey-erp/chargeledger/internal/ledger/engine"
	"github.com/odyssey-erp/chargeledger/internal/platform/httpx"
)

// LedgerService is the engine surface used by the handler.
type LedgerService interface {
	Generate(ctx context.Context, chargeID uuid.UUID, opts engine.Options) (engine.Result, error)
	Backfill(ctx context.Context, ownerID *uuid.UUID, limit int) (engine.BackfillSummary, error)
}

// Invalidator drops a cache of collaborator lookups (exchange rates, tax categories).
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Handler serves ledger endpoints.
type Handler struct {
	service LedgerService
	caches  []Invalidator
	logger  *slog.Logger
}

// NewHandler constructs Handler.
func NewHandler(service LedgerService, logger *slog.Logger, caches ...Invalidator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, caches: caches, logger: logger.With(slog.String("component", "ledger.http"))}
}

type generateRequest struct {
	Insert bool `json:"insert"`
}

type backfillRequest struct {
	OwnerID *uuid.UUID `json:"owner_id"`
	Limit   int        `json:"limit" validate:"omitempty,min=1,max=1000"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	chargeID, err := uuid.Parse(chi.URLParam(r, "chargeID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid charge id", httpx.ErrValidation))
		return
	}
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Generate(r.Context(), chargeID, engine.Options{InsertLedgerRecordsIfNotExists: req.Insert})
	if err != nil {
		if ce, ok := ledger.AsCommonError(err); ok {
			httpx.JSON(w, http.StatusUnprocessableEntity, ce)
			return
		}
		h.respondError(r, w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleBackfill(w http.ResponseWriter, r *http.Request) {
	req := backfillRequest{Limit: 100}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.Backfill(r.Context(), req.OwnerID, req.Limit)
	if err != nil {
		h.respondError(r, w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleInvalidateCaches(w http.ResponseWriter, r *http.Request) {
	if len(h.caches) == 0 {
		httpx.RespondError(w, fmt.Errorf("%w: no caches configured", httpx.ErrUnavailable))
		return
	}
	for _, cache := range h.caches {
		if err := cache.Invalidate(r.Context()); err != nil {
			h.respondError(r, w, err)
			return
		}
	}
	h.logger.InfoContext(r.Context(), "caches invalidated", slog.Int("caches", len(h.caches)))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(r *http.Request, w http.ResponseWriter, err error) {
	var missing *fx.MissingRateError
	switch {
	case errors.Is(err, ledger.ErrChargeNotFound):
		err = fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	case errors.Is(err, ledger.ErrUnsupportedChargeType), errors.Is(err, ledger.ErrEntryUnbalanced), errors.As(err, &missing):
		err = fmt.Errorf("%w: %v", httpx.ErrUnprocessable, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		err = fmt.Errorf("%w: exchange rate source", httpx.ErrUnavailable)
	default:
		h.logger.ErrorContext(r.Context(), "ledger request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
