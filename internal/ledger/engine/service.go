// Package engine dispatches charges to their ledger generator and persists balanced results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	jobmetrics "github.com/odyssey-erp/chargeledger/internal/jobs"
	"github.com/odyssey-erp/chargeledger/internal/ledger"
	"github.com/odyssey-erp/chargeledger/internal/ledger/generators"
)

// ChargeSource loads charges.
type ChargeSource interface {
	ChargeByID(ctx context.Context, id uuid.UUID) (ledger.Charge, error)
	ChargesWithoutLedger(ctx context.Context, ownerID *uuid.UUID, limit int) ([]uuid.UUID, error)
}

// Dispatcher picks the generator for a charge type.
type Dispatcher interface {
	For(t ledger.ChargeType) (generators.Generator, error)
}

// RecordWriter persists the first generated ledger of a charge.
type RecordWriter interface {
	StoreInitialGeneratedRecords(ctx context.Context, chargeID uuid.UUID, entries []ledger.LedgerEntry) (bool, error)
}

// Options tunes a single generation.
type Options struct {
	InsertLedgerRecordsIfNotExists bool
}

// Result is a generated ledger plus whether it was written.
type Result struct {
	Ledger ledger.GeneratedLedger `json:"ledger"`
	Stored bool                   `json:"stored"`
}

// BackfillSummary reports one sweep over charges without ledger records.
type BackfillSummary struct {
	Scanned int `json:"scanned"`
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Service is the entry point for ledger generation.
type Service struct {
	charges    ChargeSource
	dispatcher Dispatcher
	writer     RecordWriter
	metrics    *jobmetrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs Service. writer may be nil for read-only callers.
func NewService(charges ChargeSource, dispatcher Dispatcher, writer RecordWriter, metrics *jobmetrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		charges:    charges,
		dispatcher: dispatcher,
		writer:     writer,
		metrics:    metrics,
		logger:     logger.With(slog.String("component", "ledger.engine")),
		now:        time.Now,
	}
}

// Generate builds the ledger of a charge. With InsertLedgerRecordsIfNotExists the records are
// stored when the batch balances and no lookup misses were collected.
func (s *Service) Generate(ctx context.Context, chargeID uuid.UUID, opts Options) (Result, error) {
	charge, err := s.charges.ChargeByID(ctx, chargeID)
	if err != nil {
		s.metrics.ObserveGeneration("", jobmetrics.OutcomeFailure, 0, 0)
		return Result{}, err
	}
	return s.GenerateCharge(ctx, charge, opts)
}

// GenerateCharge is Generate for an already loaded charge.
func (s *Service) GenerateCharge(ctx context.Context, charge ledger.Charge, opts Options) (Result, error) {
	start := s.now()
	chargeType := string(charge.Type)
	logger := s.logger.With(slog.String("charge_id", charge.ID.String()), slog.String("charge_type", chargeType))

	gen, err := s.dispatcher.For(charge.Type)
	if err != nil {
		s.metrics.ObserveGeneration(chargeType, jobmetrics.OutcomeFailure, 0, 0)
		return Result{}, err
	}
	out, err := gen.Generate(ctx, charge)
	if err != nil {
		if ce, ok := ledger.AsCommonError(err); ok {
			logger.InfoContext(ctx, "ledger generation rejected", slog.String("message", ce.Message))
			s.metrics.ObserveGeneration(chargeType, jobmetrics.OutcomeCommonError, 0, 0)
			return Result{}, ce
		}
		logger.ErrorContext(ctx, "ledger generation failed", slog.Any("error", err))
		s.metrics.ObserveGeneration(chargeType, jobmetrics.OutcomeFailure, 0, 0)
		return Result{}, fmt.Errorf("engine: generate %s: %w", charge.ID, err)
	}
	for _, entry := range out.Records {
		if err := entry.Validate(); err != nil {
			s.metrics.ObserveGeneration(chargeType, jobmetrics.OutcomeFailure, len(out.Records), out.Balance.Residual)
			return Result{}, fmt.Errorf("engine: generate %s: %w", charge.ID, err)
		}
	}

	result := Result{Ledger: out}
	outcome := jobmetrics.OutcomeGenerated
	switch {
	case !out.Balance.IsBalanced:
		outcome = jobmetrics.OutcomeUnbalanced
	case len(out.Errors) > 0:
		outcome = jobmetrics.OutcomePartial
	case opts.InsertLedgerRecordsIfNotExists && s.writer != nil:
		stored, err := s.writer.StoreInitialGeneratedRecords(ctx, charge.ID, out.Records)
		if err != nil {
			s.metrics.ObserveGeneration(chargeType, jobmetrics.OutcomeFailure, len(out.Records), out.Balance.Residual)
			return Result{}, err
		}
		result.Stored = stored
		if stored {
			outcome = jobmetrics.OutcomeStored
		}
	}
	if opts.InsertLedgerRecordsIfNotExists && outcome != jobmetrics.OutcomeStored && outcome != jobmetrics.OutcomeGenerated {
		logger.WarnContext(ctx, "ledger not stored",
			slog.String("outcome", outcome),
			slog.Float64("residual", out.Balance.Residual),
			slog.Int("unbalanced_entities", len(out.Balance.UnbalancedEntities)),
			slog.Int("errors", len(out.Errors)))
	}
	s.metrics.ObserveGeneration(chargeType, outcome, len(out.Records), out.Balance.Residual)
	logger.DebugContext(ctx, "ledger generated",
		slog.String("outcome", outcome),
		slog.Int("records", len(out.Records)),
		slog.Bool("balanced", out.Balance.IsBalanced),
		slog.Duration("duration", s.now().Sub(start)))
	return result, nil
}

// Backfill generates and stores ledgers for up to limit charges that have none. Failures of
// single charges are counted and logged; only context cancellation and listing errors abort.
func (s *Service) Backfill(ctx context.Context, ownerID *uuid.UUID, limit int) (BackfillSummary, error) {
	var summary BackfillSummary
	if limit <= 0 {
		return summary, errors.New("engine: backfill limit must be positive")
	}
	ids, err := s.charges.ChargesWithoutLedger(ctx, ownerID, limit)
	if err != nil {
		return summary, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Scanned++
		res, err := s.Generate(ctx, id, Options{InsertLedgerRecordsIfNotExists: true})
		switch {
		case err == nil && res.Stored:
			summary.Stored++
		case err == nil:
			summary.Skipped++
		default:
			if _, ok := ledger.AsCommonError(err); ok {
				summary.Skipped++
				continue
			}
			summary.Failed++
			s.logger.WarnContext(ctx, "backfill charge failed", slog.String("charge_id", id.String()), slog.Any("error", err))
		}
	}
	s.logger.InfoContext(ctx, "ledger backfill finished",
		slog.Int("scanned", summary.Scanned),
		slog.Int("stored", summary.Stored),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed))
	return summary, nil
}

// WithClock overrides the internal clock for deterministic tests.
func (s *Service) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}
