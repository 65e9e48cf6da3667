package ledgerhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

const (
	generateLimit = 60
	opsLimit      = 5
	rateWindow    = time.Minute
)

// MountRoutes registers the ledger endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.With(limiter(generateLimit)).Post("/charges/{chargeID}/ledger", h.handleGenerate)
	r.Route("/ops", func(ops chi.Router) {
		ops.Use(limiter(opsLimit))
		ops.Post("/backfill", h.handleBackfill)
		ops.Post("/cache/invalidate", h.handleInvalidateCaches)
	})
}

func limiter(requests int) func(http.Handler) http.Handler {
	return httprate.Limit(requests, rateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
}
