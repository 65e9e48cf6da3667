package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/chargeledger/internal/fx"
	jobmetrics "github.com/odyssey-erp/chargeledger/internal/jobs"
	"github.com/odyssey-erp/chargeledger/internal/ledger"
	"github.com/odyssey-erp/chargeledger/internal/ledger/engine"
	"github.com/odyssey-erp/chargeledger/internal/ledger/generators"
	"github.com/odyssey-erp/chargeledger/internal/ledger/store"
	"github.com/odyssey-erp/chargeledger/internal/platform/cache"
	"github.com/odyssey-erp/chargeledger/internal/platform/db"
	"github.com/odyssey-erp/chargeledger/internal/taxcategories"
)

// LedgerRuntime bundles the wired engine and the connections it owns.
type LedgerRuntime struct {
	Routing    ledger.Config
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	Rates      *fx.Service
	Categories *taxcategories.Memo
	Service    *engine.Service
	Metrics    *jobmetrics.Metrics
}

// NewLedgerRuntime opens Postgres and Redis and wires the ledger engine on top of them.
func NewLedgerRuntime(ctx context.Context, cfg *Config, logger *slog.Logger) (*LedgerRuntime, error) {
	routing, err := LoadRouting(cfg.LedgerRoutingFile)
	if err != nil {
		return nil, err
	}
	pool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns})
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err != nil {
		pool.Close()
		return nil, err
	}

	rates, err := fx.NewService(fx.NewRepository(pool), routing.LocalCurrency, fx.NewCache(redisClient, cfg.FXCacheTTL), logger)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("app: exchange rates: %w", err)
	}
	rates.WithWindow(cfg.FXWindow)

	repo := store.NewRepository(pool)
	categories := taxcategories.NewMemo(taxcategories.NewRepository(pool))
	registry := generators.NewRegistry(generators.Deps{
		Config:     routing,
		Store:      repo,
		Rates:      rates,
		Categories: categories,
		Logger:     logger,
	})
	metrics := jobmetrics.NewMetrics(nil)
	service := engine.NewService(repo, registry, store.NewWriter(repo, logger), metrics, logger)

	logger.Info("ledger engine ready",
		slog.String("local_currency", routing.LocalCurrency),
		slog.Float64("epsilon", routing.Tolerance()),
		slog.Int("generators", len(registry)))
	return &LedgerRuntime{
		Routing:    routing,
		Pool:       pool,
		Redis:      redisClient,
		Rates:      rates,
		Categories: categories,
		Service:    service,
		Metrics:    metrics,
	}, nil
}

// Close releases the connections.
func (r *LedgerRuntime) Close() error {
	if r == nil {
		return nil
	}
	r.Pool.Close()
	return r.Redis.Close()
}
