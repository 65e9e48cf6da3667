package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/chargeledger/cmd/chargeledger/cli"
	"github.com/odyssey-erp/chargeledger/internal/app"
	ledgerhttp "github.com/odyssey-erp/chargeledger/internal/ledger/http"
	"github.com/odyssey-erp/chargeledger/internal/observability"
	"github.com/odyssey-erp/chargeledger/jobs"
)

type serveCmd struct{}

type generateCmd struct {
	Charge uuid.UUID `arg:"--charge,required" help:"charge id"`
	Insert bool      `arg:"--insert" help:"store the records when the ledger balances and none exist yet"`
	JSON   bool      `arg:"--json" help:"print JSON instead of a table"`
}

type enqueueCmd struct {
	Charge uuid.UUID `arg:"--charge,required" help:"charge id"`
	Insert bool      `arg:"--insert" help:"store the records when the ledger balances"`
}

type args struct {
	Serve    *serveCmd    `arg:"subcommand:serve" help:"run the HTTP API (default)"`
	Generate *generateCmd `arg:"subcommand:generate" help:"generate the ledger of one charge"`
	Enqueue  *enqueueCmd  `arg:"subcommand:enqueue" help:"queue a ledger generation for the worker"`
}

func (args) Description() string {
	return "chargeledger generates double-entry ledger records for charges."
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	var parsed args
	arg.MustParse(&parsed)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	switch {
	case parsed.Enqueue != nil:
		os.Exit(enqueue(ctx, cfg, logger, parsed.Enqueue))
	case parsed.Generate != nil:
		os.Exit(generate(ctx, cfg, logger, parsed.Generate))
	default:
		if err := serve(ctx, cfg, logger); err != nil {
			logger.Error("serve", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

func generate(ctx context.Context, cfg *app.Config, logger *slog.Logger, cmd *generateCmd) int {
	runtime, err := app.NewLedgerRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("init ledger runtime", slog.Any("error", err))
		return cli.ExitFailure
	}
	defer func() {
		_ = runtime.Close()
	}()
	return cli.GenerateCommand(ctx, runtime.Service, cli.GenerateOptions{
		ChargeID:   cmd.Charge,
		Insert:     cmd.Insert,
		JSONOutput: cmd.JSON,
	})
}

func enqueue(ctx context.Context, cfg *app.Config, logger *slog.Logger, cmd *enqueueCmd) int {
	client := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer func() {
		_ = client.Close()
	}()
	info, err := client.EnqueueGenerate(ctx, jobs.GeneratePayload{ChargeID: cmd.Charge, Insert: cmd.Insert})
	if err != nil {
		logger.Error("enqueue ledger generation", slog.Any("error", err))
		return cli.ExitFailure
	}
	if info == nil {
		logger.Info("ledger generation already queued", slog.String("charge_id", cmd.Charge.String()))
		return cli.ExitOK
	}
	logger.Info("ledger generation queued", slog.String("charge_id", cmd.Charge.String()), slog.String("task_id", info.ID))
	return cli.ExitOK
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	runtime, err := app.NewLedgerRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			logger.Warn("close runtime", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		_ = inspector.Close()
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		LedgerHandler: ledgerhttp.NewHandler(runtime.Service, logger, runtime.Rates, runtime.Categories),
		JobHandler:    jobs.NewHandler(inspector, logger),
		HTTPMetrics:   observability.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Gatherer:      prometheus.DefaultGatherer,
		Ready: func(r *http.Request) error {
			if err := runtime.Pool.Ping(r.Context()); err != nil {
				return err
			}
			return runtime.Redis.Ping(r.Context()).Err()
		},
	})

	srv := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
