package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/chargeledger/internal/app"
	"github.com/odyssey-erp/chargeledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	runtime, err := app.NewLedgerRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("init ledger runtime", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			logger.Warn("close runtime", slog.Any("error", err))
		}
	}()

	ledgerJob := jobs.NewLedgerJob(runtime.Service, logger, runtime.Metrics)

	backfillTask, err := jobs.NewBackfillTask(jobs.BackfillPayload{Limit: cfg.BackfillLimit})
	if err != nil {
		logger.Error("build backfill task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerGenerate, Handler: ledgerJob.HandleGenerate},
			{Type: jobs.TaskLedgerBackfill, Handler: ledgerJob.HandleBackfill},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.BackfillCron, Task: backfillTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
