package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/chargeledger/internal/jobs"
	"github.com/odyssey-erp/chargeledger/internal/ledger"
	"github.com/odyssey-erp/chargeledger/internal/ledger/engine"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LedgerService describes the engine behaviour the ledger jobs need.
type LedgerService interface {
	Generate(ctx context.Context, chargeID uuid.UUID, opts engine.Options) (engine.Result, error)
	Backfill(ctx context.Context, ownerID *uuid.UUID, limit int) (engine.BackfillSummary, error)
}

// LedgerJob handles ledger generation and backfill tasks.
type LedgerJob struct {
	Service LedgerService
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerJob constructs the job handler.
func NewLedgerJob(service LedgerService, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerJob {
	return &LedgerJob{Service: service, Logger: logger, Metrics: metrics}
}

// HandleGenerate executes TaskLedgerGenerate. Domain rejections and missing charges are not
// retried.
func (j *LedgerJob) HandleGenerate(ctx context.Context, task *asynq.Task) (resultErr error) {
	if j == nil || j.Service == nil {
		return errors.New("ledger generate: dependencies not configured")
	}
	var payload GeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.ChargeID == uuid.Nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskLedgerGenerate)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.log(TaskLedgerGenerate).With(slog.String("charge_id", payload.ChargeID.String()))
	res, err := j.Service.Generate(ctx, payload.ChargeID, engine.Options{InsertLedgerRecordsIfNotExists: payload.Insert})
	if err != nil {
		if ce, ok := ledger.AsCommonError(err); ok {
			logger.Warn("ledger generation rejected", slog.String("message", ce.Message))
			return fmt.Errorf("%s: %w", ce.Message, asynq.SkipRetry)
		}
		if errors.Is(err, ledger.ErrChargeNotFound) || errors.Is(err, ledger.ErrUnsupportedChargeType) {
			logger.Warn("ledger generation skipped", slog.Any("error", err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		logger.Error("ledger generation failed", slog.Any("error", err))
		return err
	}
	logger.Info("ledger generated",
		slog.Int("records", len(res.Ledger.Records)),
		slog.Bool("balanced", res.Ledger.Balance.IsBalanced),
		slog.Int("errors", len(res.Ledger.Errors)),
		slog.Bool("stored", res.Stored))
	return nil
}

// HandleBackfill executes TaskLedgerBackfill.
func (j *LedgerJob) HandleBackfill(ctx context.Context, task *asynq.Task) (resultErr error) {
	if j == nil || j.Service == nil {
		return errors.New("ledger backfill: dependencies not configured")
	}
	var payload BackfillPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.Limit <= 0 {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskLedgerBackfill)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	summary, err := j.Service.Backfill(ctx, payload.OwnerID, payload.Limit)
	if err != nil {
		j.log(TaskLedgerBackfill).Error("ledger backfill failed", slog.Any("error", err))
		return err
	}
	if summary.Failed > 0 {
		j.log(TaskLedgerBackfill).Warn("ledger backfill had failures", slog.Int("failed", summary.Failed), slog.Int("scanned", summary.Scanned))
	}
	return nil
}

func (j *LedgerJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerJob) log(task string) *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", task))
	}
	return slog.Default().With(slog.String("job", task))
}
