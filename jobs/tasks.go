package jobs

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueLedger carries ledger generation work.
	QueueLedger = "ledger"
	// TaskLedgerGenerate generates (and optionally stores) the ledger of one charge.
	TaskLedgerGenerate = "ledger:generate"
	// TaskLedgerBackfill sweeps charges without stored ledger records.
	TaskLedgerBackfill = "ledger:backfill"
)

// ErrInvalidPayload marks payloads that can never succeed.
var ErrInvalidPayload = errors.New("jobs: invalid payload")

// GeneratePayload identifies the charge to generate.
type GeneratePayload struct {
	ChargeID uuid.UUID `json:"charge_id"`
	Insert   bool      `json:"insert"`
}

// BackfillPayload scopes a backfill sweep. A nil owner sweeps every owner.
type BackfillPayload struct {
	OwnerID *uuid.UUID `json:"owner_id,omitempty"`
	Limit   int        `json:"limit"`
}

// NewGenerateTask constructs a ledger generation task. The task id is derived from the charge
// so duplicate enqueues collapse while one is pending.
func NewGenerateTask(payload GeneratePayload) (*asynq.Task, error) {
	if payload.ChargeID == uuid.Nil {
		return nil, ErrInvalidPayload
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerGenerate, data,
		asynq.Queue(QueueLedger),
		asynq.TaskID(TaskLedgerGenerate+":"+payload.ChargeID.String()),
		asynq.MaxRetry(5),
	), nil
}

// NewBackfillTask constructs a backfill task.
func NewBackfillTask(payload BackfillPayload) (*asynq.Task, error) {
	if payload.Limit <= 0 {
		return nil, ErrInvalidPayload
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerBackfill, data, asynq.Queue(QueueLedger), asynq.MaxRetry(1)), nil
}
