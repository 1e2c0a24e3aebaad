package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerReconcile runs the ledger/stock reconciliation over all items.
	TaskLedgerReconcile = "ledger:reconcile"
	// TaskIdempotencyCleanup prunes stale idempotency keys.
	TaskIdempotencyCleanup = "shared:idempotency_cleanup"
)

// LedgerReconcilePayload parametrises a reconciliation run.
type LedgerReconcilePayload struct {
	// Trigger records what scheduled the run, for log correlation.
	Trigger string `json:"trigger"`
}

// NewLedgerReconcileTask constructs an Asynq task.
func NewLedgerReconcileTask(trigger string) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerReconcilePayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, data), nil
}

// IdempotencyCleanupPayload parametrises a cleanup run.
type IdempotencyCleanupPayload struct {
	OlderThanHours int `json:"older_than_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(olderThanHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{OlderThanHours: olderThanHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
