package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/voyager-erp/voyager-erp/internal/ledger"
	"github.com/voyager-erp/voyager-erp/internal/shared"
)

// ReconcileJob runs the nightly ledger/stock reconciliation.
type ReconcileJob struct {
	service *ledger.Service
	cache   *ledger.Cache
	logger  *slog.Logger
	metrics *Metrics
}

// NewReconcileJob constructs ReconcileJob.
func NewReconcileJob(service *ledger.Service, cache *ledger.Cache, logger *slog.Logger, metrics *Metrics) *ReconcileJob {
	return &ReconcileJob{service: service, cache: cache, logger: logger, metrics: metrics}
}

// Handle processes TaskLedgerReconcile tasks: run the check over all items,
// log every drifting item, refresh the cached report and export the drift
// count.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	rows, err := j.service.Reconcile(ctx)
	j.metrics.ObserveRun(TaskLedgerReconcile, time.Since(start), err)
	if err != nil {
		j.logger.Error("ledger reconcile failed",
			slog.String("trigger", payload.Trigger), slog.Any("error", err))
		return err
	}

	drift := 0
	for _, row := range rows {
		if !row.InDrift() {
			continue
		}
		drift++
		j.logger.Warn("ledger drift",
			slog.String("item_code", row.ItemCode),
			slog.Int64("drift_pcs", row.DriftPcs),
			slog.String("drift_kg", row.DriftKg.String()))
	}
	j.metrics.SetDriftItems(drift)
	j.cache.SetReconciliation(ctx, rows)

	j.logger.Info("ledger reconcile done",
		slog.String("trigger", payload.Trigger),
		slog.Int("items", len(rows)),
		slog.Int("in_drift", drift),
		slog.Duration("took", time.Since(start)))
	return nil
}

// CleanupJob prunes stale idempotency keys.
type CleanupJob struct {
	store   *shared.IdempotencyStore
	logger  *slog.Logger
	metrics *Metrics
}

// NewCleanupJob constructs CleanupJob.
func NewCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger, metrics *Metrics) *CleanupJob {
	return &CleanupJob{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *CleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	olderThan := time.Duration(payload.OlderThanHours) * time.Hour
	if olderThan <= 0 {
		olderThan = 72 * time.Hour
	}

	start := time.Now()
	err := j.store.Cleanup(ctx, olderThan)
	j.metrics.ObserveRun(TaskIdempotencyCleanup, time.Since(start), err)
	if err != nil {
		j.logger.Error("idempotency cleanup failed", slog.Any("error", err))
		return err
	}
	j.logger.Info("idempotency cleanup done", slog.Duration("older_than", olderThan))
	return nil
}
