package claim

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/halcyonlabs/claimd/sym"
)

// BatchNotifier delivers a finished batch's summary to the external
// notification collaborator
type BatchNotifier interface {
	NotifyBatch(ctx context.Context, batch *BatchRun) error
}

// Reporter consumes a completed batch aggregate and hands it to the
// notification sink. Delivery is best-effort: a notification failure is
// logged and forgotten, never surfaced to the scheduler.
type Reporter struct {
	notifier BatchNotifier
	logger   *zap.SugaredLogger
}

// NewReporter creates a batch summary reporter. A nil notifier reduces it
// to a log-only reporter.
func NewReporter(notifier BatchNotifier, logger *zap.SugaredLogger) *Reporter {
	return &Reporter{
		notifier: notifier,
		logger:   logger,
	}
}

// Report logs the batch summary and pushes it to the notification sink
func (r *Reporter) Report(ctx context.Context, batch *BatchRun) {
	duration := time.Duration(0)
	if batch.EndedAt != nil {
		duration = batch.EndedAt.Sub(batch.StartedAt)
	}

	r.logger.Infow(sym.Notify+" Batch summary",
		"batch_id", batch.ID,
		"triggered_by", string(batch.TriggeredBy),
		"total_targets", batch.TotalTargets,
		"attempted", batch.TotalAttempted(),
		"succeeded", batch.Succeeded,
		"failed", batch.Failed,
		"already_claimed", batch.AlreadyClaimed,
		"duration", duration)

	if r.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if err := r.notifier.NotifyBatch(ctx, batch); err != nil {
			r.logger.Debugw(sym.Notify+" Batch summary delivery failed",
				"batch_id", batch.ID,
				"error", err)
		}
	}()
}
