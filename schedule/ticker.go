// Package schedule drives timer-based claim batches. The ticker wakes every
// second, fires the batch trigger when the configured interval elapses, and
// leaves overlap protection to the scheduler's in-flight guard.
package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/halcyonlabs/claimd/claim"
	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/logger"
)

// BatchTrigger starts one scheduled claim batch. Satisfied by
// claim.Scheduler.
type BatchTrigger interface {
	TriggerScheduled(ctx context.Context) (*claim.BatchRun, error)
}

// TickerConfig contains configuration for the batch ticker
type TickerConfig struct {
	Interval   time.Duration // Time between scheduled batches (default: 24h)
	CheckEvery time.Duration // How often to check the clock (default: 1 second)
}

// DefaultTickerConfig returns sensible defaults
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		Interval:   24 * time.Hour,
		CheckEvery: 1 * time.Second,
	}
}

// Ticker manages periodic execution of scheduled claim batches
type Ticker struct {
	trigger  BatchTrigger
	interval time.Duration
	check    time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	schedLog *zap.SugaredLogger

	mu              sync.Mutex
	nextRunAt       time.Time
	lastRunAt       time.Time
	ticksSinceStart int64
	lastCountdown   time.Duration // last countdown logged, to avoid spam
}

// NewTicker creates a batch ticker
func NewTicker(trigger BatchTrigger, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	return NewTickerWithContext(context.Background(), trigger, cfg, log)
}

// NewTickerWithContext creates a ticker with a parent context
func NewTickerWithContext(ctx context.Context, trigger BatchTrigger, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickerConfig().Interval
	}
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = DefaultTickerConfig().CheckEvery
	}

	tickerCtx, cancel := context.WithCancel(ctx)

	return &Ticker{
		trigger:  trigger,
		interval: cfg.Interval,
		check:    cfg.CheckEvery,
		ctx:      tickerCtx,
		cancel:   cancel,
		schedLog: logger.AddSchedSymbol(log),
	}
}

// Start begins the ticker loop. The first batch fires one full interval
// after start, never immediately at daemon boot.
func (t *Ticker) Start() {
	t.mu.Lock()
	t.nextRunAt = time.Now().Add(t.interval)
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run()
	t.schedLog.Infow("Batch ticker started", "interval", t.interval, "next_run_at", t.nextRunAt.Format(time.RFC3339))
}

// Stop gracefully stops the ticker and waits for an in-flight triggered
// batch to finish or cancel
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.schedLog.Infow("Batch ticker stopped")
}

func (t *Ticker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.check)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case now := <-ticker.C:
			t.mu.Lock()
			t.ticksSinceStart++
			due := !now.Before(t.nextRunAt)
			t.mu.Unlock()

			t.logCountdown(now)

			if due {
				t.fire(now)
			}
		}
	}
}

// logCountdown logs time until the next batch, but only when the rounded
// countdown actually moves
func (t *Ticker) logCountdown(now time.Time) {
	t.mu.Lock()
	remaining := t.nextRunAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	rounded := remaining.Round(time.Minute)
	changed := rounded != t.lastCountdown
	t.lastCountdown = rounded
	t.mu.Unlock()

	if changed && rounded > 0 {
		t.schedLog.Debugw("Next scheduled batch", "in", rounded)
	}
}

// fire launches one scheduled batch in the background so the tick loop
// keeps running during a long batch. Overlap is rejected downstream by the
// scheduler's in-flight guard.
func (t *Ticker) fire(now time.Time) {
	t.mu.Lock()
	t.lastRunAt = now
	t.nextRunAt = now.Add(t.interval)
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		start := time.Now()
		batch, err := t.trigger.TriggerScheduled(t.ctx)
		if err != nil {
			if errors.Is(err, errors.ErrBatchInFlight) {
				t.schedLog.Warnw("Scheduled batch skipped, previous still running")
				return
			}
			t.schedLog.Errorw("Scheduled batch failed",
				"error", err,
				"duration", time.Since(start))
			return
		}

		t.schedLog.Infow("Scheduled batch complete",
			"batch_id", batch.ID,
			"attempted", batch.TotalAttempted(),
			"succeeded", batch.Succeeded,
			"failed", batch.Failed,
			"already_claimed", batch.AlreadyClaimed,
			"duration", time.Since(start))
	}()
}

// GetStats returns ticker statistics
func (t *Ticker) GetStats() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	return map[string]interface{}{
		"interval":          t.interval,
		"next_run_at":       t.nextRunAt,
		"last_run_at":       t.lastRunAt,
		"ticks_since_start": t.ticksSinceStart,
	}
}
