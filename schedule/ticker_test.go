package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/halcyonlabs/claimd/claim"
	"github.com/halcyonlabs/claimd/errors"
)

type countingTrigger struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (c *countingTrigger) TriggerScheduled(ctx context.Context) (*claim.BatchRun, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	batch := claim.NewBatchRun(claim.TriggerScheduled, 0)
	batch.Finalize(0, 0, 0)
	return batch, nil
}

func TestTickerFiresAfterInterval(t *testing.T) {
	trigger := &countingTrigger{}
	ticker := NewTicker(trigger, TickerConfig{
		Interval:   50 * time.Millisecond,
		CheckEvery: 10 * time.Millisecond,
	}, zap.NewNop().Sugar())

	ticker.Start()
	defer ticker.Stop()

	assert.Eventually(t, func() bool {
		return trigger.calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond, "ticker should fire repeatedly")
}

func TestTickerDoesNotFireImmediately(t *testing.T) {
	trigger := &countingTrigger{}
	ticker := NewTicker(trigger, TickerConfig{
		Interval:   time.Hour,
		CheckEvery: 10 * time.Millisecond,
	}, zap.NewNop().Sugar())

	ticker.Start()
	defer ticker.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), trigger.calls.Load(), "first batch waits a full interval")
}

func TestTickerToleratesTriggerErrors(t *testing.T) {
	trigger := &countingTrigger{err: errors.ErrBatchInFlight}
	ticker := NewTicker(trigger, TickerConfig{
		Interval:   30 * time.Millisecond,
		CheckEvery: 10 * time.Millisecond,
	}, zap.NewNop().Sugar())

	ticker.Start()
	defer ticker.Stop()

	// Skipped triggers never stop the loop
	assert.Eventually(t, func() bool {
		return trigger.calls.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTickerStopWaitsForInFlightBatch(t *testing.T) {
	trigger := &countingTrigger{delay: 50 * time.Millisecond}
	ticker := NewTicker(trigger, TickerConfig{
		Interval:   20 * time.Millisecond,
		CheckEvery: 5 * time.Millisecond,
	}, zap.NewNop().Sugar())

	ticker.Start()

	assert.Eventually(t, func() bool {
		return trigger.calls.Load() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		ticker.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestTickerStats(t *testing.T) {
	trigger := &countingTrigger{}
	ticker := NewTicker(trigger, TickerConfig{
		Interval:   time.Hour,
		CheckEvery: 10 * time.Millisecond,
	}, zap.NewNop().Sugar())

	ticker.Start()
	defer ticker.Stop()

	time.Sleep(50 * time.Millisecond)

	stats := ticker.GetStats()
	assert.Equal(t, time.Hour, stats["interval"])
	assert.NotZero(t, stats["next_run_at"])
}
