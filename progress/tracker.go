// Package progress maintains the in-memory, per-batch event log and live
// fan-out for claim batches. It is observational only: a process restart
// loses all of it without affecting durable claim records.
package progress

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/sym"
)

// Event kinds appended by the scheduler, runner, and automation sessions
const (
	KindBatchStarted   = "batch_started"
	KindJobTransition  = "job_transition"
	KindSessionStep    = "session_step"
	KindBatchCompleted = "batch_completed"
)

// Event is one observational entry in a batch's progress log
type Event struct {
	BatchID   string                 `json:"batch_id"`
	AccountID string                 `json:"account_id,omitempty"`
	Kind      string                 `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Aggregate is the derived running state of one batch
type Aggregate struct {
	BatchID        string     `json:"batch_id"`
	TotalTargets   int        `json:"total_targets"`
	Completed      int        `json:"completed"`
	Failed         int        `json:"failed"`
	AlreadyClaimed int        `json:"already_claimed"`
	CurrentAccount string     `json:"current_account,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// Done reports whether every target reached a terminal state
func (a Aggregate) Done() bool {
	return a.Completed+a.Failed+a.AlreadyClaimed >= a.TotalTargets
}

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing events; the aggregate snapshot is
// always consistent regardless.
const subscriberBuffer = 64

type batchLog struct {
	events      []Event
	aggregate   Aggregate
	subscribers map[chan Event]struct{}
}

// Tracker holds progress state for all live batches. It is an explicitly
// constructed, lifecycle-scoped object: every component that reports or
// reads progress is handed the same instance.
type Tracker struct {
	mu      sync.RWMutex
	batches map[string]*batchLog
	logger  *zap.SugaredLogger
}

// NewTracker creates an empty progress tracker
func NewTracker(logger *zap.SugaredLogger) *Tracker {
	return &Tracker{
		batches: make(map[string]*batchLog),
		logger:  logger,
	}
}

// StartBatch registers a batch and appends its opening event
func (t *Tracker) StartBatch(batchID string, totalTargets int) {
	now := time.Now()

	t.mu.Lock()
	t.batches[batchID] = &batchLog{
		aggregate: Aggregate{
			BatchID:      batchID,
			TotalTargets: totalTargets,
			StartedAt:    now,
		},
		subscribers: make(map[chan Event]struct{}),
	}
	t.mu.Unlock()

	t.Append(Event{
		BatchID:   batchID,
		Kind:      KindBatchStarted,
		Timestamp: now,
		Payload:   map[string]interface{}{"total_targets": totalTargets},
	})
}

// Append records an event, updates the batch aggregate, and fans the event
// out to subscribers. Events for unknown batches are dropped.
func (t *Tracker) Append(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	t.mu.Lock()
	log, ok := t.batches[event.BatchID]
	if !ok {
		t.mu.Unlock()
		return
	}

	log.events = append(log.events, event)
	applyEvent(&log.aggregate, event)

	subs := make([]chan Event, 0, len(log.subscribers))
	for ch := range log.subscribers {
		subs = append(subs, ch)
	}
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Slow subscriber; dropping is preferable to stalling the batch
		}
	}
}

// JobTransition appends a state-change event for one account's job
func (t *Tracker) JobTransition(batchID, accountID, state string, jobErr string) {
	payload := map[string]interface{}{"state": state}
	if jobErr != "" {
		payload["error"] = truncateError(jobErr)
	}
	t.Append(Event{
		BatchID:   batchID,
		AccountID: accountID,
		Kind:      KindJobTransition,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

// SessionStep appends a structured automation step event
func (t *Tracker) SessionStep(batchID, accountID, step string, at time.Time) {
	t.Append(Event{
		BatchID:   batchID,
		AccountID: accountID,
		Kind:      KindSessionStep,
		Timestamp: at,
		Payload:   map[string]interface{}{"step": step},
	})
}

// CompleteBatch appends the closing event and stamps the aggregate's end
// time, which starts the retention clock for the sweeper
func (t *Tracker) CompleteBatch(batchID string) {
	t.Append(Event{
		BatchID:   batchID,
		Kind:      KindBatchCompleted,
		Timestamp: time.Now(),
	})
}

// applyEvent folds one event into the batch aggregate. Caller holds t.mu.
func applyEvent(agg *Aggregate, event Event) {
	switch event.Kind {
	case KindJobTransition:
		state, _ := event.Payload["state"].(string)
		switch state {
		case "running":
			agg.CurrentAccount = event.AccountID
		case "success":
			agg.Completed++
		case "failed":
			agg.Failed++
		case "already_claimed":
			agg.AlreadyClaimed++
		}
		if agg.CurrentAccount == event.AccountID && state != "running" && state != "" {
			agg.CurrentAccount = ""
		}
	case KindBatchCompleted:
		now := event.Timestamp
		agg.EndedAt = &now
		agg.CurrentAccount = ""
	}
}

// Snapshot returns the current aggregate for a batch
func (t *Tracker) Snapshot(batchID string) (Aggregate, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	log, ok := t.batches[batchID]
	if !ok {
		return Aggregate{}, errors.NewNotFoundError("no progress for batch: %s", batchID)
	}
	return log.aggregate, nil
}

// Events returns a copy of the full event log for a batch
func (t *Tracker) Events(batchID string) ([]Event, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	log, ok := t.batches[batchID]
	if !ok {
		return nil, errors.NewNotFoundError("no progress for batch: %s", batchID)
	}

	events := make([]Event, len(log.events))
	copy(events, log.events)
	return events, nil
}

// Subscribe attaches a live listener to a batch. The returned aggregate is
// the state at subscription time; the channel then carries every subsequent
// event and nothing earlier. Callers must invoke the returned cancel
// function when done.
func (t *Tracker) Subscribe(batchID string) (Aggregate, <-chan Event, func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	log, ok := t.batches[batchID]
	if !ok {
		return Aggregate{}, nil, nil, errors.NewNotFoundError("no progress for batch: %s", batchID)
	}

	ch := make(chan Event, subscriberBuffer)
	log.subscribers[ch] = struct{}{}
	snapshot := log.aggregate

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if log, ok := t.batches[batchID]; ok {
			delete(log.subscribers, ch)
		}
	}

	return snapshot, ch, cancel, nil
}

// ActiveBatches returns aggregates for every batch still held in memory.
// Order is unspecified.
func (t *Tracker) ActiveBatches() []Aggregate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	aggregates := make([]Aggregate, 0, len(t.batches))
	for _, log := range t.batches {
		aggregates = append(aggregates, log.aggregate)
	}
	return aggregates
}

// Sweep discards batches whose end time is older than the cutoff and
// returns how many were removed. In-flight batches are never swept.
func (t *Tracker) Sweep(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for batchID, log := range t.batches {
		if log.aggregate.EndedAt == nil || log.aggregate.EndedAt.After(cutoff) {
			continue
		}
		for ch := range log.subscribers {
			close(ch)
		}
		delete(t.batches, batchID)
		removed++
	}

	if removed > 0 {
		t.logger.Debugw(sym.Sched+" Swept stale progress entries", "removed", removed)
	}

	return removed
}

// StartSweeper runs periodic sweeps until the context is cancelled
func (t *Tracker) StartSweeper(ctx context.Context, interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Sweep(retention)
			}
		}
	}()
}

// maxErrorLength bounds error text carried in progress payloads
const maxErrorLength = 200

func truncateError(msg string) string {
	if len(msg) <= maxErrorLength {
		return msg
	}
	return msg[:maxErrorLength] + "..."
}
