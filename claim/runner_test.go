package claim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/halcyonlabs/claimd/errors"
	claimdtesting "github.com/halcyonlabs/claimd/internal/testing"
	"github.com/halcyonlabs/claimd/pool"
	"github.com/halcyonlabs/claimd/progress"
)

// fakeSession drives claim outcomes per account for tests
type fakeSession struct {
	mu      sync.Mutex
	calls   []string
	perform func(ctx context.Context, accountID string, onStep StepFunc) (*SessionResult, error)
}

func (s *fakeSession) PerformClaim(ctx context.Context, accountID string, onStep StepFunc) (*SessionResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, accountID)
	s.mu.Unlock()

	if s.perform != nil {
		return s.perform(ctx, accountID, onStep)
	}
	return &SessionResult{ItemsClaimed: []string{"Cash"}}, nil
}

func (s *fakeSession) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// fakeNotifier records notification calls
type fakeNotifier struct {
	mu    sync.Mutex
	calls []JobState
	err   error
}

func (n *fakeNotifier) Notify(ctx context.Context, accountID string, state JobState, items []string, errMsg string) error {
	n.mu.Lock()
	n.calls = append(n.calls, state)
	n.mu.Unlock()
	return n.err
}

func (n *fakeNotifier) callStates() []JobState {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]JobState, len(n.calls))
	copy(out, n.calls)
	return out
}

type runnerFixture struct {
	runner  *Runner
	pool    *pool.Pool
	store   *RecordStore
	tracker *progress.Tracker
	session *fakeSession
	notify  *fakeNotifier
}

func newRunnerFixture(t *testing.T, capacity int, timeout time.Duration) *runnerFixture {
	t.Helper()

	db := claimdtesting.CreateTestDB(t)
	log := zap.NewNop().Sugar()

	store := NewRecordStore(db)
	p := pool.New(capacity, log)
	t.Cleanup(p.Close)

	session := &fakeSession{}
	notify := &fakeNotifier{}
	tracker := progress.NewTracker(log)

	runner := NewRunner(p, NewGuard(store, log), session, tracker, notify, nil, timeout, log)

	return &runnerFixture{
		runner:  runner,
		pool:    p,
		store:   store,
		tracker: tracker,
		session: session,
		notify:  notify,
	}
}

func TestRunnerSuccess(t *testing.T) {
	fx := newRunnerFixture(t, 2, time.Minute)
	fx.tracker.StartBatch("batch-1", 1)

	job := NewJob("acct-1", "batch-1")
	fx.runner.Execute(context.Background(), job)

	assert.Equal(t, JobStateSuccess, job.State)
	assert.Equal(t, []string{"Cash"}, job.ItemsClaimed)
	assert.Equal(t, 0, fx.pool.Stats().InUse, "slot must be released")

	records, err := fx.store.ListRecordsByBatch("batch-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, RecordStatusSuccess, records[0].Status)
}

func TestRunnerEmptyItemsIsStillSuccess(t *testing.T) {
	fx := newRunnerFixture(t, 1, time.Minute)
	fx.session.perform = func(ctx context.Context, accountID string, onStep StepFunc) (*SessionResult, error) {
		return &SessionResult{}, nil
	}

	fx.tracker.StartBatch("batch-1", 1)
	job := NewJob("acct-1", "batch-1")
	fx.runner.Execute(context.Background(), job)

	// Nothing new available is not a failure
	assert.Equal(t, JobStateSuccess, job.State)
	assert.Empty(t, job.ItemsClaimed)
}

func TestRunnerAutomationError(t *testing.T) {
	fx := newRunnerFixture(t, 2, time.Minute)
	fx.session.perform = func(ctx context.Context, accountID string, onStep StepFunc) (*SessionResult, error) {
		return nil, &AutomationError{AccountID: accountID, Step: "login", Cause: errors.New("unexpected page state")}
	}

	fx.tracker.StartBatch("batch-1", 1)
	job := NewJob("acct-1", "batch-1")
	fx.runner.Execute(context.Background(), job)

	assert.Equal(t, JobStateFailed, job.State)
	assert.Contains(t, job.Error, "login")
	assert.Equal(t, 0, fx.pool.Stats().InUse, "slot must be released on failure")

	// The failure was persisted as a failed record
	records, err := fx.store.ListRecordsByBatch("batch-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, RecordStatusFailed, records[0].Status)
}

func TestRunnerTimeoutReleasesSlot(t *testing.T) {
	fx := newRunnerFixture(t, 1, 100*time.Millisecond)
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	fx.session.perform = func(ctx context.Context, accountID string, onStep StepFunc) (*SessionResult, error) {
		// A hung session that ignores its context entirely
		<-block
		return &SessionResult{}, nil
	}

	fx.tracker.StartBatch("batch-1", 1)
	job := NewJob("acct-99", "batch-1")

	start := time.Now()
	fx.runner.Execute(context.Background(), job)
	elapsed := time.Since(start)

	assert.Equal(t, JobStateFailed, job.State)
	assert.Contains(t, job.Error, "job timeout")
	assert.Less(t, elapsed, 5*time.Second, "runner must not wait for the hung call")
	assert.Equal(t, 0, fx.pool.Stats().InUse, "slot must be reclaimed on timeout")
}

func TestRunnerAlreadyClaimed(t *testing.T) {
	fx := newRunnerFixture(t, 1, time.Minute)

	// A success record from an earlier batch today
	require.NoError(t, fx.store.InsertRecord(NewRecord("acct-42", "batch-0", RecordStatusSuccess, []string{"Cash"}, nil, time.Now())))

	fx.tracker.StartBatch("batch-1", 1)
	job := NewJob("acct-42", "batch-1")
	fx.runner.Execute(context.Background(), job)

	assert.Equal(t, JobStateAlreadyClaimed, job.State)
	assert.Equal(t, 1, fx.session.callCount(), "the session still ran; only persistence was skipped")

	records, err := fx.store.ListRecordsByBatch("batch-1")
	require.NoError(t, err)
	assert.Empty(t, records, "no second record for the day")
}

func TestRunnerForwardsSessionSteps(t *testing.T) {
	fx := newRunnerFixture(t, 1, time.Minute)
	fx.session.perform = func(ctx context.Context, accountID string, onStep StepFunc) (*SessionResult, error) {
		onStep(StepEvent{AccountID: accountID, Step: "login", Timestamp: time.Now()})
		onStep(StepEvent{AccountID: accountID, Step: "claim", Timestamp: time.Now()})
		return &SessionResult{ItemsClaimed: []string{"Cash"}}, nil
	}

	fx.tracker.StartBatch("batch-1", 1)
	job := NewJob("acct-1", "batch-1")
	fx.runner.Execute(context.Background(), job)

	events, err := fx.tracker.Events("batch-1")
	require.NoError(t, err)

	var steps []string
	for _, event := range events {
		if event.Kind == progress.KindSessionStep {
			steps = append(steps, event.Payload["step"].(string))
		}
	}
	assert.Equal(t, []string{"login", "claim"}, steps)
}

func TestRunnerNotifiesTerminalState(t *testing.T) {
	fx := newRunnerFixture(t, 1, time.Minute)
	fx.tracker.StartBatch("batch-1", 1)

	job := NewJob("acct-1", "batch-1")
	fx.runner.Execute(context.Background(), job)

	require.Eventually(t, func() bool {
		return len(fx.notify.callStates()) == 1
	}, time.Second, 10*time.Millisecond, "notification should be delivered off the job path")
	assert.Equal(t, JobStateSuccess, fx.notify.callStates()[0])
}

func TestRunnerNotifierFailureDoesNotAlterState(t *testing.T) {
	fx := newRunnerFixture(t, 1, time.Minute)
	fx.notify.err = errors.New("webhook down")
	fx.tracker.StartBatch("batch-1", 1)

	job := NewJob("acct-1", "batch-1")
	fx.runner.Execute(context.Background(), job)

	assert.Equal(t, JobStateSuccess, job.State)
}

func TestCapacityManyFailuresLeaveNoSlotLeak(t *testing.T) {
	const capacity = 3
	fx := newRunnerFixture(t, capacity, time.Minute)
	fx.session.perform = func(ctx context.Context, accountID string, onStep StepFunc) (*SessionResult, error) {
		return nil, &AutomationError{AccountID: accountID, Cause: errors.New("deliberate failure")}
	}

	fx.tracker.StartBatch("batch-1", capacity)

	var wg sync.WaitGroup
	for i := 0; i < capacity; i++ {
		wg.Add(1)
		job := NewJob("acct-"+string(rune('a'+i)), "batch-1")
		go func(job *Job) {
			defer wg.Done()
			fx.runner.Execute(context.Background(), job)
		}(job)
	}
	wg.Wait()

	stats := fx.pool.Stats()
	assert.Equal(t, 0, stats.InUse, "all slots back after failures")
	assert.Equal(t, 0, stats.Waiting)
}
