package claim

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/pool"
	"github.com/halcyonlabs/claimd/progress"
	"github.com/halcyonlabs/claimd/sym"
)

// DefaultJobTimeout is the hard wall-clock ceiling for one claim attempt,
// covering pool wait exit through session completion
const DefaultJobTimeout = 5 * time.Minute

// Notifier is the external notification sink. Calls are fire-and-forget:
// the runner invokes it off the job path and a failure never alters the
// job's terminal state.
type Notifier interface {
	Notify(ctx context.Context, accountID string, state JobState, items []string, errMsg string) error
}

// Runner drives one claim job at a time through its state machine:
//
//	pending -> acquiring -> running -> {success | failed | already_claimed}
//
// The pool slot held across the running state is released exactly once,
// unconditionally, on every exit path including timeout. One job's failure
// never cancels or blocks sibling jobs.
type Runner struct {
	pool     *pool.Pool
	guard    *Guard
	session  Session
	tracker  *progress.Tracker
	notifier Notifier
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *zap.SugaredLogger
}

// NewRunner creates a claim job runner. Notifier and limiter may be nil;
// a zero timeout falls back to DefaultJobTimeout.
func NewRunner(p *pool.Pool, guard *Guard, session Session, tracker *progress.Tracker, notifier Notifier, limiter *rate.Limiter, timeout time.Duration, logger *zap.SugaredLogger) *Runner {
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &Runner{
		pool:     p,
		guard:    guard,
		session:  session,
		tracker:  tracker,
		notifier: notifier,
		limiter:  limiter,
		timeout:  timeout,
		logger:   logger,
	}
}

// Execute runs one job to a terminal state. It always returns with the job
// terminal and the pool slot (if one was granted) released.
func (r *Runner) Execute(ctx context.Context, job *Job) {
	deadline := time.Now().Add(r.timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	job.Acquiring()
	r.emitTransition(job)

	slot, err := r.pool.Acquire(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Wrapf(errors.ErrJobTimeout, "timed out waiting for a session slot after %s", r.timeout)
		}
		r.finishFailed(job, errors.Wrap(err, "failed to acquire session slot"))
		return
	}
	defer slot.Release()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			r.finishFailed(job, errors.Wrap(err, "claim pacing interrupted"))
			return
		}
	}

	job.Run()
	r.emitTransition(job)
	r.logger.Infow(sym.ClaimOpen+" Claim attempt started",
		"account_id", job.AccountID,
		"batch_id", job.BatchID)

	result, err := r.supervise(ctx, job)
	if err != nil {
		// Persist the failure before surfacing it; a second failure here is
		// logged but the job state is already decided
		if _, gerr := r.guard.CheckAndRecord(Outcome{
			AccountID: job.AccountID,
			BatchID:   job.BatchID,
			Err:       err,
		}); gerr != nil {
			r.logger.Errorw(sym.DB+" Failed to persist failure record",
				"account_id", job.AccountID,
				"error", gerr)
		}
		r.finishFailed(job, err)
		return
	}

	status, err := r.guard.CheckAndRecord(Outcome{
		AccountID:    job.AccountID,
		BatchID:      job.BatchID,
		ItemsClaimed: result.ItemsClaimed,
	})
	if err != nil {
		r.finishFailed(job, errors.Wrap(err, "failed to persist claim outcome"))
		return
	}

	switch status {
	case RecordedAlreadyClaimed:
		job.AlreadyClaimed(result.ItemsClaimed)
	default:
		job.Succeed(result.ItemsClaimed)
	}
	r.emitTransition(job)
	r.notify(job)

	r.logger.Infow(sym.ClaimClose+" Claim attempt finished",
		"account_id", job.AccountID,
		"batch_id", job.BatchID,
		"state", string(job.State),
		"items", len(job.ItemsClaimed),
		"duration", job.Duration())
}

// supervise runs the automation call in its own goroutine and enforces the
// job deadline from outside. The external session has no trustworthy
// cancellation hook; when the deadline fires the runner abandons the call,
// reclaims the slot, and fails the job, leaving the stray goroutine to
// finish into the void.
func (r *Runner) supervise(ctx context.Context, job *Job) (*SessionResult, error) {
	type callResult struct {
		result *SessionResult
		err    error
	}

	done := make(chan callResult, 1)
	go func() {
		result, err := r.session.PerformClaim(ctx, job.AccountID, func(step StepEvent) {
			r.tracker.SessionStep(job.BatchID, step.AccountID, step.Step, step.Timestamp)
		})
		done <- callResult{result: result, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if res.result == nil {
			return &SessionResult{}, nil
		}
		return res.result, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Wrapf(errors.ErrJobTimeout, "automation call exceeded %s for account %s", r.timeout, job.AccountID)
		}
		return nil, errors.Wrap(ctx.Err(), "claim cancelled")
	}
}

func (r *Runner) finishFailed(job *Job, err error) {
	job.Fail(err)
	r.emitTransition(job)
	r.notify(job)

	r.logger.Warnw(sym.Claim+" Claim attempt failed",
		"account_id", job.AccountID,
		"batch_id", job.BatchID,
		"error", err)
}

func (r *Runner) emitTransition(job *Job) {
	r.tracker.JobTransition(job.BatchID, job.AccountID, string(job.State), job.Error)
}

// notify hands the terminal outcome to the notification sink without ever
// blocking or failing the job
func (r *Runner) notify(job *Job) {
	if r.notifier == nil {
		return
	}

	accountID := job.AccountID
	state := job.State
	items := job.ItemsClaimed
	errMsg := job.Error

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := r.notifier.Notify(ctx, accountID, state, items, errMsg); err != nil {
			r.logger.Debugw(sym.Notify+" Notification delivery failed",
				"account_id", accountID,
				"error", err)
		}
	}()
}
