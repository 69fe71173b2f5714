package claim

import (
	"time"
)

// JobState represents the current state of a claim job
type JobState string

const (
	JobStatePending        JobState = "pending"
	JobStateAcquiring      JobState = "acquiring"
	JobStateRunning        JobState = "running"
	JobStateSuccess        JobState = "success"
	JobStateFailed         JobState = "failed"
	JobStateAlreadyClaimed JobState = "already_claimed"
)

// IsTerminal returns true once the job has reached a final state
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateSuccess, JobStateFailed, JobStateAlreadyClaimed:
		return true
	default:
		return false
	}
}

// IsValidState returns true if the state string is a valid JobState
func IsValidState(s string) bool {
	switch JobState(s) {
	case JobStatePending, JobStateAcquiring, JobStateRunning,
		JobStateSuccess, JobStateFailed, JobStateAlreadyClaimed:
		return true
	default:
		return false
	}
}

// Job is the ephemeral, in-memory unit of work attempting to collect items
// for one account. It lives only for the duration of a batch; the durable
// outcome is a Record written by the idempotency guard.
type Job struct {
	AccountID    string     `json:"account_id"`
	BatchID      string     `json:"batch_id"`
	State        JobState   `json:"state"`
	ItemsClaimed []string   `json:"items_claimed,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// NewJob creates a pending job for one account within a batch
func NewJob(accountID, batchID string) *Job {
	return &Job{
		AccountID: accountID,
		BatchID:   batchID,
		State:     JobStatePending,
		CreatedAt: time.Now(),
	}
}

// Acquiring marks the job as waiting on a pool slot
func (j *Job) Acquiring() {
	j.State = JobStateAcquiring
}

// Run marks the job as running: a slot was granted and the automation
// session is being invoked
func (j *Job) Run() {
	now := time.Now()
	j.State = JobStateRunning
	j.StartedAt = &now
}

// Succeed marks the job successful with the items the session collected
func (j *Job) Succeed(items []string) {
	now := time.Now()
	j.State = JobStateSuccess
	j.ItemsClaimed = items
	j.EndedAt = &now
}

// AlreadyClaimed marks the job resolved against an existing success record
// for the day. The session outcome is kept for observability only.
func (j *Job) AlreadyClaimed(items []string) {
	now := time.Now()
	j.State = JobStateAlreadyClaimed
	j.ItemsClaimed = items
	j.EndedAt = &now
}

// Fail marks the job failed with an error message
func (j *Job) Fail(err error) {
	now := time.Now()
	j.State = JobStateFailed
	j.Error = err.Error()
	j.EndedAt = &now
}

// Duration returns the wall-clock time the job spent running, or zero if it
// never started
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.EndedAt == nil {
		return time.Since(*j.StartedAt)
	}
	return j.EndedAt.Sub(*j.StartedAt)
}
