package claim

import (
	"context"
	"fmt"
	"time"
)

// SessionResult is what a completed automation call hands back. An empty
// ItemsClaimed with no error is a legitimate outcome: everything available
// was already collected.
type SessionResult struct {
	ItemsClaimed []string `json:"items_claimed"`
}

// StepEvent is a structured progress signal emitted by a session while it
// works through a claim. Sessions emit these directly rather than logging
// human-readable lines for someone else to parse.
type StepEvent struct {
	AccountID string    `json:"account_id"`
	Step      string    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// StepFunc receives step events from a running session. Implementations must
// not block; a nil StepFunc is valid and means the caller does not care.
type StepFunc func(StepEvent)

// Session is the external automation capability that performs the actual
// page-level claim interaction. It is opaque, slow, and occasionally flaky;
// callers supervise it with their own timeout rather than trusting it to
// self-terminate.
type Session interface {
	PerformClaim(ctx context.Context, accountID string, onStep StepFunc) (*SessionResult, error)
}

// AutomationError represents a failure inside the external session: network
// trouble, an unexpected page state, or the remote driver giving up.
type AutomationError struct {
	AccountID string
	Step      string
	Cause     error
}

func (e *AutomationError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("automation failed for account %s at step %q: %v", e.AccountID, e.Step, e.Cause)
	}
	return fmt.Sprintf("automation failed for account %s: %v", e.AccountID, e.Cause)
}

func (e *AutomationError) Unwrap() error {
	return e.Cause
}
