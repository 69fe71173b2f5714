// Package claim implements the claim-job orchestration engine: per-account
// claim jobs bounded by a shared session pool, an idempotency guard over
// durable claim records, and a batch scheduler that fans jobs out and
// aggregates their outcomes.
package claim

import "context"

// Target is a read-only snapshot of one external account eligible for
// claiming. Blocked targets are excluded from scheduled batches.
type Target struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name,omitempty"`
	Blocked     bool   `json:"blocked,omitempty"`
}

// Registry provides the set of accounts to claim for. It is read once per
// batch trigger; the scheduler never holds a live view of it.
type Registry interface {
	// ListTargets returns all known targets, including blocked ones.
	// The scheduler filters blocked targets for scheduled batches.
	ListTargets(ctx context.Context) ([]Target, error)
}
