package claim

import (
	"time"

	"go.uber.org/zap"

	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/sym"
)

// RecordedStatus is the guard's verdict on a finished claim attempt
type RecordedStatus string

const (
	RecordedSuccess        RecordedStatus = "success"
	RecordedAlreadyClaimed RecordedStatus = "already_claimed"
	RecordedFailed         RecordedStatus = "failed"
)

// Guard enforces at most one successful claim record per account per UTC
// day. The fast path is a read against today's records; the database's
// partial unique index backstops the race between concurrent jobs for the
// same account, so the guard is exactly-once even across overlapping
// batches.
type Guard struct {
	store  *RecordStore
	logger *zap.SugaredLogger

	// now is injectable so tests can pin the UTC day boundary
	now func() time.Time
}

// NewGuard creates an idempotency guard over the record store
func NewGuard(store *RecordStore, logger *zap.SugaredLogger) *Guard {
	return &Guard{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Outcome describes a finished automation attempt awaiting persistence
type Outcome struct {
	AccountID    string
	BatchID      string
	ItemsClaimed []string
	Err          error
}

// CheckAndRecord persists the outcome of one claim attempt and reports how
// it was classified.
//
// A successful outcome for an account that already holds a success record
// for the current UTC day resolves to RecordedAlreadyClaimed with no insert;
// that is a benign no-op, not an error. Any other outcome is written as a
// single new record. Persistence failures are returned to the caller, which
// converts them into a failed terminal job state.
func (g *Guard) CheckAndRecord(outcome Outcome) (RecordedStatus, error) {
	claimedAt := g.now()
	claimDay := claimedAt.UTC().Format(ClaimDayLayout)

	if outcome.Err == nil {
		exists, err := g.store.HasSuccessOnDay(outcome.AccountID, claimDay)
		if err != nil {
			return "", errors.Wrap(err, "failed to check existing claim records")
		}
		if exists {
			g.logger.Debugw(sym.Claim+" Account already claimed today",
				"account_id", outcome.AccountID,
				"claim_day", claimDay)
			return RecordedAlreadyClaimed, nil
		}

		rec := NewRecord(outcome.AccountID, outcome.BatchID, RecordStatusSuccess, outcome.ItemsClaimed, nil, claimedAt)
		if err := g.store.InsertRecord(rec); err != nil {
			// Lost the race to a concurrent job for the same account; the
			// unique index rejected the second success row
			if errors.Is(err, errors.ErrAlreadyClaimed) {
				g.logger.Debugw(sym.Claim+" Concurrent duplicate success resolved as already claimed",
					"account_id", outcome.AccountID,
					"claim_day", claimDay)
				return RecordedAlreadyClaimed, nil
			}
			return "", errors.Wrap(err, "failed to persist success record")
		}
		return RecordedSuccess, nil
	}

	rec := NewRecord(outcome.AccountID, outcome.BatchID, RecordStatusFailed, nil, outcome.Err, claimedAt)
	if err := g.store.InsertRecord(rec); err != nil {
		return "", errors.Wrap(err, "failed to persist failure record")
	}
	return RecordedFailed, nil
}
