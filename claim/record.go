package claim

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonlabs/claimd/errors"
)

// RecordStatus is the durable outcome of a claim attempt
type RecordStatus string

const (
	RecordStatusSuccess RecordStatus = "success"
	RecordStatusFailed  RecordStatus = "failed"
)

// ClaimDayLayout is the canonical format of a record's UTC calendar day
const ClaimDayLayout = "2006-01-02"

// Record is the durable trace of one claim attempt. For any account and any
// UTC calendar day, at most one Record with status=success exists; the store
// enforces this with a partial unique index.
type Record struct {
	ID           string       `json:"id"`
	AccountID    string       `json:"account_id"`
	BatchID      string       `json:"batch_id,omitempty"`
	Status       RecordStatus `json:"status"`
	ItemsClaimed []string     `json:"items_claimed,omitempty"`
	Error        string       `json:"error,omitempty"`
	ClaimedAt    time.Time    `json:"claimed_at"`
	ClaimDay     string       `json:"claim_day"`
	CreatedAt    time.Time    `json:"created_at"`
}

// NewRecord builds a record for an attempt that finished at claimedAt.
// ClaimDay is derived from claimedAt in UTC; wall-clock timezones never
// influence the idempotency window.
func NewRecord(accountID, batchID string, status RecordStatus, items []string, claimErr error, claimedAt time.Time) *Record {
	rec := &Record{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		BatchID:      batchID,
		Status:       status,
		ItemsClaimed: items,
		ClaimedAt:    claimedAt,
		ClaimDay:     claimedAt.UTC().Format(ClaimDayLayout),
		CreatedAt:    time.Now(),
	}
	if claimErr != nil {
		rec.Error = claimErr.Error()
	}
	return rec
}

// MarshalItems converts an items list to its JSON string form for storage
func MarshalItems(items []string) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal claimed items")
	}
	return string(data), nil
}

// UnmarshalItems converts a stored JSON string back into an items list
func UnmarshalItems(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal claimed items")
	}
	return items, nil
}
