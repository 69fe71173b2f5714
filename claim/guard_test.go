package claim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/halcyonlabs/claimd/errors"
	claimdtesting "github.com/halcyonlabs/claimd/internal/testing"
)

func newTestGuard(t *testing.T) (*Guard, *RecordStore) {
	t.Helper()
	db := claimdtesting.CreateTestDB(t)
	store := NewRecordStore(db)
	return NewGuard(store, zap.NewNop().Sugar()), store
}

func TestGuardRecordsFirstSuccess(t *testing.T) {
	guard, store := newTestGuard(t)

	status, err := guard.CheckAndRecord(Outcome{
		AccountID:    "acct-42",
		BatchID:      "batch-1",
		ItemsClaimed: []string{"Cash"},
	})
	require.NoError(t, err)
	assert.Equal(t, RecordedSuccess, status)

	records, err := store.ListRecordsByBatch("batch-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, RecordStatusSuccess, records[0].Status)
	assert.Equal(t, []string{"Cash"}, records[0].ItemsClaimed)
}

func TestGuardSecondSuccessSameDayIsAlreadyClaimed(t *testing.T) {
	guard, store := newTestGuard(t)

	status, err := guard.CheckAndRecord(Outcome{AccountID: "acct-42", BatchID: "batch-1", ItemsClaimed: []string{"Cash"}})
	require.NoError(t, err)
	require.Equal(t, RecordedSuccess, status)

	status, err = guard.CheckAndRecord(Outcome{AccountID: "acct-42", BatchID: "batch-2", ItemsClaimed: []string{"Cash"}})
	require.NoError(t, err)
	assert.Equal(t, RecordedAlreadyClaimed, status)

	// No second row was inserted for the account
	recent, err := store.ListRecentRecords(10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestGuardNextDayAllowsNewSuccess(t *testing.T) {
	guard, _ := newTestGuard(t)

	day1 := time.Date(2026, 8, 27, 23, 50, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 28, 0, 10, 0, 0, time.UTC)

	guard.now = func() time.Time { return day1 }
	status, err := guard.CheckAndRecord(Outcome{AccountID: "acct-7", ItemsClaimed: []string{"Cash"}})
	require.NoError(t, err)
	require.Equal(t, RecordedSuccess, status)

	// 20 minutes later, but across the UTC midnight boundary
	guard.now = func() time.Time { return day2 }
	status, err = guard.CheckAndRecord(Outcome{AccountID: "acct-7", ItemsClaimed: []string{"Gems"}})
	require.NoError(t, err)
	assert.Equal(t, RecordedSuccess, status)
}

func TestGuardDayBoundaryIsUTC(t *testing.T) {
	guard, _ := newTestGuard(t)

	// 2026-08-27 20:00 in UTC-7 is 2026-08-28 03:00 UTC; a second claim at
	// 2026-08-28 10:00 UTC is the same UTC day despite the local date change
	local := time.FixedZone("UTC-7", -7*3600)
	guard.now = func() time.Time { return time.Date(2026, 8, 27, 20, 0, 0, 0, local) }
	status, err := guard.CheckAndRecord(Outcome{AccountID: "acct-8", ItemsClaimed: []string{"Cash"}})
	require.NoError(t, err)
	require.Equal(t, RecordedSuccess, status)

	guard.now = func() time.Time { return time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC) }
	status, err = guard.CheckAndRecord(Outcome{AccountID: "acct-8", ItemsClaimed: []string{"Cash"}})
	require.NoError(t, err)
	assert.Equal(t, RecordedAlreadyClaimed, status)
}

func TestGuardRecordsFailure(t *testing.T) {
	guard, store := newTestGuard(t)

	status, err := guard.CheckAndRecord(Outcome{
		AccountID: "acct-9",
		BatchID:   "batch-1",
		Err:       errors.New("session crashed"),
	})
	require.NoError(t, err)
	assert.Equal(t, RecordedFailed, status)

	records, err := store.ListRecordsByBatch("batch-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, RecordStatusFailed, records[0].Status)
	assert.Equal(t, "session crashed", records[0].Error)
}

func TestGuardFailureAfterSuccessStillRecorded(t *testing.T) {
	guard, store := newTestGuard(t)

	_, err := guard.CheckAndRecord(Outcome{AccountID: "acct-10", ItemsClaimed: []string{"Cash"}})
	require.NoError(t, err)

	// A later failed attempt the same day is still worth a failure record
	status, err := guard.CheckAndRecord(Outcome{AccountID: "acct-10", Err: errors.New("timeout")})
	require.NoError(t, err)
	assert.Equal(t, RecordedFailed, status)

	recent, err := store.ListRecentRecords(10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
