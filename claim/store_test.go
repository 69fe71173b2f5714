package claim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonlabs/claimd/errors"
	claimdtesting "github.com/halcyonlabs/claimd/internal/testing"
)

func TestInsertAndGetRecord(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	store := NewRecordStore(db)

	rec := NewRecord("acct-1", "batch-1", RecordStatusSuccess, []string{"Cash", "Gems"}, nil, time.Now())
	require.NoError(t, store.InsertRecord(rec))

	got, err := store.GetRecord(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", got.AccountID)
	assert.Equal(t, "batch-1", got.BatchID)
	assert.Equal(t, RecordStatusSuccess, got.Status)
	assert.Equal(t, []string{"Cash", "Gems"}, got.ItemsClaimed)
	assert.Empty(t, got.Error)
}

func TestGetRecordNotFound(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	store := NewRecordStore(db)

	_, err := store.GetRecord("no-such-record")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestInsertDuplicateSuccessSameDay(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	store := NewRecordStore(db)

	now := time.Now().UTC()
	first := NewRecord("acct-42", "batch-1", RecordStatusSuccess, []string{"Cash"}, nil, now)
	require.NoError(t, store.InsertRecord(first))

	second := NewRecord("acct-42", "batch-2", RecordStatusSuccess, []string{"Cash"}, nil, now)
	err := store.InsertRecord(second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyClaimed), "unique violation should map to ErrAlreadyClaimed, got: %v", err)
}

func TestInsertFailedRecordsNeverConflict(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	store := NewRecordStore(db)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		rec := NewRecord("acct-9", "batch-1", RecordStatusFailed, nil, errors.New("session crashed"), now)
		require.NoError(t, store.InsertRecord(rec))
	}

	// A success after failures on the same day is still allowed
	rec := NewRecord("acct-9", "batch-1", RecordStatusSuccess, []string{"Cash"}, nil, now)
	require.NoError(t, store.InsertRecord(rec))
}

func TestHasSuccessOnDay(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	store := NewRecordStore(db)

	now := time.Now().UTC()
	today := now.Format(ClaimDayLayout)
	yesterday := now.AddDate(0, 0, -1).Format(ClaimDayLayout)

	exists, err := store.HasSuccessOnDay("acct-1", today)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.InsertRecord(NewRecord("acct-1", "batch-1", RecordStatusSuccess, nil, nil, now)))

	exists, err = store.HasSuccessOnDay("acct-1", today)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.HasSuccessOnDay("acct-1", yesterday)
	require.NoError(t, err)
	assert.False(t, exists, "success today should not count for yesterday")

	// Failed records never satisfy the check
	require.NoError(t, store.InsertRecord(NewRecord("acct-2", "batch-1", RecordStatusFailed, nil, errors.New("boom"), now)))
	exists, err = store.HasSuccessOnDay("acct-2", today)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListRecordsByBatch(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	store := NewRecordStore(db)

	now := time.Now().UTC()
	require.NoError(t, store.InsertRecord(NewRecord("acct-1", "batch-a", RecordStatusSuccess, []string{"Cash"}, nil, now)))
	require.NoError(t, store.InsertRecord(NewRecord("acct-2", "batch-a", RecordStatusFailed, nil, errors.New("boom"), now.Add(time.Second))))
	require.NoError(t, store.InsertRecord(NewRecord("acct-3", "batch-b", RecordStatusSuccess, nil, nil, now)))

	records, err := store.ListRecordsByBatch("batch-a")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "acct-1", records[0].AccountID)
	assert.Equal(t, "acct-2", records[1].AccountID)
	assert.Equal(t, "boom", records[1].Error)
}

func TestListRecordsByAccount(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	store := NewRecordStore(db)

	now := time.Now().UTC()
	require.NoError(t, store.InsertRecord(NewRecord("acct-1", "batch-1", RecordStatusSuccess, nil, nil, now.AddDate(0, 0, -2))))
	require.NoError(t, store.InsertRecord(NewRecord("acct-1", "batch-2", RecordStatusSuccess, nil, nil, now)))

	records, err := store.ListRecordsByAccount("acct-1", now.AddDate(0, 0, -1), now.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "batch-2", records[0].BatchID)
}

func TestListRecentRecords(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	store := NewRecordStore(db)

	now := time.Now().UTC()
	require.NoError(t, store.InsertRecord(NewRecord("acct-1", "batch-1", RecordStatusSuccess, nil, nil, now.Add(-time.Hour))))
	require.NoError(t, store.InsertRecord(NewRecord("acct-2", "batch-1", RecordStatusSuccess, nil, nil, now)))

	records, err := store.ListRecentRecords(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "acct-2", records[0].AccountID)
}
