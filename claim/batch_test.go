package claim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonlabs/claimd/errors"
	claimdtesting "github.com/halcyonlabs/claimd/internal/testing"
)

func TestCreateAndCloseBatchRun(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	store := NewBatchStore(db)

	batch := NewBatchRun(TriggerManual, 5)
	require.NoError(t, store.CreateBatchRun(batch))

	open, err := store.GetBatchRun(batch.ID)
	require.NoError(t, err)
	assert.Nil(t, open.EndedAt)
	assert.Equal(t, 5, open.TotalTargets)
	assert.Equal(t, TriggerManual, open.TriggeredBy)

	batch.Finalize(3, 1, 1)
	require.NoError(t, store.CloseBatchRun(batch))

	closed, err := store.GetBatchRun(batch.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.EndedAt)
	assert.Equal(t, 3, closed.Succeeded)
	assert.Equal(t, 1, closed.Failed)
	assert.Equal(t, 1, closed.AlreadyClaimed)
	assert.Equal(t, closed.TotalTargets, closed.TotalAttempted())
}

func TestCloseUnknownBatchRun(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	store := NewBatchStore(db)

	batch := NewBatchRun(TriggerScheduled, 1)
	batch.Finalize(1, 0, 0)
	err := store.CloseBatchRun(batch)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestListBatchRuns(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	store := NewBatchStore(db)

	first := NewBatchRun(TriggerScheduled, 2)
	first.StartedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.CreateBatchRun(first))

	second := NewBatchRun(TriggerManual, 3)
	require.NoError(t, store.CreateBatchRun(second))

	batches, err := store.ListBatchRuns(10)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, second.ID, batches[0].ID, "newest batch first")
	assert.Equal(t, first.ID, batches[1].ID)
}
