package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonlabs/claimd/errors"
	claimdtesting "github.com/halcyonlabs/claimd/internal/testing"
)

func TestAddAndListTargets(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	reg := NewSQLiteRegistry(db)
	ctx := context.Background()

	require.NoError(t, reg.AddTarget(ctx, "acct-1", "Alice"))
	require.NoError(t, reg.AddTarget(ctx, "acct-2", ""))

	targets, err := reg.ListTargets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "acct-1", targets[0].AccountID)
	assert.Equal(t, "Alice", targets[0].DisplayName)
	assert.Empty(t, targets[1].DisplayName)
	assert.False(t, targets[0].Blocked)
}

func TestAddTargetWithoutDisplayName(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	reg := NewSQLiteRegistry(db)
	ctx := context.Background()

	// display_name is NOT NULL DEFAULT ''; an empty name must insert cleanly.
	require.NoError(t, reg.AddTarget(ctx, "acct-1", ""))

	targets, err := reg.ListTargets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "acct-1", targets[0].AccountID)
	assert.Empty(t, targets[0].DisplayName)
}

func TestAddTargetUpsertsDisplayName(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	reg := NewSQLiteRegistry(db)
	ctx := context.Background()

	require.NoError(t, reg.AddTarget(ctx, "acct-1", "Old Name"))
	require.NoError(t, reg.AddTarget(ctx, "acct-1", "New Name"))

	targets, err := reg.ListTargets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "New Name", targets[0].DisplayName)
}

func TestAddTargetRejectsEmptyID(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	reg := NewSQLiteRegistry(db)

	assert.Error(t, reg.AddTarget(context.Background(), "", "nameless"))
}

func TestSetBlocked(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	reg := NewSQLiteRegistry(db)
	ctx := context.Background()

	require.NoError(t, reg.AddTarget(ctx, "acct-1", ""))
	require.NoError(t, reg.SetBlocked(ctx, "acct-1", true))

	targets, err := reg.ListTargets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.True(t, targets[0].Blocked)

	err = reg.SetBlocked(ctx, "no-such-account", true)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestRemoveTarget(t *testing.T) {
	db := claimdtesting.CreateTestDB(t)
	reg := NewSQLiteRegistry(db)
	ctx := context.Background()

	require.NoError(t, reg.AddTarget(ctx, "acct-1", ""))
	require.NoError(t, reg.RemoveTarget(ctx, "acct-1"))

	targets, err := reg.ListTargets(ctx)
	require.NoError(t, err)
	assert.Empty(t, targets)

	err = reg.RemoveTarget(ctx, "acct-1")
	assert.True(t, errors.IsNotFoundError(err))
}
