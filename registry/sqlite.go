// Package registry provides the account registry backing batch target
// snapshots.
package registry

import (
	"context"
	"database/sql"

	"github.com/halcyonlabs/claimd/claim"
	"github.com/halcyonlabs/claimd/errors"
)

// SQLiteRegistry reads claim targets from the claim_targets table. It is the
// default registry for a standalone daemon: targets are managed through the
// CLI and survive restarts.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry creates a registry over the claimd database
func NewSQLiteRegistry(db *sql.DB) *SQLiteRegistry {
	return &SQLiteRegistry{db: db}
}

// ListTargets returns every registered target, blocked ones included.
// The scheduler decides what to exclude.
func (r *SQLiteRegistry) ListTargets(ctx context.Context) ([]claim.Target, error) {
	query := `
		SELECT account_id, display_name, blocked
		FROM claim_targets
		ORDER BY account_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list claim targets")
	}
	defer rows.Close()

	var targets []claim.Target
	for rows.Next() {
		var target claim.Target
		var blocked int

		if err := rows.Scan(&target.AccountID, &target.DisplayName, &blocked); err != nil {
			return nil, errors.Wrap(err, "failed to scan claim target")
		}
		target.Blocked = blocked != 0

		targets = append(targets, target)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating claim targets")
	}

	return targets, nil
}

// AddTarget registers an account, or updates its display name if it already
// exists
func (r *SQLiteRegistry) AddTarget(ctx context.Context, accountID, displayName string) error {
	if accountID == "" {
		return errors.New("account ID cannot be empty")
	}

	query := `
		INSERT INTO claim_targets (account_id, display_name, blocked)
		VALUES (?, ?, 0)
		ON CONFLICT(account_id) DO UPDATE SET display_name = excluded.display_name
	`

	if _, err := r.db.ExecContext(ctx, query, accountID, displayName); err != nil {
		return errors.Wrapf(err, "failed to add claim target %s", accountID)
	}

	return nil
}

// RemoveTarget deletes an account from the registry
func (r *SQLiteRegistry) RemoveTarget(ctx context.Context, accountID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM claim_targets WHERE account_id = ?`, accountID)
	if err != nil {
		return errors.Wrapf(err, "failed to remove claim target %s", accountID)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("claim target not found: %s", accountID)
	}

	return nil
}

// SetBlocked flips an account's blocked flag
func (r *SQLiteRegistry) SetBlocked(ctx context.Context, accountID string, blocked bool) error {
	value := 0
	if blocked {
		value = 1
	}

	result, err := r.db.ExecContext(ctx, `UPDATE claim_targets SET blocked = ? WHERE account_id = ?`, value, accountID)
	if err != nil {
		return errors.Wrapf(err, "failed to update claim target %s", accountID)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("claim target not found: %s", accountID)
	}

	return nil
}
