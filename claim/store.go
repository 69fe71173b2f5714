package claim

import (
	"database/sql"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/halcyonlabs/claimd/errors"
)

// RecordStore handles persistence of durable claim records
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore creates a new claim record store
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

// InsertRecord inserts a new claim record.
//
// The claim_records table carries a partial unique index over
// (account_id, claim_day) restricted to status=success, so a concurrent
// duplicate success insert fails at the database rather than racing a
// read-then-write. That violation is surfaced as ErrAlreadyClaimed.
func (s *RecordStore) InsertRecord(rec *Record) error {
	itemsJSON, err := MarshalItems(rec.ItemsClaimed)
	if err != nil {
		return errors.Wrap(err, "failed to marshal claimed items")
	}

	query := `
		INSERT INTO claim_records (
			id, account_id, batch_id, status,
			items_claimed, error,
			claimed_at, claim_day, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	items := sql.NullString{String: itemsJSON, Valid: itemsJSON != ""}
	errMsg := sql.NullString{String: rec.Error, Valid: rec.Error != ""}

	_, err = s.db.Exec(query,
		rec.ID,
		rec.AccountID,
		rec.BatchID,
		rec.Status,
		items,
		errMsg,
		rec.ClaimedAt,
		rec.ClaimDay,
		rec.CreatedAt,
	)

	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return errors.WithDetail(
				errors.Wrapf(errors.ErrAlreadyClaimed, "account %s already has a success record for %s", rec.AccountID, rec.ClaimDay),
				"account_id: "+rec.AccountID)
		}
		return errors.Wrap(err, "failed to insert claim record")
	}

	return nil
}

// HasSuccessOnDay reports whether a success record exists for the account on
// the given UTC calendar day
func (s *RecordStore) HasSuccessOnDay(accountID, claimDay string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM claim_records
		WHERE account_id = ?
		  AND claim_day = ?
		  AND status = 'success'
	`

	var count int
	if err := s.db.QueryRow(query, accountID, claimDay).Scan(&count); err != nil {
		return false, errors.Wrap(err, "failed to check for existing success record")
	}

	return count > 0, nil
}

// GetRecord retrieves a record by ID
func (s *RecordStore) GetRecord(id string) (*Record, error) {
	query := `SELECT ` + StandardRecordSelectColumns() + ` FROM claim_records WHERE id = ?`

	var rec Record
	args := GetRecordScanArgs()
	targets := GetRecordScanTargets(&rec, args)

	err := s.db.QueryRow(query, id).Scan(targets...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("claim record not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get claim record")
	}

	if err := ProcessRecordScanArgs(&rec, args); err != nil {
		return nil, err
	}

	return &rec, nil
}

// ListRecordsByBatch returns all records written for one batch, oldest first
func (s *RecordStore) ListRecordsByBatch(batchID string) ([]*Record, error) {
	query := `SELECT ` + StandardRecordSelectColumns() + `
		FROM claim_records
		WHERE batch_id = ?
		ORDER BY claimed_at ASC`

	rows, err := s.db.Query(query, batchID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list records by batch")
	}
	defer rows.Close()

	return scanRecords(rows, "batch records")
}

// ListRecordsByAccount returns records for one account within a time range,
// newest first
func (s *RecordStore) ListRecordsByAccount(accountID string, from, to time.Time, limit int) ([]*Record, error) {
	query := `SELECT ` + StandardRecordSelectColumns() + `
		FROM claim_records
		WHERE account_id = ?
		  AND claimed_at >= ?
		  AND claimed_at < ?
		ORDER BY claimed_at DESC
		LIMIT ?`

	rows, err := s.db.Query(query, accountID, from, to, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list records by account")
	}
	defer rows.Close()

	return scanRecords(rows, "account records")
}

// ListRecentRecords returns the most recently written records
func (s *RecordStore) ListRecentRecords(limit int) ([]*Record, error) {
	query := `SELECT ` + StandardRecordSelectColumns() + `
		FROM claim_records
		ORDER BY claimed_at DESC
		LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recent records")
	}
	defer rows.Close()

	return scanRecords(rows, "recent records")
}

// scanRecords is a helper that scans multiple records from query rows
func scanRecords(rows *sql.Rows, context string) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		var rec Record
		if err := ScanRecordFromRows(rows, &rec); err != nil {
			return nil, errors.Wrap(err, "failed to scan claim record")
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", context)
	}

	return records, nil
}
