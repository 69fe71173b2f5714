package claim

import (
	"database/sql"
	"fmt"
)

// RecordScanArgs holds the nullable columns needed when scanning a claim
// record from a database row.
type RecordScanArgs struct {
	ItemsJSON sql.NullString
	ErrorMsg  sql.NullString
}

// GetRecordScanArgs returns a RecordScanArgs struct ready for scanning
func GetRecordScanArgs() *RecordScanArgs {
	return &RecordScanArgs{}
}

// GetRecordScanTargets returns scan destinations for the record and its
// nullable args, in the order of StandardRecordSelectColumns
func GetRecordScanTargets(rec *Record, args *RecordScanArgs) []interface{} {
	return []interface{}{
		&rec.ID,
		&rec.AccountID,
		&rec.BatchID,
		&rec.Status,
		&args.ItemsJSON,
		&args.ErrorMsg,
		&rec.ClaimedAt,
		&rec.ClaimDay,
		&rec.CreatedAt,
	}
}

// ProcessRecordScanArgs copies the scanned nullable values into the record
func ProcessRecordScanArgs(rec *Record, args *RecordScanArgs) error {
	if args.ItemsJSON.Valid {
		items, err := UnmarshalItems(args.ItemsJSON.String)
		if err != nil {
			return fmt.Errorf("failed to unmarshal items for record %s: %w", rec.ID, err)
		}
		rec.ItemsClaimed = items
	}
	if args.ErrorMsg.Valid {
		rec.Error = args.ErrorMsg.String
	}
	return nil
}

// ScanRecordFromRows scans a single record from sql.Rows (for use in loops)
func ScanRecordFromRows(rows *sql.Rows, rec *Record) error {
	args := GetRecordScanArgs()
	targets := GetRecordScanTargets(rec, args)

	if err := rows.Scan(targets...); err != nil {
		return err
	}

	return ProcessRecordScanArgs(rec, args)
}

// StandardRecordSelectColumns returns the standard column list for record
// SELECT queries
func StandardRecordSelectColumns() string {
	return `id, account_id, batch_id, status,
		items_claimed, error,
		claimed_at, claim_day, created_at`
}
