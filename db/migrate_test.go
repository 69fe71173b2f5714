package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrateCreatesSchema(t *testing.T) {
	conn := openMemoryDB(t)

	if err := Migrate(conn, nil); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	for _, table := range []string{"schema_migrations", "claim_records", "batch_runs", "claim_targets"} {
		var name string
		err := conn.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s to exist: %v", table, err)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn := openMemoryDB(t)

	if err := Migrate(conn, nil); err != nil {
		t.Fatalf("first Migrate failed: %v", err)
	}
	if err := Migrate(conn, nil); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	var count int
	if err := conn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4 recorded migrations, got %d", count)
	}
}

func TestSuccessUniquePerDay(t *testing.T) {
	conn := openMemoryDB(t)
	if err := Migrate(conn, nil); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	insert := `INSERT INTO claim_records (id, account_id, batch_id, status, claimed_at, claim_day)
	           VALUES (?, ?, ?, ?, ?, ?)`

	if _, err := conn.Exec(insert, "r1", "42", "b1", "success", "2026-08-28 10:00:00", "2026-08-28"); err != nil {
		t.Fatalf("first success insert failed: %v", err)
	}
	// Second success for the same account and day must violate the partial index
	if _, err := conn.Exec(insert, "r2", "42", "b2", "success", "2026-08-28 12:00:00", "2026-08-28"); err == nil {
		t.Error("expected unique constraint violation for duplicate success on same day")
	}
	// A failed record on the same day is allowed
	if _, err := conn.Exec(insert, "r3", "42", "b3", "failed", "2026-08-28 13:00:00", "2026-08-28"); err != nil {
		t.Errorf("failed record should not hit unique index: %v", err)
	}
	// Success on a different day is allowed
	if _, err := conn.Exec(insert, "r4", "42", "b4", "success", "2026-08-29 10:00:00", "2026-08-29"); err != nil {
		t.Errorf("success on next day should insert: %v", err)
	}
}
