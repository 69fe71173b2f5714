package claim

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonlabs/claimd/errors"
)

// TriggerKind records how a batch came to run
type TriggerKind string

const (
	TriggerScheduled TriggerKind = "scheduled"
	TriggerManual    TriggerKind = "manual"
)

// BatchRun is the durable aggregate for one scheduler invocation. It is
// created at trigger time and closed once every job has reached a terminal
// state.
type BatchRun struct {
	ID             string      `json:"id"`
	TriggeredBy    TriggerKind `json:"triggered_by"`
	StartedAt      time.Time   `json:"started_at"`
	EndedAt        *time.Time  `json:"ended_at,omitempty"`
	TotalTargets   int         `json:"total_targets"`
	Succeeded      int         `json:"succeeded"`
	Failed         int         `json:"failed"`
	AlreadyClaimed int         `json:"already_claimed"`
}

// NewBatchRun creates an open batch covering totalTargets accounts
func NewBatchRun(trigger TriggerKind, totalTargets int) *BatchRun {
	return &BatchRun{
		ID:           uuid.NewString(),
		TriggeredBy:  trigger,
		StartedAt:    time.Now(),
		TotalTargets: totalTargets,
	}
}

// TotalAttempted returns the number of jobs that reached a terminal state
func (b *BatchRun) TotalAttempted() int {
	return b.Succeeded + b.Failed + b.AlreadyClaimed
}

// Finalize closes the batch with its terminal counts
func (b *BatchRun) Finalize(succeeded, failed, alreadyClaimed int) {
	now := time.Now()
	b.Succeeded = succeeded
	b.Failed = failed
	b.AlreadyClaimed = alreadyClaimed
	b.EndedAt = &now
}

// BatchStore handles persistence of batch runs
type BatchStore struct {
	db *sql.DB
}

// NewBatchStore creates a new batch run store
func NewBatchStore(db *sql.DB) *BatchStore {
	return &BatchStore{db: db}
}

// CreateBatchRun inserts an open batch run
func (s *BatchStore) CreateBatchRun(batch *BatchRun) error {
	query := `
		INSERT INTO batch_runs (
			id, triggered_by, started_at,
			total_targets, succeeded, failed, already_claimed
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		batch.ID,
		batch.TriggeredBy,
		batch.StartedAt,
		batch.TotalTargets,
		batch.Succeeded,
		batch.Failed,
		batch.AlreadyClaimed,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create batch run")
	}

	return nil
}

// CloseBatchRun writes a finalized batch's end time and counts
func (s *BatchStore) CloseBatchRun(batch *BatchRun) error {
	query := `
		UPDATE batch_runs
		SET ended_at = ?,
		    total_targets = ?,
		    succeeded = ?,
		    failed = ?,
		    already_claimed = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query,
		batch.EndedAt,
		batch.TotalTargets,
		batch.Succeeded,
		batch.Failed,
		batch.AlreadyClaimed,
		batch.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to close batch run")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("batch run not found: %s", batch.ID)
	}

	return nil
}

// GetBatchRun retrieves a batch run by ID
func (s *BatchStore) GetBatchRun(id string) (*BatchRun, error) {
	query := `
		SELECT id, triggered_by, started_at, ended_at,
		       total_targets, succeeded, failed, already_claimed
		FROM batch_runs
		WHERE id = ?
	`

	var batch BatchRun
	var endedAt sql.NullTime

	err := s.db.QueryRow(query, id).Scan(
		&batch.ID,
		&batch.TriggeredBy,
		&batch.StartedAt,
		&endedAt,
		&batch.TotalTargets,
		&batch.Succeeded,
		&batch.Failed,
		&batch.AlreadyClaimed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("batch run not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get batch run")
	}

	if endedAt.Valid {
		batch.EndedAt = &endedAt.Time
	}

	return &batch, nil
}

// ListBatchRuns returns the most recent batch runs, newest first
func (s *BatchStore) ListBatchRuns(limit int) ([]*BatchRun, error) {
	query := `
		SELECT id, triggered_by, started_at, ended_at,
		       total_targets, succeeded, failed, already_claimed
		FROM batch_runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list batch runs")
	}
	defer rows.Close()

	var batches []*BatchRun
	for rows.Next() {
		var batch BatchRun
		var endedAt sql.NullTime

		if err := rows.Scan(
			&batch.ID,
			&batch.TriggeredBy,
			&batch.StartedAt,
			&endedAt,
			&batch.TotalTargets,
			&batch.Succeeded,
			&batch.Failed,
			&batch.AlreadyClaimed,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan batch run")
		}
		if endedAt.Valid {
			batch.EndedAt = &endedAt.Time
		}
		batches = append(batches, &batch)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating batch runs")
	}

	return batches, nil
}
