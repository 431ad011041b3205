package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/guardtrack/patrolsync/internal/model"
)

// Enqueue inserts a new record into the sync queue and assigns its local ID.
func (s *Store) Enqueue(rec *model.SyncRecord) error {
	return s.EnqueueContext(context.Background(), rec)
}

// EnqueueContext inserts a record with context support.
func (s *Store) EnqueueContext(ctx context.Context, rec *model.SyncRecord) error {
	if err := rec.Validate(); err != nil {
		return &StorageError{Op: "enqueue", Err: err}
	}

	query := `
	INSERT INTO sync_records (uuid, remote_id, entity_type, payload, status, retry_count, last_modified, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var remoteID sql.NullString
	if rec.RemoteID != "" {
		remoteID = sql.NullString{String: rec.RemoteID, Valid: true}
	}

	res, err := s.conn.ExecContext(ctx, query,
		rec.UUID,
		remoteID,
		rec.EntityType,
		string(rec.Payload),
		rec.Status,
		rec.RetryCount,
		rec.LastModified.Format(time.RFC3339Nano),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return &StorageError{Op: "enqueue", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return &StorageError{Op: "enqueue", Err: err}
	}
	rec.ID = id

	return nil
}

const recordColumns = `id, uuid, remote_id, entity_type, payload, status, retry_count, last_modified, created_at`

// GetPending returns pending records of the given type in insertion order.
func (s *Store) GetPending(ctx context.Context, entityType model.EntityType) ([]*model.SyncRecord, error) {
	query := `
	SELECT ` + recordColumns + `
	FROM sync_records
	WHERE entity_type = ? AND status = ?
	ORDER BY id ASC
	`

	rows, err := s.conn.QueryContext(ctx, query, entityType, model.StatusPending)
	if err != nil {
		return nil, &StorageError{Op: "get pending", Err: err}
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, &StorageError{Op: "get pending", Err: err}
	}
	return records, nil
}

// GetRecord retrieves a single record by local ID.
// Returns ErrNotFound if the record does not exist.
func (s *Store) GetRecord(ctx context.Context, id int64) (*model.SyncRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM sync_records WHERE id = ?`

	rec, err := scanRecord(s.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "get record", Err: err}
	}
	return rec, nil
}

// MarkInProgress claims a pending record for the current sync pass.
func (s *Store) MarkInProgress(ctx context.Context, id int64) error {
	return s.setStatus(ctx, "mark in progress", id, model.StatusInProgress, model.StatusPending)
}

// MarkSynced records server acceptance: status becomes synced, the remote
// ID is stored, and the retry counter resets.
func (s *Store) MarkSynced(ctx context.Context, id int64, remoteID string) error {
	query := `
	UPDATE sync_records
	SET status = ?, remote_id = ?, retry_count = 0
	WHERE id = ?
	`
	res, err := s.conn.ExecContext(ctx, query, model.StatusSynced, remoteID, id)
	if err != nil {
		return &StorageError{Op: "mark synced", Err: err}
	}
	return checkAffected(res, "mark synced")
}

// MarkFailed parks a permanently rejected record. Failed records stay
// queryable but are not retried automatically.
func (s *Store) MarkFailed(ctx context.Context, id int64) error {
	query := `
	UPDATE sync_records
	SET status = ?, retry_count = retry_count + 1
	WHERE id = ?
	`
	res, err := s.conn.ExecContext(ctx, query, model.StatusFailed, id)
	if err != nil {
		return &StorageError{Op: "mark failed", Err: err}
	}
	return checkAffected(res, "mark failed")
}

// Requeue returns an in-progress record to pending after a transient
// failure, bumping its retry counter. The record is picked up again on the
// next pass.
func (s *Store) Requeue(ctx context.Context, id int64) error {
	query := `
	UPDATE sync_records
	SET status = ?, retry_count = retry_count + 1
	WHERE id = ?
	`
	res, err := s.conn.ExecContext(ctx, query, model.StatusPending, id)
	if err != nil {
		return &StorageError{Op: "requeue", Err: err}
	}
	return checkAffected(res, "requeue")
}

// Release returns a claimed record to pending without bumping its retry
// counter. Used when a pass gives a record back untried (open breaker,
// cancellation).
func (s *Store) Release(ctx context.Context, id int64) error {
	return s.setStatus(ctx, "release", id, model.StatusPending, model.StatusInProgress)
}

// ResetInProgress returns all in-progress records to pending. Called once
// at startup to recover records orphaned by an interrupted sync pass.
// Returns the number of recovered records.
func (s *Store) ResetInProgress(ctx context.Context) (int64, error) {
	query := `UPDATE sync_records SET status = ? WHERE status = ?`
	res, err := s.conn.ExecContext(ctx, query, model.StatusPending, model.StatusInProgress)
	if err != nil {
		return 0, &StorageError{Op: "reset in progress", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &StorageError{Op: "reset in progress", Err: err}
	}
	return n, nil
}

// UpdatePayload replaces a record's payload and returns it to pending so it
// is re-pushed. Used when a mutable entity (activity report) is amended
// locally or wins a conflict.
func (s *Store) UpdatePayload(ctx context.Context, id int64, payload []byte, modified time.Time) error {
	query := `
	UPDATE sync_records
	SET payload = ?, last_modified = ?, status = ?
	WHERE id = ?
	`
	res, err := s.conn.ExecContext(ctx, query,
		string(payload), modified.Format(time.RFC3339Nano), model.StatusPending, id)
	if err != nil {
		return &StorageError{Op: "update payload", Err: err}
	}
	return checkAffected(res, "update payload")
}

// ApplyRemote overwrites a record's payload with the server's version and
// marks it synced. Used when the server wins a conflict.
func (s *Store) ApplyRemote(ctx context.Context, id int64, remoteID string, payload []byte, modified time.Time) error {
	query := `
	UPDATE sync_records
	SET payload = ?, last_modified = ?, remote_id = ?, status = ?, retry_count = 0
	WHERE id = ?
	`
	res, err := s.conn.ExecContext(ctx, query,
		string(payload), modified.Format(time.RFC3339Nano), remoteID, model.StatusSynced, id)
	if err != nil {
		return &StorageError{Op: "apply remote", Err: err}
	}
	return checkAffected(res, "apply remote")
}

// Counts summarizes queue state by status.
type Counts struct {
	Pending    int
	InProgress int
	Synced     int
	Failed     int
}

// Total returns the number of records across all statuses.
func (c Counts) Total() int {
	return c.Pending + c.InProgress + c.Synced + c.Failed
}

// CountByStatus returns record counts grouped by sync status.
func (s *Store) CountByStatus(ctx context.Context) (Counts, error) {
	query := `SELECT status, COUNT(*) FROM sync_records GROUP BY status`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return Counts{}, &StorageError{Op: "count by status", Err: err}
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var status model.SyncStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, &StorageError{Op: "count by status", Err: err}
		}
		switch status {
		case model.StatusPending:
			c.Pending = n
		case model.StatusInProgress:
			c.InProgress = n
		case model.StatusSynced:
			c.Synced = n
		case model.StatusFailed:
			c.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return Counts{}, &StorageError{Op: "count by status", Err: err}
	}

	return c, nil
}

// PendingCount returns the number of records still awaiting sync,
// including failed records that a user may retry manually.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_records WHERE status = ?`, model.StatusPending).Scan(&n)
	if err != nil {
		return 0, &StorageError{Op: "pending count", Err: err}
	}
	return n, nil
}

// ListRecent returns the most recently created records, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*model.SyncRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM sync_records ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "list recent", Err: err}
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, &StorageError{Op: "list recent", Err: err}
	}
	return records, nil
}

// setStatus updates a record's status, optionally requiring a current status.
func (s *Store) setStatus(ctx context.Context, op string, id int64, to, from model.SyncStatus) error {
	query := `UPDATE sync_records SET status = ? WHERE id = ? AND status = ?`
	res, err := s.conn.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return &StorageError{Op: op, Err: err}
	}
	return checkAffected(res, op)
}

func checkAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Op: op, Err: err}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
