// Package store provides the local SQLite entity store that backs the
// outbound sync queue.
//
// The database runs embedded on the device with WAL mode so that capture
// writes (punches, track points, photos) never block the sync pass reading
// the queue.
//
// Workflow:
//  1. Capture commands insert pending records (Enqueue)
//  2. The sync pass claims them (MarkInProgress) in insertion order
//  3. Accepted records get their server ID (MarkSynced), rejected ones are
//     parked (MarkFailed), transient failures go back to pending (Requeue)
//  4. On startup ResetInProgress recovers records orphaned by a crash
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/guardtrack/patrolsync/internal/model"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the on-device SQLite database holding the sync queue.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a connection to the device database at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// Missing parent directories are created. The caller MUST call Close()
// when done.
//
// Example:
//
//	st, err := store.Open(filepath.Join(dataDir, "patrol.db"))
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &StorageError{Op: "open", Err: fmt.Errorf("create database directory: %w", err)}
	}

	connStr := fmt.Sprintf("file:%s", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, &StorageError{Op: "open", Err: fmt.Errorf("ping: %w", err)}
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	st := &Store{conn: conn, path: path}

	// WAL for concurrent reads during capture writes
	if _, err := st.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = st.Close()
		return nil, &StorageError{Op: "open", Err: fmt.Errorf("enable WAL mode: %w", err)}
	}
	if _, err := st.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = st.Close()
		return nil, &StorageError{Op: "open", Err: fmt.Errorf("set busy timeout: %w", err)}
	}
	if _, err := st.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = st.Close()
		return nil, &StorageError{Op: "open", Err: fmt.Errorf("enable foreign keys: %w", err)}
	}

	return st, nil
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return &StorageError{Op: "close", Err: err}
	}

	s.conn = nil
	return nil
}

// InitSchema creates the sync queue schema if it doesn't exist.
// Idempotent - safe to call multiple times.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		remote_id TEXT,
		entity_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_modified TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Sync pass scans by type in insertion order
	CREATE INDEX IF NOT EXISTS idx_records_type_status
	    ON sync_records(entity_type, status, id);
	CREATE INDEX IF NOT EXISTS idx_records_status ON sync_records(status);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return &StorageError{Op: "init schema", Err: err}
	}

	return nil
}

// scanRecords reads sync records from query results.
func scanRecords(rows *sql.Rows) ([]*model.SyncRecord, error) {
	var records []*model.SyncRecord

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "scan records", Err: err}
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.SyncRecord, error) {
	var rec model.SyncRecord
	var remoteID sql.NullString
	var payload, lastModified, createdAt string

	err := row.Scan(
		&rec.ID,
		&rec.UUID,
		&remoteID,
		&rec.EntityType,
		&payload,
		&rec.Status,
		&rec.RetryCount,
		&lastModified,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if remoteID.Valid {
		rec.RemoteID = remoteID.String
	}
	rec.Payload = []byte(payload)

	if t, err := time.Parse(time.RFC3339Nano, lastModified); err == nil {
		rec.LastModified = t
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}

	return &rec, nil
}
