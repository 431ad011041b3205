package store

import (
	"context"

	"github.com/guardtrack/patrolsync/internal/model"
)

// PhotoEnqueued reports whether a photo record already references the
// given spool file. The spool watcher uses this to avoid double-enqueueing
// a file across restarts.
func (s *Store) PhotoEnqueued(ctx context.Context, filePath string) (bool, error) {
	query := `
	SELECT COUNT(*)
	FROM sync_records
	WHERE entity_type = ? AND json_extract(payload, '$.file_path') = ?
	`
	var n int
	err := s.conn.QueryRowContext(ctx, query, model.EntityPhoto, filePath).Scan(&n)
	if err != nil {
		return false, &StorageError{Op: "photo enqueued", Err: err}
	}
	return n > 0, nil
}
