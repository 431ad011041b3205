package store

import (
	"errors"
	"fmt"
)

// StorageError indicates the local database could not serve an operation.
// The orchestrator treats it as fatal for the current sync pass only; the
// pass is retried on the next trigger.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ErrNotFound is returned when a record ID does not exist.
var ErrNotFound = errors.New("record not found")
