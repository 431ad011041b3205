package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TransientError wraps a failure that is worth retrying: a transport
// error, a timeout, or a 5xx from the backend.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// RemoteRejectedError is a permanent per-record rejection (4xx). The
// record is marked failed and not retried automatically.
type RemoteRejectedError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteRejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("rejected by server (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("rejected by server (%d): %s", e.StatusCode, e.Message)
}

// AuthRequired reports whether the rejection was a token-expiry 401.
// Re-authentication is handled outside the sync core.
func (e *RemoteRejectedError) AuthRequired() bool {
	return e.StatusCode == 401
}

// IsRejected reports whether err is a permanent server rejection.
func IsRejected(err error) bool {
	var re *RemoteRejectedError
	return errors.As(err, &re)
}

// RemoteRecord is the server's copy of a record, returned when a push hits
// a version conflict.
type RemoteRecord struct {
	RemoteID     string          `json:"id"`
	Payload      json.RawMessage `json:"payload"`
	LastModified time.Time       `json:"last_modified"`
}

// ConflictError signals that the server holds a different version of the
// record being pushed (HTTP 409). It is not a failure: the conflict
// resolver decides which side wins.
type ConflictError struct {
	Remote RemoteRecord
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict with server version %s (modified %s)",
		e.Remote.RemoteID, e.Remote.LastModified.Format(time.RFC3339))
}

// AsConflict returns the conflict details if err is a ConflictError.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
