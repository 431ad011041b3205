package syncer

import (
	"log"
	"os"

	"github.com/guardtrack/patrolsync/internal/model"
	"github.com/guardtrack/patrolsync/internal/remote"
)

// Outcome is the winner of a conflict resolution.
type Outcome int

const (
	// RemoteWins means the server's version overwrites the local record.
	RemoteWins Outcome = iota
	// LocalWins means the local version is kept and re-pushed.
	LocalWins
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case RemoteWins:
		return "remote"
	case LocalWins:
		return "local"
	default:
		return "unknown"
	}
}

// Resolver applies the server-wins conflict policy.
//
// The remote version wins whenever its last-modified timestamp is newer or
// equal. A strictly newer local version wins only for mutable entity types
// (activity reports); immutable events always take the server's copy.
// There is no field-level merge.
type Resolver struct {
	logger *log.Logger
}

// NewResolver creates a resolver. If logger is nil, a default logger
// writing to stderr is used.
func NewResolver(logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(os.Stderr, "[conflict] ", log.LstdFlags)
	}
	return &Resolver{logger: logger}
}

// Resolve decides which version of a record wins. Every resolution is
// logged regardless of outcome.
func (r *Resolver) Resolve(local *model.SyncRecord, rem remote.RemoteRecord) Outcome {
	outcome := RemoteWins
	if local.EntityType.Mutable() && local.LastModified.After(rem.LastModified) {
		outcome = LocalWins
	}

	r.logger.Printf("Conflict on %s record %s (local %s vs remote %s): %s wins",
		local.EntityType, local.UUID,
		local.LastModified.Format("2006-01-02T15:04:05.000Z07:00"),
		rem.LastModified.Format("2006-01-02T15:04:05.000Z07:00"),
		outcome)

	return outcome
}
