// Package model defines the domain records captured on the device and the
// sync envelope that carries them through the outbound queue.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityType identifies which domain entity a sync record carries.
type EntityType string

const (
	// EntityTimeRecord is a clock-in/clock-out punch.
	EntityTimeRecord EntityType = "time_record"
	// EntityCheckpointVerification is a confirmed checkpoint scan.
	EntityCheckpointVerification EntityType = "checkpoint_verification"
	// EntityActivityReport is a free-text incident/activity report.
	EntityActivityReport EntityType = "activity_report"
	// EntityPhoto is a captured photo awaiting upload.
	EntityPhoto EntityType = "photo"
	// EntityLocationRecord is a GPS track point.
	EntityLocationRecord EntityType = "location_record"
)

// SyncPriority returns entity types in the order a sync pass must process
// them. Payroll and compliance data go first, bulky telemetry last.
func SyncPriority() []EntityType {
	return []EntityType{
		EntityTimeRecord,
		EntityCheckpointVerification,
		EntityActivityReport,
		EntityPhoto,
		EntityLocationRecord,
	}
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTimeRecord, EntityCheckpointVerification, EntityActivityReport,
		EntityPhoto, EntityLocationRecord:
		return true
	}
	return false
}

// Mutable reports whether local edits to this entity type may win a
// conflict. Punches, scans, photos and track points are immutable events;
// only reports can be amended after the fact.
func (t EntityType) Mutable() bool {
	return t == EntityActivityReport
}

// SyncStatus tracks a record's position in the sync lifecycle.
type SyncStatus string

const (
	// StatusPending means the record has not been confirmed by the server.
	StatusPending SyncStatus = "pending"
	// StatusInProgress means a sync pass is currently pushing the record.
	// This status must never survive a process restart.
	StatusInProgress SyncStatus = "in_progress"
	// StatusSynced means the server accepted the record.
	StatusSynced SyncStatus = "synced"
	// StatusFailed means the server permanently rejected the record.
	StatusFailed SyncStatus = "failed"
)

// SyncRecord is the envelope persisted for every locally captured entity.
//
// ID is the local autoincrement identity and never changes. RemoteID is
// assigned once, when the server accepts the record. Payload holds the
// entity-specific fields as JSON.
type SyncRecord struct {
	ID           int64           `json:"id"`
	UUID         string          `json:"uuid"`
	RemoteID     string          `json:"remote_id,omitempty"`
	EntityType   EntityType      `json:"entity_type"`
	Payload      json.RawMessage `json:"payload"`
	Status       SyncStatus      `json:"status"`
	LastModified time.Time       `json:"last_modified"`
	RetryCount   int             `json:"retry_count"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Validate checks the envelope's required fields.
func (r *SyncRecord) Validate() error {
	if !r.EntityType.Valid() {
		return fmt.Errorf("unknown entity type %q", r.EntityType)
	}
	if r.UUID == "" {
		return fmt.Errorf("uuid is required")
	}
	if len(r.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	if r.LastModified.IsZero() {
		return fmt.Errorf("last_modified is required")
	}
	return nil
}

// DecodePayload unmarshals the payload into the given entity struct.
func (r *SyncRecord) DecodePayload(v any) error {
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", r.EntityType, err)
	}
	return nil
}
