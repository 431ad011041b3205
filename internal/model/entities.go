package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PunchType is the direction of a time punch.
type PunchType string

const (
	PunchIn  PunchType = "in"
	PunchOut PunchType = "out"
)

// TimeRecord is a clock-in or clock-out punch with the device position at
// the moment of punching.
type TimeRecord struct {
	GuardID   string    `json:"guard_id"`
	SiteID    string    `json:"site_id"`
	Punch     PunchType `json:"punch"`
	PunchedAt time.Time `json:"punched_at"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// LocationRecord is a single GPS track point. Points are batched into one
// request when synced.
type LocationRecord struct {
	GuardID    string    `json:"guard_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy_m,omitempty"`
	Speed      float64   `json:"speed_mps,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// CheckpointVerification records a guard confirming presence at a route
// checkpoint.
type CheckpointVerification struct {
	GuardID      string    `json:"guard_id"`
	RouteID      string    `json:"route_id"`
	CheckpointID string    `json:"checkpoint_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	DistanceM    float64   `json:"distance_m"`
	InRange      bool      `json:"in_range"`
	VerifiedAt   time.Time `json:"verified_at"`
}

// ActivityReport is a free-text report filed by a guard. Reports are the
// only mutable entity type: they can be amended locally before and after
// first sync.
type ActivityReport struct {
	GuardID    string    `json:"guard_id"`
	SiteID     string    `json:"site_id"`
	Severity   string    `json:"severity"` // info, warning, incident
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Photo references a captured image in the local spool directory. The file
// itself is streamed at upload time, never embedded in the payload.
type Photo struct {
	GuardID    string    `json:"guard_id"`
	FilePath   string    `json:"file_path"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	Caption    string    `json:"caption,omitempty"`
	ReportUUID string    `json:"report_uuid,omitempty"` // links a photo to a report
	CapturedAt time.Time `json:"captured_at"`
}

// NewRecord wraps an entity payload in a pending sync envelope with a fresh
// client-side UUID. The UUID doubles as the idempotency key sent to the
// server, so a retried push of the same record is deduplicated remotely.
func NewRecord(entityType EntityType, payload any, now time.Time) (*SyncRecord, error) {
	if !entityType.Valid() {
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", entityType, err)
	}
	return &SyncRecord{
		UUID:         uuid.NewString(),
		EntityType:   entityType,
		Payload:      raw,
		Status:       StatusPending,
		LastModified: now,
		CreatedAt:    now,
	}, nil
}
