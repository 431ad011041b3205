package model

import (
	"testing"
	"time"
)

// TestSyncPriority_Order tests that payroll data syncs before telemetry.
func TestSyncPriority_Order(t *testing.T) {
	want := []EntityType{
		EntityTimeRecord,
		EntityCheckpointVerification,
		EntityActivityReport,
		EntityPhoto,
		EntityLocationRecord,
	}
	got := SyncPriority()
	if len(got) != len(want) {
		t.Fatalf("SyncPriority() returned %d types, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SyncPriority()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestEntityType_Valid tests recognition of known and unknown types.
func TestEntityType_Valid(t *testing.T) {
	for _, et := range SyncPriority() {
		if !et.Valid() {
			t.Errorf("%q reported invalid", et)
		}
	}
	if EntityType("badge_swipe").Valid() {
		t.Error("unknown type reported valid")
	}
}

// TestEntityType_Mutable tests that only activity reports accept local
// amendments.
func TestEntityType_Mutable(t *testing.T) {
	for _, et := range SyncPriority() {
		want := et == EntityActivityReport
		if et.Mutable() != want {
			t.Errorf("%q Mutable() = %v, want %v", et, et.Mutable(), want)
		}
	}
}

// TestNewRecord tests envelope construction and validation.
func TestNewRecord(t *testing.T) {
	now := time.Now().UTC()
	rec, err := NewRecord(EntityTimeRecord, TimeRecord{
		GuardID:   "g-1",
		Punch:     PunchIn,
		PunchedAt: now,
	}, now)
	if err != nil {
		t.Fatalf("NewRecord() failed: %v", err)
	}

	if rec.UUID == "" {
		t.Error("NewRecord() did not assign a UUID")
	}
	if rec.Status != StatusPending {
		t.Errorf("status = %q, want %q", rec.Status, StatusPending)
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("Validate() failed on a fresh record: %v", err)
	}

	var tr TimeRecord
	if err := rec.DecodePayload(&tr); err != nil {
		t.Fatalf("DecodePayload() failed: %v", err)
	}
	if tr.GuardID != "g-1" || tr.Punch != PunchIn {
		t.Errorf("decoded payload = %+v", tr)
	}
}

// TestNewRecord_UnknownType tests rejection of an unrecognized entity type.
func TestNewRecord_UnknownType(t *testing.T) {
	if _, err := NewRecord("badge_swipe", nil, time.Now()); err == nil {
		t.Error("NewRecord() accepted an unknown entity type")
	}
}

// TestSyncRecord_Validate tests required-field checks on the envelope.
func TestSyncRecord_Validate(t *testing.T) {
	now := time.Now().UTC()
	valid := SyncRecord{
		UUID:         "u-1",
		EntityType:   EntityPhoto,
		Payload:      []byte(`{}`),
		LastModified: now,
	}

	tests := []struct {
		name   string
		mutate func(*SyncRecord)
	}{
		{"missing uuid", func(r *SyncRecord) { r.UUID = "" }},
		{"bad type", func(r *SyncRecord) { r.EntityType = "nope" }},
		{"empty payload", func(r *SyncRecord) { r.Payload = nil }},
		{"zero modified", func(r *SyncRecord) { r.LastModified = time.Time{} }},
	}
	for _, tt := range tests {
		rec := valid
		tt.mutate(&rec)
		if err := rec.Validate(); err == nil {
			t.Errorf("%s: Validate() passed, want error", tt.name)
		}
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid record rejected: %v", err)
	}
}
