package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/guardtrack/patrolsync/internal/model"
	"github.com/guardtrack/patrolsync/internal/remote"
	"github.com/guardtrack/patrolsync/internal/retry"
	"github.com/guardtrack/patrolsync/internal/store"
	"github.com/guardtrack/patrolsync/internal/syncer"
)

// acceptHandler accepts every record of one entity type.
type acceptHandler struct {
	entity model.EntityType
}

func (h *acceptHandler) EntityType() model.EntityType { return h.entity }

func (h *acceptHandler) Push(ctx context.Context, rec *model.SyncRecord) (string, error) {
	return fmt.Sprintf("srv-%d", rec.ID), nil
}

// testServer starts a dashboard on a random port over a fresh store.
func testServer(t *testing.T) (*Server, *store.Store, *syncer.Orchestrator) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	var handlers []remote.Handler
	for _, et := range model.SyncPriority() {
		handlers = append(handlers, &acceptHandler{entity: et})
	}
	orch, err := syncer.New(st, handlers, syncer.Config{
		Retry:  retry.Config{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Logger: log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("syncer.New() failed: %v", err)
	}

	srv := NewServer(st, orch, &Config{
		Port:   0, // random available port
		Logger: log.New(io.Discard, "", 0),
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return srv, st, orch
}

func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+srv.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("websocket.Dial() failed: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("conn.Read() failed: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return msg
}

// TestServer_WelcomeStats tests that a new client receives a queue stats
// snapshot on connect.
func TestServer_WelcomeStats(t *testing.T) {
	srv, st, _ := testServer(t)

	rec, err := model.NewRecord(model.EntityTimeRecord, map[string]string{"guard_id": "g-1"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewRecord() failed: %v", err)
	}
	if err := st.Enqueue(rec); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	conn := dialWS(t, srv)
	msg := readMessage(t, conn)

	if msg.Type != MessageTypeQueueStats {
		t.Fatalf("welcome frame type = %q, want queue_stats", msg.Type)
	}
	var counts store.Counts
	if err := json.Unmarshal(msg.Data, &counts); err != nil {
		t.Fatalf("unmarshal counts: %v", err)
	}
	if counts.Pending != 1 {
		t.Errorf("pending = %d, want 1", counts.Pending)
	}
}

// TestServer_SyncBroadcast tests that a sync pass streams status frames to
// connected clients, ending with refreshed stats.
func TestServer_SyncBroadcast(t *testing.T) {
	srv, st, orch := testServer(t)

	rec, err := model.NewRecord(model.EntityPhoto, map[string]string{"guard_id": "g-1"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewRecord() failed: %v", err)
	}
	if err := st.Enqueue(rec); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	conn := dialWS(t, srv)
	readMessage(t, conn) // welcome stats

	if _, err := orch.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll() failed: %v", err)
	}

	sawPassCompleted := false
	sawFinalStats := false
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !(sawPassCompleted && sawFinalStats) {
		msg := readMessage(t, conn)
		switch msg.Type {
		case MessageTypeSyncStatus:
			var ev syncer.Event
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				t.Fatalf("unmarshal event: %v", err)
			}
			if ev.Type == syncer.EventPassCompleted {
				if ev.Succeeded != 1 {
					t.Errorf("pass_completed succeeded = %d, want 1", ev.Succeeded)
				}
				sawPassCompleted = true
			}
		case MessageTypeQueueStats:
			if sawPassCompleted {
				var counts store.Counts
				if err := json.Unmarshal(msg.Data, &counts); err != nil {
					t.Fatalf("unmarshal counts: %v", err)
				}
				if counts.Synced != 1 {
					t.Errorf("post-pass synced = %d, want 1", counts.Synced)
				}
				sawFinalStats = true
			}
		}
	}
	if !sawPassCompleted || !sawFinalStats {
		t.Error("did not receive pass_completed followed by stats")
	}
}

// TestServer_StatusEndpoint tests the JSON snapshot.
func TestServer_StatusEndpoint(t *testing.T) {
	srv, st, orch := testServer(t)

	rec, err := model.NewRecord(model.EntityActivityReport, map[string]string{"guard_id": "g-1"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewRecord() failed: %v", err)
	}
	if err := st.Enqueue(rec); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	if _, err := orch.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll() failed: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/status")
	if err != nil {
		t.Fatalf("GET /status failed: %v", err)
	}
	defer resp.Body.Close()

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Syncing {
		t.Error("snapshot reports syncing outside a pass")
	}
	if snap.Last == nil || snap.Last.Succeeded != 1 {
		t.Errorf("snapshot last result = %+v, want succeeded=1", snap.Last)
	}
	if snap.Counts.Synced != 1 {
		t.Errorf("snapshot synced count = %d, want 1", snap.Counts.Synced)
	}
}

// TestServer_HealthEndpoint tests the liveness probe.
func TestServer_HealthEndpoint(t *testing.T) {
	srv, _, _ := testServer(t)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var health struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("health status = %q, want ok", health.Status)
	}
}
