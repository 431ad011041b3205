package daemon

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/guardtrack/patrolsync/internal/model"
	"github.com/guardtrack/patrolsync/internal/remote"
	"github.com/guardtrack/patrolsync/internal/retry"
	"github.com/guardtrack/patrolsync/internal/route"
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

// staticRoutes is a canned RouteSource.
type staticRoutes []route.Route

func (s staticRoutes) Pull(ctx context.Context) ([]route.Route, error) {
	return s, nil
}

func testOrchestrator(t *testing.T, st *store.Store) *syncer.Orchestrator {
	t.Helper()
	var handlers []remote.Handler
	for _, et := range model.SyncPriority() {
		handlers = append(handlers, &acceptHandler{entity: et})
	}
	o, err := syncer.New(st, handlers, syncer.Config{
		Retry:  retry.Config{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Logger: log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("syncer.New() failed: %v", err)
	}
	return o
}

// TestDaemon_StartupPass tests that starting the daemon recovers stranded
// records and runs an immediate sync pass.
func TestDaemon_StartupPass(t *testing.T) {
	st := testSpoolStore(t)
	ctx := context.Background()

	rec, err := model.NewRecord(model.EntityTimeRecord, map[string]string{"guard_id": "g-1"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewRecord() failed: %v", err)
	}
	if err := st.Enqueue(rec); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	// Simulate a record stranded by a crash mid-pass.
	stranded, err := model.NewRecord(model.EntityPhoto, map[string]string{"guard_id": "g-1"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewRecord() failed: %v", err)
	}
	if err := st.Enqueue(stranded); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	if err := st.MarkInProgress(ctx, stranded.ID); err != nil {
		t.Fatalf("MarkInProgress() failed: %v", err)
	}

	d, err := New(st, testOrchestrator(t, st), nil, nil, &Config{
		SyncInterval: time.Hour,
		Logger:       log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- d.Start(runCtx) }()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		counts, err := st.CountByStatus(ctx)
		if err != nil {
			t.Fatalf("CountByStatus() failed: %v", err)
		}
		if counts.Synced == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	counts, err := st.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus() failed: %v", err)
	}
	if counts.Synced != 2 {
		t.Errorf("counts after startup pass = %+v, want 2 synced", counts)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not stop after cancellation")
	}
}

// TestDaemon_RouteRefresh tests that pulled routes land in the cache file.
func TestDaemon_RouteRefresh(t *testing.T) {
	st := testSpoolStore(t)
	routesPath := filepath.Join(t.TempDir(), "routes.yaml")

	src := staticRoutes{{
		ID:     "route-1",
		SiteID: "site-1",
		Name:   "Night loop",
		Checkpoints: []route.Checkpoint{
			{ID: "cp-1", Name: "Gate", Latitude: 37.0, Longitude: -122.0, RadiusM: 40},
		},
	}}

	d, err := New(st, testOrchestrator(t, st), nil, src, &Config{
		SyncInterval:         time.Hour,
		RouteRefreshInterval: time.Hour,
		RoutesPath:           routesPath,
		Logger:               log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(runCtx) }()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(routesPath); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done

	routes, err := route.LoadFile(routesPath)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if len(routes) != 1 || routes[0].ID != "route-1" {
		t.Errorf("cached routes = %+v", routes)
	}
}

// TestDaemon_RequiresStore tests constructor validation.
func TestDaemon_RequiresStore(t *testing.T) {
	if _, err := New(nil, nil, nil, nil, nil); err == nil {
		t.Error("New() accepted a nil store")
	}
}
