// Package daemon runs patrolsync's background operation: periodic and
// connectivity-triggered sync passes, the photo spool watcher, and route
// cache refresh.
//
// The daemon:
// 1. Recovers records left in progress by a previous crash
// 2. Runs an initial sync pass, then one per interval
// 3. Runs an extra pass whenever connectivity is restored
// 4. Watches the photo spool and enqueues new captures
// 5. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/guardtrack/patrolsync/internal/netmon"
	"github.com/guardtrack/patrolsync/internal/route"
	"github.com/guardtrack/patrolsync/internal/store"
	"github.com/guardtrack/patrolsync/internal/syncer"
)

// RouteSource pulls server-authoritative patrol routes.
type RouteSource interface {
	Pull(ctx context.Context) ([]route.Route, error)
}

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often a periodic sync pass runs.
	SyncInterval time.Duration

	// RouteRefreshInterval is how often the route cache is re-pulled.
	RouteRefreshInterval time.Duration

	// SpoolDir is the photo spool directory to watch. Empty disables the
	// watcher.
	SpoolDir string

	// GuardID stamps photos enqueued from the spool.
	GuardID string

	// RoutesPath is where pulled routes are cached. Empty disables route
	// refresh.
	RoutesPath string

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:         5 * time.Minute,
		RouteRefreshInterval: time.Hour,
		Logger:               log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates background syncing for the device.
type Daemon struct {
	store   *store.Store
	orch    *syncer.Orchestrator
	monitor *netmon.Monitor
	routes  RouteSource
	config  *Config

	spool *SpoolWatcher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon. monitor and routes may be nil, disabling
// connectivity triggers and route refresh respectively.
func New(st *store.Store, orch *syncer.Orchestrator, monitor *netmon.Monitor, routes RouteSource, config *Config) (*Daemon, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = 5 * time.Minute
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	d := &Daemon{
		store:   st,
		orch:    orch,
		monitor: monitor,
		routes:  routes,
		config:  config,
	}

	if config.SpoolDir != "" {
		spool, err := NewSpoolWatcher(st, SpoolConfig{
			Dir:     config.SpoolDir,
			GuardID: config.GuardID,
			Logger:  config.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create spool watcher: %w", err)
		}
		d.spool = spool
	}

	return d, nil
}

// Start begins background operation and blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	ctx, d.cancel = context.WithCancel(ctx)
	defer d.cancel()

	// Recover records stranded by a previous crash before any pass runs.
	if err := d.orch.Recover(ctx); err != nil {
		return fmt.Errorf("startup recovery failed: %w", err)
	}

	if d.monitor != nil {
		d.monitor.Start(ctx)
		defer d.monitor.Stop()
	}

	if d.spool != nil {
		if err := d.spool.Start(ctx); err != nil {
			return fmt.Errorf("start spool watcher: %w", err)
		}
		defer d.spool.Stop()
	}

	d.wg.Add(1)
	go d.runPasses(ctx)

	if d.routes != nil && d.config.RoutesPath != "" {
		d.wg.Add(1)
		go d.refreshRoutes(ctx)
	}

	<-ctx.Done()
	d.config.Logger.Println("Shutdown signal received")
	d.wg.Wait()
	d.config.Logger.Println("Daemon stopped")
	return nil
}

// Stop cancels background operation.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

// runPasses drives sync passes from the interval ticker and the
// connectivity-restored signal.
func (d *Daemon) runPasses(ctx context.Context) {
	defer d.wg.Done()

	d.runOnePass(ctx, "startup")

	ticker := time.NewTicker(d.config.SyncInterval)
	defer ticker.Stop()

	var online <-chan struct{}
	if d.monitor != nil {
		online = d.monitor.Online()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runOnePass(ctx, "interval")
		case <-online:
			d.runOnePass(ctx, "connectivity restored")
		}
	}
}

// runOnePass runs one sync pass, tolerating the busy signal from an
// overlapping trigger.
func (d *Daemon) runOnePass(ctx context.Context, trigger string) {
	if d.monitor != nil && !d.monitor.Connected() {
		d.config.Logger.Printf("Skipping %s sync pass: offline", trigger)
		return
	}

	result, err := d.orch.SyncAll(ctx)
	if err == syncer.ErrSyncInProgress {
		return
	}
	if err != nil {
		d.config.Logger.Printf("Sync pass (%s) error: %v", trigger, err)
		return
	}
	d.config.Logger.Printf("Sync pass (%s): succeeded=%d failed=%d pending=%d",
		trigger, result.Succeeded, result.Failed, result.Pending)
}

// refreshRoutes keeps the local route cache in step with the server.
func (d *Daemon) refreshRoutes(ctx context.Context) {
	defer d.wg.Done()

	d.pullRoutes(ctx)

	interval := d.config.RouteRefreshInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pullRoutes(ctx)
		}
	}
}

func (d *Daemon) pullRoutes(ctx context.Context) {
	routes, err := d.routes.Pull(ctx)
	if err != nil {
		d.config.Logger.Printf("Route refresh failed: %v", err)
		return
	}
	if err := route.SaveFile(d.config.RoutesPath, routes); err != nil {
		d.config.Logger.Printf("Route cache write failed: %v", err)
		return
	}
	d.config.Logger.Printf("Route cache refreshed: %d route(s)", len(routes))
}
