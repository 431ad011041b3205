package daemon

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/guardtrack/patrolsync/internal/model"
	"github.com/guardtrack/patrolsync/internal/store"
)

// SpoolConfig configures the photo spool watcher.
type SpoolConfig struct {
	// Dir is the spool directory where captured photos land.
	Dir string

	// GuardID to stamp on enqueued photo records.
	GuardID string

	// DebounceInterval is how long a file must sit unchanged before it is
	// enqueued. Camera writes arrive in bursts; debouncing waits them out.
	DebounceInterval time.Duration

	// Logger for watcher activity.
	Logger *log.Logger
}

// SpoolWatcher watches the photo spool directory and enqueues a pending
// Photo record for every new image file.
type SpoolWatcher struct {
	store   *store.Store
	config  SpoolConfig
	watcher *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   map[string]time.Time // path -> last event time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSpoolWatcher creates a spool watcher. Start must be called before
// events are processed.
func NewSpoolWatcher(st *store.Store, config SpoolConfig) (*SpoolWatcher, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("spool dir cannot be empty")
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[spool] ", log.LstdFlags)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &SpoolWatcher{
		store:   st,
		config:  config,
		watcher: watcher,
		pending: make(map[string]time.Time),
	}, nil
}

// Start scans the spool for files left over from previous runs, then
// watches for new arrivals until ctx is cancelled.
func (w *SpoolWatcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.config.Dir, 0755); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}
	if err := w.watcher.Add(w.config.Dir); err != nil {
		return fmt.Errorf("watch spool dir: %w", err)
	}

	if err := w.scanExisting(ctx); err != nil {
		return err
	}

	w.config.Logger.Printf("Watching spool: %s", w.config.Dir)

	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.watchEvents(ctx)
	go w.drainPending(ctx)

	return nil
}

// Stop closes the watcher and waits for goroutines to finish.
func (w *SpoolWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	_ = w.watcher.Close()
	w.wg.Wait()
}

// scanExisting enqueues spool files that predate this run.
func (w *SpoolWatcher) scanExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		return fmt.Errorf("read spool dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}
		path := filepath.Join(w.config.Dir, entry.Name())
		if err := w.enqueue(ctx, path); err != nil {
			w.config.Logger.Printf("Warning: failed to enqueue %s: %v", entry.Name(), err)
		}
	}
	return nil
}

// watchEvents queues file events for debounced processing.
func (w *SpoolWatcher) watchEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isImageFile(event.Name) {
				continue
			}
			w.pendingMu.Lock()
			w.pending[event.Name] = time.Now()
			w.pendingMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// drainPending enqueues files once their write burst has settled.
func (w *SpoolWatcher) drainPending(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *SpoolWatcher) processSettled(ctx context.Context) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	now := time.Now()
	for path, seenAt := range w.pending {
		if now.Sub(seenAt) < w.config.DebounceInterval {
			continue
		}
		delete(w.pending, path)

		if err := w.enqueue(ctx, path); err != nil {
			w.config.Logger.Printf("Warning: failed to enqueue %s: %v", filepath.Base(path), err)
		}
	}
}

// enqueue creates a pending Photo record for the spool file, skipping
// files already in the queue.
func (w *SpoolWatcher) enqueue(ctx context.Context, path string) error {
	already, err := w.store.PhotoEnqueued(ctx, path)
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat spool file: %w", err)
	}

	photo := model.Photo{
		GuardID:    w.config.GuardID,
		FilePath:   path,
		MimeType:   mimeTypeFor(path),
		SizeBytes:  info.Size(),
		CapturedAt: info.ModTime(),
	}

	rec, err := model.NewRecord(model.EntityPhoto, photo, time.Now())
	if err != nil {
		return err
	}
	if err := w.store.EnqueueContext(ctx, rec); err != nil {
		return err
	}

	w.config.Logger.Printf("Enqueued photo %s (%d bytes)", filepath.Base(path), info.Size())
	return nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}

func mimeTypeFor(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
