package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/guardtrack/patrolsync/internal/model"
	"github.com/guardtrack/patrolsync/internal/remote"
	"github.com/guardtrack/patrolsync/internal/retry"
	"github.com/guardtrack/patrolsync/internal/store"
)

// ErrSyncInProgress is the busy signal returned to a caller while another
// sync pass is running.
var ErrSyncInProgress = errors.New("sync pass already in progress")

// Result summarizes one sync pass.
type Result struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// Config holds orchestrator configuration.
type Config struct {
	// Retry is the per-call retry policy configuration.
	Retry retry.Config

	// Breaker is the per-entity-type circuit breaker configuration.
	Breaker retry.BreakerConfig

	// EventBuffer is the per-subscriber status event queue size.
	EventBuffer int

	// Logger for sync activity (default: stderr logger).
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Retry:       retry.DefaultConfig(),
		Breaker:     retry.DefaultBreakerConfig(),
		EventBuffer: 16,
	}
}

// Orchestrator runs sync passes: it drains the pending queue in entity
// priority order through the per-entity handlers, wrapped by the retry
// policy and circuit breakers.
//
// At most one pass runs at a time. The orchestrator owns all status
// mutations on queue records during a pass; capture commands only ever
// insert.
type Orchestrator struct {
	store    *store.Store
	handlers map[model.EntityType]remote.Handler
	policy   *retry.Policy
	breakers *retry.BreakerSet
	resolver *Resolver
	bus      *Bus
	logger   *log.Logger

	passMu sync.Mutex // held for the duration of a pass

	mu         sync.Mutex // guards the fields below
	syncing    bool
	lastResult Result
	lastSync   time.Time
}

// New creates an orchestrator over the given store and handler set.
func New(st *store.Store, handlers []remote.Handler, config Config) (*Orchestrator, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if len(handlers) == 0 {
		return nil, fmt.Errorf("at least one handler is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	byType := make(map[model.EntityType]remote.Handler, len(handlers))
	for _, h := range handlers {
		if _, dup := byType[h.EntityType()]; dup {
			return nil, fmt.Errorf("duplicate handler for entity type %s", h.EntityType())
		}
		byType[h.EntityType()] = h
	}

	retryCfg := config.Retry
	if retryCfg.RetryIf == nil {
		retryCfg.RetryIf = remote.IsTransient
	}

	return &Orchestrator{
		store:    st,
		handlers: byType,
		policy:   retry.NewPolicy(retryCfg),
		breakers: retry.NewBreakerSet(config.Breaker),
		resolver: NewResolver(logger),
		bus:      NewBus(config.EventBuffer),
		logger:   logger,
	}, nil
}

// Events returns the status event bus for UI subscribers.
func (o *Orchestrator) Events() *Bus {
	return o.bus
}

// IsSyncing reports whether a pass is currently running.
func (o *Orchestrator) IsSyncing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.syncing
}

// LastResult returns the most recent pass result and when it finished.
// ok is false before the first completed pass.
func (o *Orchestrator) LastResult() (result Result, at time.Time, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastResult, o.lastSync, !o.lastSync.IsZero()
}

// BreakerStates returns the current circuit breaker state per entity type.
func (o *Orchestrator) BreakerStates() map[string]retry.BreakerState {
	return o.breakers.States()
}

// Recover resets records stranded in progress by an interrupted pass.
// Must be called once at startup, before the first SyncAll.
func (o *Orchestrator) Recover(ctx context.Context) error {
	n, err := o.store.ResetInProgress(ctx)
	if err != nil {
		return fmt.Errorf("recover interrupted sync: %w", err)
	}
	if n > 0 {
		o.logger.Printf("Recovered %d record(s) from interrupted sync", n)
	}
	return nil
}

// SyncAll runs one complete sync pass across all entity types in priority
// order. Concurrent callers receive ErrSyncInProgress instead of starting
// a second pass.
//
// Per-record failures are contained: a rejected or transiently failing
// record never aborts the pass for other records or other entity types.
// Only local storage failure aborts the remainder of the pass.
func (o *Orchestrator) SyncAll(ctx context.Context) (Result, error) {
	if !o.passMu.TryLock() {
		return Result{}, ErrSyncInProgress
	}
	defer o.passMu.Unlock()

	o.setSyncing(true)
	defer o.setSyncing(false)

	o.logger.Printf("Starting sync pass")
	o.bus.Publish(Event{Type: EventPassStarted, Timestamp: time.Now()})

	var result Result
	var passErr error

	for _, entityType := range model.SyncPriority() {
		if ctx.Err() != nil {
			passErr = ctx.Err()
			break
		}

		typeResult, err := o.syncEntityType(ctx, entityType)
		result.Succeeded += typeResult.Succeeded
		result.Failed += typeResult.Failed

		o.bus.Publish(Event{
			Type:       EventEntityCompleted,
			Timestamp:  time.Now(),
			EntityType: entityType,
			Succeeded:  typeResult.Succeeded,
			Failed:     typeResult.Failed,
		})

		if err != nil {
			// Storage trouble is fatal for this pass; the records stay
			// pending and the next trigger retries them.
			passErr = err
			break
		}
	}

	// Count under a detached context so a cancelled pass still reports the
	// records it left behind.
	if n, err := o.store.PendingCount(context.WithoutCancel(ctx)); err != nil {
		o.logger.Printf("Pending count unavailable: %v", err)
	} else {
		result.Pending = n
	}

	o.logger.Printf("Sync pass complete: succeeded=%d failed=%d pending=%d",
		result.Succeeded, result.Failed, result.Pending)

	o.bus.Publish(Event{
		Type:      EventPassCompleted,
		Timestamp: time.Now(),
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Pending:   result.Pending,
	})

	o.mu.Lock()
	o.lastResult = result
	o.lastSync = time.Now()
	o.mu.Unlock()

	return result, passErr
}

func (o *Orchestrator) setSyncing(v bool) {
	o.mu.Lock()
	o.syncing = v
	o.mu.Unlock()
}

// syncEntityType drains the pending queue for one entity type. The
// returned error is non-nil only for pass-fatal conditions (storage).
func (o *Orchestrator) syncEntityType(ctx context.Context, entityType model.EntityType) (Result, error) {
	var result Result

	handler, ok := o.handlers[entityType]
	if !ok {
		return result, nil
	}

	pending, err := o.store.GetPending(ctx, entityType)
	if err != nil {
		return result, err
	}
	if len(pending) == 0 {
		return result, nil
	}

	breaker := o.breakers.For(string(entityType))

	if batch, ok := handler.(remote.BatchHandler); ok {
		return o.syncBatch(ctx, breaker, batch, pending)
	}

	for _, rec := range pending {
		// Cancellation is cooperative: checked between records, never
		// mid-call. Untouched records simply remain pending.
		if ctx.Err() != nil {
			return result, nil
		}

		if breaker.Allow() != nil {
			o.logger.Printf("Breaker open for %s, leaving %d record(s) pending",
				entityType, len(pending)-result.Succeeded-result.Failed)
			return result, nil
		}

		if err := o.store.MarkInProgress(ctx, rec.ID); err != nil {
			if store.IsStorageError(err) {
				return result, err
			}
			continue // claimed or deleted out from under us
		}

		outcome, err := o.pushRecord(ctx, breaker, handler, rec)
		if err != nil {
			return result, err
		}
		result.Succeeded += outcome.Succeeded
		result.Failed += outcome.Failed
	}

	return result, nil
}

// pushRecord pushes one claimed record and settles its queue state. The
// returned error is non-nil only for storage failures.
func (o *Orchestrator) pushRecord(ctx context.Context, breaker *retry.Breaker, handler remote.Handler, rec *model.SyncRecord) (Result, error) {
	var remoteID string
	pushErr := o.policy.Do(ctx, func() error {
		id, err := handler.Push(ctx, rec)
		if err == nil {
			remoteID = id
		}
		return err
	})

	// Settlement writes must land even when the pass is being cancelled,
	// or the claimed record would stay in progress until the next restart.
	ctx = context.WithoutCancel(ctx)

	recordOutcome(breaker, pushErr)

	switch {
	case pushErr == nil:
		if err := o.store.MarkSynced(ctx, rec.ID, remoteID); err != nil {
			return Result{}, err
		}
		return Result{Succeeded: 1}, nil

	case isConflict(pushErr):
		conflict, _ := remote.AsConflict(pushErr)
		return o.settleConflict(ctx, rec, conflict)

	case remote.IsRejected(pushErr):
		o.logger.Printf("Record %d (%s) rejected: %v", rec.ID, rec.EntityType, pushErr)
		if err := o.store.MarkFailed(ctx, rec.ID); err != nil {
			return Result{}, err
		}
		return Result{Failed: 1}, nil

	default:
		// Transient exhaustion or cancellation: back to pending for the
		// next pass.
		o.logger.Printf("Record %d (%s) not synced: %v", rec.ID, rec.EntityType, pushErr)
		if err := o.store.Requeue(ctx, rec.ID); err != nil {
			return Result{}, err
		}
		return Result{}, nil
	}
}

// recordOutcome feeds a push result to the breaker. Only transient outcomes
// count against it; a 4xx proves the endpoint is reachable. Cancellation is
// not recorded at all: it says nothing about endpoint health, and counting
// it as success would reset a legitimately climbing failure streak.
func recordOutcome(breaker *retry.Breaker, err error) {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
	case remote.IsTransient(err):
		breaker.Record(err)
	default:
		breaker.Record(nil)
	}
}

func isConflict(err error) bool {
	_, ok := remote.AsConflict(err)
	return ok
}

// settleConflict applies the resolver's decision to the local store.
func (o *Orchestrator) settleConflict(ctx context.Context, rec *model.SyncRecord, conflict *remote.ConflictError) (Result, error) {
	switch o.resolver.Resolve(rec, conflict.Remote) {
	case LocalWins:
		// Keep the local payload pending; it is re-pushed on the next
		// pass, by which point the server applies last-writer-wins.
		if err := o.store.Release(ctx, rec.ID); err != nil {
			return Result{}, err
		}
		return Result{}, nil

	default: // RemoteWins
		err := o.store.ApplyRemote(ctx, rec.ID,
			conflict.Remote.RemoteID, conflict.Remote.Payload, conflict.Remote.LastModified)
		if err != nil {
			return Result{}, err
		}
		return Result{Succeeded: 1}, nil
	}
}

// syncBatch pushes all pending records of a batching handler in one call.
func (o *Orchestrator) syncBatch(ctx context.Context, breaker *retry.Breaker, handler remote.BatchHandler, pending []*model.SyncRecord) (Result, error) {
	var result Result

	if breaker.Allow() != nil {
		o.logger.Printf("Breaker open for %s, leaving %d record(s) pending",
			handler.EntityType(), len(pending))
		return result, nil
	}

	claimed := pending[:0]
	for _, rec := range pending {
		if err := o.store.MarkInProgress(ctx, rec.ID); err != nil {
			if store.IsStorageError(err) {
				return result, err
			}
			continue
		}
		claimed = append(claimed, rec)
	}
	if len(claimed) == 0 {
		return result, nil
	}

	var accepted map[int64]string
	pushErr := o.policy.Do(ctx, func() error {
		ids, err := handler.PushBatch(ctx, claimed)
		if err == nil {
			accepted = ids
		}
		return err
	})

	// As in pushRecord, claimed records must be settled even mid-cancel.
	ctx = context.WithoutCancel(ctx)

	recordOutcome(breaker, pushErr)

	switch {
	case pushErr == nil:
		for _, rec := range claimed {
			if id, ok := accepted[rec.ID]; ok {
				if err := o.store.MarkSynced(ctx, rec.ID, id); err != nil {
					return result, err
				}
				result.Succeeded++
			} else {
				if err := o.store.Requeue(ctx, rec.ID); err != nil {
					return result, err
				}
			}
		}
		return result, nil

	case remote.IsRejected(pushErr):
		o.logger.Printf("Batch of %d %s record(s) rejected: %v",
			len(claimed), handler.EntityType(), pushErr)
		for _, rec := range claimed {
			if err := o.store.MarkFailed(ctx, rec.ID); err != nil {
				return result, err
			}
			result.Failed++
		}
		return result, nil

	default:
		o.logger.Printf("Batch of %d %s record(s) not synced: %v",
			len(claimed), handler.EntityType(), pushErr)
		for _, rec := range claimed {
			if err := o.store.Requeue(ctx, rec.ID); err != nil {
				return result, err
			}
		}
		return result, nil
	}
}
