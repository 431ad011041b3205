// Package syncer coordinates sync passes over the local entity store,
// pushing pending records to the backend in priority order.
package syncer

import (
	"sync"
	"time"

	"github.com/guardtrack/patrolsync/internal/model"
)

// EventType identifies what a status event reports.
type EventType string

const (
	// EventPassStarted is published when a sync pass begins.
	EventPassStarted EventType = "pass_started"
	// EventEntityCompleted is published after each entity type finishes.
	EventEntityCompleted EventType = "entity_completed"
	// EventPassCompleted is published once at overall completion.
	EventPassCompleted EventType = "pass_completed"
)

// Event is a sync status notification for the UI layer.
type Event struct {
	Type       EventType        `json:"type"`
	Timestamp  time.Time        `json:"timestamp"`
	EntityType model.EntityType `json:"entity_type,omitempty"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Pending    int              `json:"pending"`
	Message    string           `json:"message,omitempty"`
}

// Bus fans status events out to subscribers over bounded channels.
//
// A slow subscriber never blocks the sync pass: when a subscriber's buffer
// is full, the oldest queued event is dropped to make room. Status events
// are snapshots, so losing a stale one is harmless.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	buffer int
}

// NewBus creates an event bus. buffer is the per-subscriber queue size;
// values below 1 get a default of 16.
func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 16
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber. The returned cancel function
// removes the subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber, dropping the oldest
// queued event for any subscriber whose buffer is full.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Buffer full: drop the oldest queued event and try once more.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
