package syncer

import (
	"testing"
	"time"
)

// TestBus_FanOut tests delivery to multiple subscribers.
func TestBus_FanOut(t *testing.T) {
	bus := NewBus(4)

	a, cancelA := bus.Subscribe()
	defer cancelA()
	b, cancelB := bus.Subscribe()
	defer cancelB()

	bus.Publish(Event{Type: EventPassStarted})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Type != EventPassStarted {
				t.Errorf("subscriber %s got %q, want pass_started", name, ev.Type)
			}
		default:
			t.Errorf("subscriber %s received nothing", name)
		}
	}
}

// TestBus_DropOldest tests that a full subscriber loses its oldest event,
// never the newest.
func TestBus_DropOldest(t *testing.T) {
	bus := NewBus(2)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(Event{Type: EventPassStarted, Succeeded: 1})
	bus.Publish(Event{Type: EventEntityCompleted, Succeeded: 2})
	bus.Publish(Event{Type: EventPassCompleted, Succeeded: 3})

	first := <-ch
	second := <-ch
	if first.Succeeded != 2 || second.Succeeded != 3 {
		t.Errorf("buffered events = %d, %d; want 2, 3 (oldest dropped)", first.Succeeded, second.Succeeded)
	}
	select {
	case ev := <-ch:
		t.Errorf("unexpected third event %+v", ev)
	default:
	}
}

// TestBus_Cancel tests that a cancelled subscription closes its channel and
// stops receiving.
func TestBus_Cancel(t *testing.T) {
	bus := NewBus(2)
	ch, cancel := bus.Subscribe()

	cancel()
	cancel() // must be safe to call twice

	bus.Publish(Event{Type: EventPassStarted, Timestamp: time.Now()})

	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}
}
