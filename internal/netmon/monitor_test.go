package netmon

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"
)

// flippableProbe is a probe whose result the test controls.
type flippableProbe struct {
	mu sync.Mutex
	up bool
}

func (p *flippableProbe) set(up bool) {
	p.mu.Lock()
	p.up = up
	p.mu.Unlock()
}

func (p *flippableProbe) probe(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.up {
		return nil
	}
	return errors.New("unreachable")
}

func testMonitor(t *testing.T, p *flippableProbe) *Monitor {
	t.Helper()
	m, err := New("https://api.example.net/v1", Config{
		Interval:     5 * time.Millisecond,
		ProbeTimeout: time.Second,
		Probe:        p.probe,
		Logger:       log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return m
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

// TestMonitor_OnlineSignal tests that the offline-to-online transition
// fires the signal channel exactly once per transition.
func TestMonitor_OnlineSignal(t *testing.T) {
	p := &flippableProbe{}
	m := testMonitor(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	waitFor(t, func() bool { return !m.Connected() }, "monitor never observed offline")

	p.set(true)
	select {
	case <-m.Online():
	case <-time.After(2 * time.Second):
		t.Fatal("online signal not received after connectivity restored")
	}
	waitFor(t, m.Connected, "Connected() still false after restore")

	// Staying online must not fire again.
	select {
	case <-m.Online():
		t.Error("online signal fired without a transition")
	case <-time.After(50 * time.Millisecond):
	}
}

// TestMonitor_LostAndRestored tests a full offline round trip.
func TestMonitor_LostAndRestored(t *testing.T) {
	p := &flippableProbe{up: true}
	m := testMonitor(t, p)

	m.Start(context.Background())
	defer m.Stop()

	waitFor(t, m.Connected, "monitor never observed online")

	p.set(false)
	waitFor(t, func() bool { return !m.Connected() }, "monitor never observed the outage")

	p.set(true)
	select {
	case <-m.Online():
	case <-time.After(2 * time.Second):
		t.Fatal("online signal not received after outage ended")
	}
}

// TestMonitor_StopIdempotent tests that Stop is safe without Start and
// after a normal run.
func TestMonitor_StopIdempotent(t *testing.T) {
	p := &flippableProbe{up: true}
	m := testMonitor(t, p)

	m.Stop() // never started

	m.Start(context.Background())
	m.Stop()
	m.Stop()
}

// TestDialAddr tests host:port extraction with scheme defaults.
func TestDialAddr(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://api.example.net/v1", "api.example.net:443"},
		{"http://api.example.net/v1", "api.example.net:80"},
		{"https://api.example.net:8443/v1", "api.example.net:8443"},
	}
	for _, tt := range tests {
		got, err := dialAddr(tt.url)
		if err != nil {
			t.Errorf("dialAddr(%q) failed: %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("dialAddr(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
