package retry

import (
	"errors"
	"testing"
	"time"
)

// testBreaker returns a breaker with a controllable clock.
func testBreaker(config BreakerConfig) (*Breaker, *time.Time) {
	b := NewBreaker(config)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	return b, &clock
}

func failN(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		b.Record(errors.New("unreachable"))
	}
}

// TestBreaker_TripsAfterMaxFailures tests the closed-to-open transition.
func TestBreaker_TripsAfterMaxFailures(t *testing.T) {
	b, _ := testBreaker(BreakerConfig{MaxFailures: 5})

	failN(b, 4)
	if b.State() != StateClosed {
		t.Fatalf("state after 4 failures = %v, want closed", b.State())
	}

	failN(b, 1)
	if b.State() != StateOpen {
		t.Fatalf("state after 5 failures = %v, want open", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() = %v, want ErrCircuitOpen", err)
	}
}

// TestBreaker_SuccessResetsCount tests that intervening successes keep the
// breaker closed.
func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := testBreaker(BreakerConfig{MaxFailures: 3})

	failN(b, 2)
	b.Record(nil)
	failN(b, 2)
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

// TestBreaker_HalfOpenProbe tests the cooldown-elapsed probe and close on
// success.
func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, clock := testBreaker(BreakerConfig{
		MaxFailures:  2,
		BaseCooldown: 30 * time.Second,
		MaxCooldown:  30 * time.Minute,
	})

	failN(b, 2)
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow() while open = %v, want ErrCircuitOpen", err)
	}

	*clock = clock.Add(31 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after cooldown = %v, want probe allowed", err)
	}

	b.Record(nil)
	if b.State() != StateClosed {
		t.Errorf("state after successful probe = %v, want closed", b.State())
	}
}

// TestBreaker_FailedProbeDoublesCooldown tests that each reopen doubles the
// open window up to the cap.
func TestBreaker_FailedProbeDoublesCooldown(t *testing.T) {
	b, clock := testBreaker(BreakerConfig{
		MaxFailures:  1,
		BaseCooldown: 30 * time.Second,
		MaxCooldown:  2 * time.Minute,
	})

	// First trip: 30s cooldown.
	failN(b, 1)
	*clock = clock.Add(31 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("probe not allowed after first cooldown: %v", err)
	}

	// Failed probe: reopens for 60s.
	b.Record(errors.New("still down"))
	*clock = clock.Add(31 * time.Second)
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatal("breaker allowed a call inside the doubled cooldown")
	}
	*clock = clock.Add(30 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("probe not allowed after doubled cooldown: %v", err)
	}

	// Second failed probe: would be 120s; third 240s but capped at 120s.
	b.Record(errors.New("still down"))
	*clock = clock.Add(121 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("probe not allowed after third cooldown: %v", err)
	}
	b.Record(errors.New("still down"))
	*clock = clock.Add(121 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("cooldown exceeded the cap: %v", err)
	}
}

// TestBreaker_Do tests the combined Allow/Record wrapper.
func TestBreaker_Do(t *testing.T) {
	b, _ := testBreaker(BreakerConfig{MaxFailures: 1, BaseCooldown: time.Minute})

	if err := b.Do(func() error { return errors.New("boom") }); err == nil {
		t.Fatal("Do() swallowed the op error")
	}

	calls := 0
	err := b.Do(func() error { calls++; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Do() while open = %v, want ErrCircuitOpen", err)
	}
	if calls != 0 {
		t.Errorf("op invoked %d times through an open breaker", calls)
	}
}

// TestBreakerSet_PerKeyIsolation tests that one key's trips do not affect
// another's breaker.
func TestBreakerSet_PerKeyIsolation(t *testing.T) {
	set := NewBreakerSet(BreakerConfig{MaxFailures: 1, BaseCooldown: time.Minute})

	set.For("photo").Record(errors.New("down"))

	if set.For("photo").State() != StateOpen {
		t.Error("photo breaker not open after trip")
	}
	if set.For("time_record").State() != StateClosed {
		t.Error("time_record breaker affected by photo trip")
	}
	if set.For("photo") != set.For("photo") {
		t.Error("For() did not return the same breaker for the same key")
	}

	states := set.States()
	if states["photo"] != StateOpen {
		t.Errorf("States()[photo] = %v, want open", states["photo"])
	}
}
