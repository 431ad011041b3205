package retry

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a breaker rejects a call without
// attempting it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the current position of a circuit breaker.
type BreakerState int

const (
	// StateClosed passes calls through normally.
	StateClosed BreakerState = iota
	// StateOpen rejects calls immediately until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets one probe call through after the cooldown.
	StateHalfOpen
)

// String returns a human-readable representation of the state.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that trips the
	// breaker.
	MaxFailures int

	// BaseCooldown is the open window after the first trip. It doubles
	// every time the breaker opens again.
	BaseCooldown time.Duration

	// MaxCooldown caps the open window.
	MaxCooldown time.Duration
}

// DefaultBreakerConfig returns the breaker defaults: trip after 5
// consecutive failures, 30s first cooldown, doubling up to 30 minutes.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:  5,
		BaseCooldown: 30 * time.Second,
		MaxCooldown:  30 * time.Minute,
	}
}

// Breaker is a circuit breaker for one entity type's sync calls.
// It is safe for concurrent use and is never persisted: every process
// start begins closed.
type Breaker struct {
	mu        sync.Mutex
	config    BreakerConfig
	state     BreakerState
	failures  int
	openCount int
	openUntil time.Time

	now func() time.Time // test seam
}

// NewBreaker creates a closed breaker, filling unset config fields with
// defaults.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.BaseCooldown <= 0 {
		config.BaseCooldown = 30 * time.Second
	}
	if config.MaxCooldown <= 0 {
		config.MaxCooldown = 30 * time.Minute
	}
	return &Breaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Do runs op through the breaker. If the breaker is open, op is not
// invoked and ErrCircuitOpen is returned.
func (b *Breaker) Do(op func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := op()
	b.Record(err)
	return err
}

// Allow reports whether a call may proceed. An open breaker whose cooldown
// has elapsed transitions to half-open and allows one probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return nil
	case StateOpen:
		if b.now().Before(b.openUntil) {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		return nil
	}
	return nil
}

// Record reports the outcome of a call that Allow permitted.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = StateClosed
		b.failures = 0
		b.openCount = 0
		return
	}

	if b.state == StateHalfOpen {
		// Failed probe reopens with a doubled cooldown.
		b.trip()
		return
	}

	b.failures++
	if b.failures >= b.config.MaxFailures {
		b.trip()
	}
}

// trip opens the breaker. Caller must hold b.mu.
func (b *Breaker) trip() {
	b.openCount++
	cooldown := b.config.BaseCooldown << (b.openCount - 1)
	if cooldown > b.config.MaxCooldown || cooldown <= 0 {
		cooldown = b.config.MaxCooldown
	}
	b.state = StateOpen
	b.openUntil = b.now().Add(cooldown)
	b.failures = 0
}

// State returns the breaker's current state, accounting for an elapsed
// cooldown.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && !b.now().Before(b.openUntil) {
		return StateHalfOpen
	}
	return b.state
}

// BreakerSet holds one breaker per entity type.
type BreakerSet struct {
	mu       sync.Mutex
	config   BreakerConfig
	breakers map[string]*Breaker
}

// NewBreakerSet creates an empty breaker set; breakers are created closed
// on first use.
func NewBreakerSet(config BreakerConfig) *BreakerSet {
	return &BreakerSet{
		config:   config,
		breakers: make(map[string]*Breaker),
	}
}

// For returns the breaker for the given key, creating it if needed.
func (s *BreakerSet) For(key string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breakers[key]
	if !ok {
		b = NewBreaker(s.config)
		s.breakers[key] = b
	}
	return b
}

// States returns the current state of every breaker that has been used.
func (s *BreakerSet) States() map[string]BreakerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := make(map[string]BreakerState, len(s.breakers))
	for key, b := range s.breakers {
		states[key] = b.State()
	}
	return states
}
