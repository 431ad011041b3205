// Package retry provides the bounded retry policy and per-entity-type
// circuit breakers that wrap every outbound sync call.
//
// The two layers compose: a single handler call is retried in place with
// exponential backoff while the error stays transient; only the final
// outcome of the call is reported to the entity type's breaker.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Config configures the per-call retry policy.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Each subsequent
	// retry doubles it.
	BaseDelay time.Duration

	// MaxDelay caps the backoff between attempts.
	MaxDelay time.Duration

	// Jitter adds randomness to each delay, 0..1 meaning ±fraction.
	Jitter float64

	// RetryIf decides whether an error is worth another attempt.
	// If nil, every error is retried.
	RetryIf func(error) bool
}

// DefaultConfig returns the retry defaults: 3 attempts, 500ms base delay
// doubled per attempt with ±20% jitter, capped at 10s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      0.2,
	}
}

// Policy executes operations with bounded exponential-backoff retry.
type Policy struct {
	config Config
}

// NewPolicy creates a retry policy, filling unset config fields with
// defaults.
func NewPolicy(config Config) *Policy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 500 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	if config.Jitter < 0 || config.Jitter > 1 {
		config.Jitter = 0.2
	}
	return &Policy{config: config}
}

// Do runs op, retrying on retryable errors until MaxAttempts is reached or
// ctx is cancelled. It returns the error of the last attempt.
func (p *Policy) Do(ctx context.Context, op func() error) error {
	var lastErr error
	delay := p.config.BaseDelay

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if p.config.RetryIf != nil && !p.config.RetryIf(lastErr) {
			return lastErr
		}

		if attempt == p.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.jittered(delay)):
		}

		delay *= 2
		if delay > p.config.MaxDelay {
			delay = p.config.MaxDelay
		}
	}

	return lastErr
}

func (p *Policy) jittered(d time.Duration) time.Duration {
	if p.config.Jitter == 0 {
		return d
	}
	spread := float64(d) * p.config.Jitter
	return time.Duration(float64(d) + (rand.Float64()*2-1)*spread)
}
