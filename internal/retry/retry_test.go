package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastConfig keeps test backoff delays negligible.
func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Jitter:      0,
	}
}

// TestDo_SucceedsFirstAttempt tests that a successful op is not retried.
func TestDo_SucceedsFirstAttempt(t *testing.T) {
	p := NewPolicy(fastConfig(3))

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

// TestDo_RetriesUntilSuccess tests recovery on a later attempt.
func TestDo_RetriesUntilSuccess(t *testing.T) {
	p := NewPolicy(fastConfig(3))

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

// TestDo_ExhaustsAttempts tests that the last attempt's error is returned.
func TestDo_ExhaustsAttempts(t *testing.T) {
	p := NewPolicy(fastConfig(3))

	wantErr := errors.New("still down")
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Do() = %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

// TestDo_RetryIf tests that non-retryable errors stop immediately.
func TestDo_RetryIf(t *testing.T) {
	config := fastConfig(5)
	permanent := errors.New("rejected")
	config.RetryIf = func(err error) bool { return !errors.Is(err, permanent) }
	p := NewPolicy(config)

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("Do() = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

// TestDo_ContextCancelled tests that cancellation stops the backoff wait.
func TestDo_ContextCancelled(t *testing.T) {
	p := NewPolicy(Config{
		MaxAttempts: 3,
		BaseDelay:   time.Hour,
		MaxDelay:    time.Hour,
		Jitter:      0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func() error {
			calls++
			return errors.New("down")
		})
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do() did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}
