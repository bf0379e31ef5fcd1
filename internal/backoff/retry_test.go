package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicyDelay(t *testing.T) {
	policy := Policy{Initial: time.Second, Max: 30 * time.Second, Factor: 2, Jitter: 0}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second}, // clamped
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := policy.delayWithRand(tt.attempt, 0); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPolicyDelayJitter(t *testing.T) {
	policy := Policy{Initial: time.Second, Max: time.Minute, Factor: 2, Jitter: 0.5}

	// With random = 1.0 the jitter adds the full 50%.
	got := policy.delayWithRand(1, 1.0)
	if got != 1500*time.Millisecond {
		t.Errorf("jittered delay = %v, want 1.5s", got)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	policy := Policy{Initial: time.Millisecond, Max: time.Millisecond, Factor: 1}
	calls := 0

	got, err := Retry(context.Background(), policy, 3, nil, func(attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls, want ok after 3", got, calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	policy := Policy{Initial: time.Millisecond, Max: time.Millisecond, Factor: 1}
	fatal := errors.New("fatal")
	calls := 0

	_, err := Retry(context.Background(), policy, 5, func(err error) bool { return !errors.Is(err, fatal) },
		func(int) (int, error) {
			calls++
			return 0, fatal
		})
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v, want fatal", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	policy := Policy{Initial: time.Millisecond, Max: time.Millisecond, Factor: 1}
	transient := errors.New("transient")
	calls := 0

	_, err := Retry(context.Background(), policy, 4, nil, func(int) (int, error) {
		calls++
		return 0, transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("err = %v, want last transient error", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestRetryObservesCancellation(t *testing.T) {
	policy := Policy{Initial: time.Hour, Max: time.Hour, Factor: 1}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, policy, 3, nil, func(int) (int, error) {
			return 0, errors.New("transient")
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retry did not observe cancellation during backoff sleep")
	}
}
