package backoff

import (
	"context"
	"errors"
	"time"
)

// ErrAttemptsExhausted is returned when all retry attempts have failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Sleep waits for the policy delay of the given attempt, returning early
// with the context error if the context is cancelled.
func Sleep(ctx context.Context, policy Policy, attempt int) error {
	timer := time.NewTimer(policy.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry executes fn up to maxAttempts times with exponential backoff between
// attempts. fn receives the 1-indexed attempt number. A nil retryable
// predicate retries every error; otherwise a non-retryable error stops the
// loop immediately and is returned as-is. Context cancellation is observed
// both before each attempt and during backoff sleeps.
func Retry[T any](
	ctx context.Context,
	policy Policy,
	maxAttempts int,
	retryable func(error) bool,
	fn func(attempt int) (T, error),
) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := fn(attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if retryable != nil && !retryable(err) {
			return zero, err
		}
		if attempt < maxAttempts {
			if err := Sleep(ctx, policy, attempt); err != nil {
				return zero, err
			}
		}
	}

	if lastErr != nil {
		return zero, lastErr
	}
	return zero, ErrAttemptsExhausted
}
