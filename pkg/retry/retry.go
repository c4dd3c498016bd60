// Package retry provides a bounded retry combinator with pluggable backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// BackoffFunc returns the delay before the given attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// Linear returns a backoff of base multiplied by the attempt index, so
// retries wait base, 2*base, 3*base, ...
func Linear(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// None returns a zero backoff for tests and non-network operations.
func None() BackoffFunc {
	return func(int) time.Duration { return 0 }
}

// Do runs op up to maxAttempts times, sleeping backoff(attempt) between
// attempts. It returns nil on the first success, the last error once
// attempts are exhausted, and the context error if canceled while waiting.
func Do(ctx context.Context, maxAttempts int, backoff BackoffFunc, op func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		return fmt.Errorf("retry: maxAttempts must be at least 1, got %d", maxAttempts)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := backoff(attempt - 1)
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			} else if err := ctx.Err(); err != nil {
				return err
			}
		}

		if err := op(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}
