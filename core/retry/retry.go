package retry

import (
	"context"
	"time"
)

// DefaultAttempts bounds external calls that give no better budget.
const DefaultAttempts = 3

// Do invokes fn up to attempts times, waiting delay between failures, and
// returns the last error unchanged once attempts are exhausted. It does not
// inspect the error: every failure is treated as potentially transient.
// The wait is context-aware, never a thread-blocking sleep.
func Do[T any](ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var (
		val T
		err error
	)

	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	var zero T
	return zero, err
}
