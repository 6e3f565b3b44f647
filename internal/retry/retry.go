// Package retry wraps remote calls with bounded retries and linear backoff.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Defaults match the platform's observed tolerance for re-issued calls.
const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 600 * time.Millisecond
)

// Do invokes op with the default attempt budget. See DoWith.
func Do[T any](ctx context.Context, logger *slog.Logger, label string, op func(ctx context.Context) (T, error)) (T, error) {
	return DoWith(ctx, logger, label, DefaultAttempts, DefaultBaseDelay, op)
}

// DoWith invokes op up to attempts times, sleeping baseDelay multiplied by
// the 1-based attempt number between tries. Each failed attempt is logged
// with its cause. On exhaustion the last error is returned unchanged so
// callers can still inspect its type.
func DoWith[T any](ctx context.Context, logger *slog.Logger, label string, attempts int, baseDelay time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if logger != nil {
			logger.Warn("remote call failed",
				"label", label,
				"attempt", attempt,
				"max_attempts", attempts,
				"error", err)
		}

		if attempt == attempts {
			break
		}
		if !sleep(ctx, baseDelay*time.Duration(attempt)) {
			break
		}
	}

	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
