// Package retry runs hub operations under a bounded attempt budget.
//
// Failures that advertise Temporary() are retried immediately; a
// rate-limited failure waits a fixed cooldown first. Everything else
// short-circuits. Exhaustion surfaces as an ExhaustedError wrapping
// the last attempt's error.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultAttempts is the default attempt budget, including the first try.
const DefaultAttempts = 3

// DefaultPerAttemptTimeout is the default deadline for one attempt.
const DefaultPerAttemptTimeout = 10 * time.Second

// DefaultRateLimitCooldown is the default wait after a rate-limited failure.
const DefaultRateLimitCooldown = 2 * time.Second

// Config bounds a retried operation.
type Config struct {
	// Attempts is the maximum number of tries, including the first.
	// Values below 1 are treated as 1.
	Attempts int
	// PerAttemptTimeout bounds each individual attempt. A timed-out
	// attempt consumes budget like any other failure. Zero runs the
	// attempt under the caller's context alone.
	PerAttemptTimeout time.Duration
	// RateLimitCooldown is the fixed wait after a rate-limited failure
	// before the next attempt. Zero retries immediately.
	RateLimitCooldown time.Duration
	// OnRetry, when set, is called before each re-attempt with the
	// error that caused it.
	OnRetry func(err error)
}

// ExhaustedError reports that every attempt failed.
type ExhaustedError struct {
	// Attempts is the number of tries performed.
	Attempts int
	// Last is the error from the final attempt.
	Last error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the final attempt's error.
func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do runs op until it succeeds, a non-retriable error occurs, the
// context ends, or the attempt budget is spent.
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		if i > 0 {
			if cfg.OnRetry != nil {
				cfg.OnRetry(lastErr)
			}
			// Fixed cooldown after throttling; other failures retry
			// immediately.
			if RateLimited(lastErr) && cfg.RateLimitCooldown > 0 {
				select {
				case <-ctx.Done():
					return zero, ctx.Err()
				case <-time.After(cfg.RateLimitCooldown):
				}
			}
		}

		attemptCtx, cancel := attemptContext(ctx, cfg.PerAttemptTimeout)
		v, err := op(attemptCtx)
		cancel()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !Temporary(err) {
			return zero, err
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, Last: lastErr}
}

// attemptContext derives the per-attempt context.
func attemptContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

type temporary interface{ Temporary() bool }

type rateLimited interface{ RateLimited() bool }

// Temporary reports whether err is worth another attempt. An error
// advertising Temporary() decides for itself; a bare deadline error
// means the per-attempt timeout fired, which is also retriable.
func Temporary(err error) bool {
	var t temporary
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// RateLimited reports whether err was a rate-limited failure.
func RateLimited(err error) bool {
	var rl rateLimited
	return errors.As(err, &rl) && rl.RateLimited()
}
