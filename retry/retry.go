// Package retry wraps operations with bounded exponential backoff. It
// is deliberately source-agnostic: both price sources and the FX rate
// fetch share it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Policy configures the retry behaviour.
type Policy struct {
	// MaxAttempts bounds total tries, including the first.
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles per
	// attempt up to BackoffMax.
	Backoff    time.Duration
	BackoffMax time.Duration
	// Jitter adds up to 50% random slack to each delay so serialized
	// clients do not fall into lockstep with a rate limiter.
	Jitter bool
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not worth retrying (auth failures,
// malformed queries). Do stops immediately and returns the wrapped
// error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe permanentError
	return errors.As(err, &pe)
}

// Do runs fn until it succeeds, the attempts are exhausted, fn returns
// a permanent error, or the context is cancelled.
func (p Policy) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var pe permanentError
		if errors.As(lastErr, &pe) {
			return pe.err
		}
		if attempt == attempts {
			break
		}

		delay := p.delay(attempt)
		slog.Debug("retrying operation",
			slog.String("operation", operation),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr),
		)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}

func (p Policy) delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := p.Backoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if p.BackoffMax > 0 && delay > p.BackoffMax {
		delay = p.BackoffMax
	}
	if half := int64(delay) / 2; p.Jitter && half > 0 {
		delay += time.Duration(rand.Int64N(half))
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
