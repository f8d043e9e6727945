// Package retry runs an operation a bounded number of times with a pluggable delay between attempts.
package retry

import (
	"context"
	"fmt"
	"time"
)

// DelayFunc returns how long to wait after the given failed attempt (1-based).
type DelayFunc func(attempt int) time.Duration

// Policy bounds an operation's attempts.
type Policy struct {
	Attempts int
	Delay    DelayFunc
}

// Constant waits d between every attempt.
func Constant(d time.Duration) DelayFunc {
	return func(int) time.Duration { return d }
}

// Exponential waits initial, then multiplies by multiplier after each attempt, capped at ceiling.
// A multiplier below 1 is treated as 2. A non-positive ceiling disables the cap.
func Exponential(initial, ceiling time.Duration, multiplier float64) DelayFunc {
	if multiplier < 1 {
		multiplier = 2
	}
	return func(attempt int) time.Duration {
		d := float64(initial)
		for i := 1; i < attempt; i++ {
			d *= multiplier
			if ceiling > 0 && d >= float64(ceiling) {
				return ceiling
			}
		}
		if ceiling > 0 && time.Duration(d) > ceiling {
			return ceiling
		}
		return time.Duration(d)
	}
}

// ExhaustedError is returned by [Do] once every attempt has failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// FailureFunc observes a failed attempt before the next one is scheduled.
// next is zero after the final attempt.
type FailureFunc func(attempt int, err error, next time.Duration)

// Do calls fn until it succeeds or the policy's attempts are used up.
//
// It sleeps between attempts but not after the last one. If ctx ends while waiting (or
// before an attempt), ctx.Err() is returned. onFailure may be nil.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error, onFailure FailureFunc) error {
	attempts := max(p.Attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		var wait time.Duration
		if attempt < attempts && p.Delay != nil {
			wait = max(p.Delay(attempt), 0)
		}
		if onFailure != nil {
			onFailure(attempt, lastErr, wait)
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return &ExhaustedError{Attempts: attempts, Err: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
