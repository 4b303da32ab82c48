package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Clock abstracts time for the driver so retries and pacing can be tested
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryPolicy runs an operation up to MaxAttempts times, sleeping Delay
// between attempts. Each delay is the previous one multiplied by Multiplier.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy gives a device three chances with a fixed two second pause
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	Delay:       2 * time.Second,
	Multiplier:  1,
}

func (p RetryPolicy) Validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("retry: max attempts must be positive: %d", p.MaxAttempts)
	}
	if p.Delay < 0 {
		return fmt.Errorf("retry: delay must not be negative: %s", p.Delay)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("retry: multiplier must be at least 1: %g", p.Multiplier)
	}
	return nil
}

// Do calls fn with the 1-based attempt number until it succeeds, returns a
// Permanent error or attempts run out. Cancellation while waiting returns ctx.Err().
func (p RetryPolicy) Do(ctx context.Context, clock Clock, fn func(attempt int) error) error {
	delay := p.Delay
	attempts := max(p.MaxAttempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		if attempt == attempts {
			break
		}

		if serr := clock.Sleep(ctx, delay); serr != nil {
			return serr
		}
		delay = time.Duration(float64(delay) * max(p.Multiplier, 1))
	}

	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}
