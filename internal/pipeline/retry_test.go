package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = errors.New("usb busy")

func TestRetryPolicy_SucceedsOnRetry(t *testing.T) {
	clock := newFakeClock()
	calls := 0

	err := DefaultRetryPolicy.Do(context.Background(), clock, func(attempt int) error {
		calls++
		if attempt < 2 {
			return errBusy
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.slept())
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	clock := newFakeClock()
	calls := 0

	err := DefaultRetryPolicy.Do(context.Background(), clock, func(int) error {
		calls++
		return errBusy
	})

	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, clock.slept())
}

func TestRetryPolicy_Permanent(t *testing.T) {
	clock := newFakeClock()
	calls := 0

	err := DefaultRetryPolicy.Do(context.Background(), clock, func(int) error {
		calls++
		return Permanent(errBusy)
	})

	assert.Equal(t, errBusy, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.slept())
}

func TestRetryPolicy_Multiplier(t *testing.T) {
	clock := newFakeClock()
	policy := RetryPolicy{MaxAttempts: 4, Delay: 100 * time.Millisecond, Multiplier: 2}

	_ = policy.Do(context.Background(), clock, func(int) error { return errBusy })

	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}, clock.slept())
}

func TestRetryPolicy_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := DefaultRetryPolicy.Do(ctx, newFakeClock(), func(int) error {
		calls++
		return errBusy
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultRetryPolicy.Validate())
	assert.Error(t, RetryPolicy{MaxAttempts: 0, Multiplier: 1}.Validate())
	assert.Error(t, RetryPolicy{MaxAttempts: 1, Delay: -1, Multiplier: 1}.Validate())
	assert.Error(t, RetryPolicy{MaxAttempts: 1, Multiplier: 0.5}.Validate())
}

func TestSystemClock_Sleep(t *testing.T) {
	assert.NoError(t, SystemClock.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SystemClock.Sleep(ctx, time.Hour), context.Canceled)
}
