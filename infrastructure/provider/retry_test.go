package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func alwaysRetry(error) bool { return true }

func TestRetry_ZeroValueAttemptsOnce(t *testing.T) {
	calls := 0
	err := Retry{}.do(context.Background(), func() error {
		calls++
		return errTransient
	}, alwaysRetry)

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
	assert.NotContains(t, err.Error(), "max retries")
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	r := Retry{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}

	err := r.do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, alwaysRetry)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	calls := 0
	r := Retry{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffFactor: 1}

	err := r.do(context.Background(), func() error {
		calls++
		return errTransient
	}, alwaysRetry)

	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	r := Retry{MaxRetries: 5, InitialDelay: time.Millisecond, BackoffFactor: 1}

	err := r.do(context.Background(), func() error {
		calls++
		return errTransient
	}, func(error) bool { return false })

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry{MaxRetries: 3}.do(ctx, func() error { return nil }, alwaysRetry)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryableStatus(t *testing.T) {
	assert.True(t, retryableStatus(429))
	assert.True(t, retryableStatus(503))
	assert.False(t, retryableStatus(400))
	assert.False(t, retryableStatus(401))
}
