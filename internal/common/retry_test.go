package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryOptions {
	return RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return ErrRateSourceUnavailable
			}
			return nil
		}, fastRetry())

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		boom := errors.New("bad request")
		err := WithRetry(context.Background(), func() error {
			calls++
			return &RetryableError{Err: boom, Retryable: false}
		}, fastRetry())

		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("reports exhaustion", func(t *testing.T) {
		err := WithRetry(context.Background(), func() error {
			return ErrRateSourceUnavailable
		}, fastRetry())

		require.ErrorIs(t, err, ErrMaxRetries)
		assert.ErrorIs(t, err, ErrRateSourceUnavailable)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		opts := fastRetry()
		opts.InitialDelay = time.Second
		err := WithRetry(ctx, func() error {
			return ErrRateSourceUnavailable
		}, opts)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsRecordError(t *testing.T) {
	assert.True(t, IsRecordError(ErrInvalidNumericInput))
	assert.True(t, IsRecordError(NewUserError("bad", ErrInvalidDateRange)))
	assert.False(t, IsRecordError(ErrNoRulesConfigured))
	assert.False(t, IsRecordError(nil))
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, "WARN", lvl.String())

	_, err = ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
