package openaq

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	t.Parallel()
	attempts := 0

	err := RetryWithBackoff(context.Background(), 5, time.Millisecond, func() error {
		attempts++
		if attempts == 3 {
			return nil
		}
		return errors.New("temporary error")
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_MaxRetriesExceeded(t *testing.T) {
	t.Parallel()
	attempts := 0
	want := errors.New("still failing")

	err := RetryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		return want
	})
	assert.Equal(t, want, err)
	assert.Equal(t, 4, attempts, "initial attempt plus three retries")
}

func TestRetryWithBackoff_PermanentError(t *testing.T) {
	t.Parallel()
	cause := errors.New("client error")

	tests := []struct {
		name string
		err  error
	}{
		{"direct", &permanentError{err: cause}},
		{"wrapped", fmt.Errorf("wrapped: %w", &permanentError{err: cause})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			attempts := 0
			err := RetryWithBackoff(context.Background(), 5, time.Millisecond, func() error {
				attempts++
				return tt.err
			})
			assert.Equal(t, 1, attempts)
			assert.Equal(t, cause, err)
		})
	}
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := RetryWithBackoff(ctx, 5, time.Second, func() error {
		attempts++
		cancel()
		return errors.New("temporary error")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
