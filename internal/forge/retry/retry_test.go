package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/maxbolgarin/logze/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), logze.With("test", "retry"), "op", func() (int, error) {
		calls++
		return http.StatusOK, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	wantErr := errors.New("not found")

	err := Do(context.Background(), logze.With("test", "retry"), "op", func() (int, error) {
		calls++
		return http.StatusNotFound, wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesServerErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), logze.With("test", "retry"), "op", func() (int, error) {
		calls++
		if calls == 1 {
			return http.StatusInternalServerError, errors.New("boom")
		}
		return http.StatusOK, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, logze.With("test", "retry"), "op", func() (int, error) {
		calls++
		return http.StatusTooManyRequests, errors.New("throttled")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(0))
	assert.True(t, isRetryable(http.StatusTooManyRequests))
	assert.True(t, isRetryable(http.StatusInternalServerError))
	assert.True(t, isRetryable(http.StatusBadGateway))
	assert.False(t, isRetryable(http.StatusOK))
	assert.False(t, isRetryable(http.StatusBadRequest))
	assert.False(t, isRetryable(http.StatusUnauthorized))
	assert.False(t, isRetryable(http.StatusNotFound))
}
