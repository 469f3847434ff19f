package retry

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
)

const (
	maxAttempts = 3
	baseBackoff = 500 * time.Millisecond
	jitterBound = 250 * time.Millisecond
)

// Do runs fn up to maxAttempts times, backing off exponentially with
// jitter. fn reports the HTTP status of the failed call; only 429 and 5xx
// (and transport errors, status 0) are retried, everything else is fatal.
func Do(ctx context.Context, log logze.Logger, op string, fn func() (int, error)) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(status) {
			return err
		}

		if attempt == maxAttempts {
			break
		}

		delay := baseBackoff<<(attempt-1) + time.Duration(rand.Int63n(int64(jitterBound)))
		log.Warn("retrying forge call", "op", op, "attempt", attempt, "status", status, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return errm.Wrap(ctx.Err(), "context cancelled during retry")
		case <-time.After(delay):
		}
	}

	return errm.Wrap(lastErr, "all retry attempts failed")
}

func isRetryable(status int) bool {
	if status == 0 {
		return true // transport-level failure
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
