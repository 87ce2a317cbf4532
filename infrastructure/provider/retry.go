package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Retry configures exponential backoff for transient provider failures.
// The zero value performs a single attempt.
type Retry struct {
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
}

// do runs fn until it succeeds, fails with a non-retryable error, or the
// retry budget is spent.
func (r Retry) do(ctx context.Context, fn func() error, retryable func(error) bool) error {
	delay := r.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !retryable(lastErr) {
			return lastErr
		}

		if attempt < r.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * r.BackoffFactor)
			}
		}
	}

	if r.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// retryableStatus reports whether an HTTP status signals a transient failure.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
