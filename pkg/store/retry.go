package store

import (
	"context"
	"errors"
	"net"
	"time"
)

const (
	// retryAttempts is the total number of tries for a transient
	// backend failure.
	retryAttempts = 3
	// retryBaseDelay is the delay before the first retry; it doubles
	// each attempt.
	retryBaseDelay = 200 * time.Millisecond
)

// retryTransient runs fn up to retryAttempts times, backing off
// exponentially between attempts. Only errors classified transient by
// isTransient are retried; others surface immediately.
func retryTransient(ctx context.Context, isTransient func(error) bool, fn func() error) error {
	var lastErr error
	delay := retryBaseDelay
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
		lastErr = fn()
		if lastErr == nil || !isTransient(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// isNetworkError reports whether err looks like a connectivity
// failure worth retrying.
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
