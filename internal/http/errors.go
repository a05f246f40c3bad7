package http

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout matches a TimeoutError.
	ErrTimeout = errors.New("request timed out")

	// ErrConnectionBroken matches a ConnectionBrokenError.
	ErrConnectionBroken = errors.New("connection broken")

	// ErrMaxRetries matches a MaxRetryError.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// TimeoutError reports a socket timeout during a single attempt.
// Timeouts are not retried.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("connection to %s timed out after %v: %v", e.URL, e.Timeout, e.Err)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Unwrap() error { return e.Err }

// ConnectionBrokenError reports a transport failure other than a timeout.
// The connection involved is discarded and the request retried.
type ConnectionBrokenError struct {
	URL string
	Err error
}

func (e *ConnectionBrokenError) Error() string {
	return fmt.Sprintf("connection broken for %s: %v", e.URL, e.Err)
}

func (e *ConnectionBrokenError) Is(target error) bool { return target == ErrConnectionBroken }

func (e *ConnectionBrokenError) Unwrap() error { return e.Err }

// MaxRetryError is returned once the retry budget is spent, either by broken
// connections or by followed redirects. Reason holds the last
// ConnectionBrokenError, if any.
type MaxRetryError struct {
	URL    string
	Reason error
}

func (e *MaxRetryError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("max retries exceeded for url: %s (last error: %v)", e.URL, e.Reason)
	}
	return fmt.Sprintf("max retries exceeded for url: %s", e.URL)
}

func (e *MaxRetryError) Is(target error) bool { return target == ErrMaxRetries }

func (e *MaxRetryError) Unwrap() error { return e.Reason }
