package httputil

import (
	"context"
	"errors"
	"time"
)

// Default retry settings for registry clients.
const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network errors, 5xx and 429 responses) with this
// type so that [Retry] attempts the operation again. A positive After
// overrides the backoff delay for the next attempt, e.g. from a Retry-After
// header.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a [RetryableError]. It returns nil for a nil err.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Retry executes fn up to attempts times with exponential backoff.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. The delay doubles after each failed attempt.
// Returns the last error if all attempts fail, or ctx.Err() if cancelled.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var re *RetryableError
		if !errors.As(err, &re) {
			return err
		}
		if i == attempts-1 {
			break
		}

		wait := delay
		if re.After > 0 {
			wait = re.After
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			delay *= 2
		}
	}
	return lastErr
}

// IsRetryable reports whether err is wrapped with [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}
