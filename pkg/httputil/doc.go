// Package httputil provides retry helpers for registry HTTP clients.
//
// [Retry] runs an operation up to a fixed number of attempts. Only errors
// wrapped with [Retryable] (or a [RetryableError] literal) are retried:
//
//   - network errors and truncated bodies
//   - 5xx server errors
//   - 429 rate limit responses
//
// The delay starts at the given value and doubles after every failed
// attempt. A positive [RetryableError.After], usually taken from a
// Retry-After header, replaces the delay for the next attempt:
//
//	err := httputil.Retry(ctx, httputil.DefaultAttempts, httputil.DefaultDelay, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    ...
//	})
//
// Cancelling ctx interrupts the wait between attempts and returns ctx.Err().
package httputil
