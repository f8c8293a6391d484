// Package integrations provides the HTTP layer shared by registry clients.
//
// # Overview
//
// [Client] wraps an [net/http.Client] with default headers, status mapping
// and retries. Registry-specific clients embed it:
//
//   - [crates]: the crates.io sparse index and archive downloads
//
// # Errors
//
// Responses are mapped onto sentinel errors so callers can use errors.Is:
//
//   - 404, 410 and 451 become [ErrNotFound]
//   - other non-2xx responses and transport failures wrap [ErrNetwork]
//   - bodies over the caller's limit wrap [ErrTooLarge]
//
// 5xx and 429 responses and connection failures are retried with
// exponential backoff (see [httputil.Retry]); a Retry-After header on a 429
// replaces the backoff delay.
//
// # Streaming
//
// [Client.Download] reads the body incrementally and reports progress
// through a [ProgressFunc] after every chunk, so long downloads stay
// visibly live.
//
// [crates]: github.com/matzehuels/cargo-dl/pkg/integrations/crates
package integrations
