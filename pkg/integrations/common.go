package integrations

import (
	"errors"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds connection setup and the wait for response headers.
// Body transfer is not bounded so large archives on slow links still finish.
const DefaultTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the registry.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, non-2xx responses).
	ErrNetwork = errors.New("network error")

	// ErrTooLarge is returned when a response body exceeds the configured size limit.
	ErrTooLarge = errors.New("response too large")
)

// NewHTTPClient creates an HTTP client for registry requests.
// TLS, proxies from the environment and gzip negotiation come from the
// default transport; timeout applies to dialing, TLS handshakes and
// response headers. A timeout <= 0 selects [DefaultTimeout].
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = timeout
	tr.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: tr}
}

// UserAgent returns the User-Agent header value sent with every request.
func UserAgent(version string) string {
	return "cargo-dl/" + version + " (https://github.com/matzehuels/cargo-dl)"
}
