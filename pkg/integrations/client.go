package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/matzehuels/cargo-dl/pkg/errors"
	"github.com/matzehuels/cargo-dl/pkg/httputil"
	"github.com/matzehuels/cargo-dl/pkg/observability"
)

// ProgressFunc observes a streaming download. Total is -1 when the server
// did not announce a length. It is called from the downloading goroutine.
type ProgressFunc func(done, total int64)

// Client provides shared HTTP functionality for the registry clients.
// It handles retry logic, status mapping and common request headers.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	http     *http.Client
	headers  map[string]string
	attempts int
	delay    time.Duration
}

// NewClient creates a Client with the given default headers and timeout.
// Headers are applied to all requests made through this client.
// Pass nil for headers if no default headers are needed.
func NewClient(headers map[string]string, timeout time.Duration) *Client {
	return &Client{
		http:     NewHTTPClient(timeout),
		headers:  headers,
		attempts: httputil.DefaultAttempts,
		delay:    httputil.DefaultDelay,
	}
}

// WithHTTPClient returns a copy of c that sends requests through hc.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *c
	cp.http = hc
	return &cp
}

// WithRetry returns a copy of c that makes at most attempts tries per
// request, waiting delay before the first retry.
func (c *Client) WithRetry(attempts int, delay time.Duration) *Client {
	cp := *c
	cp.attempts = attempts
	cp.delay = delay
	return &cp
}

func (c *Client) retry(ctx context.Context, fn func() error) error {
	return httputil.Retry(ctx, c.attempts, c.delay, fn)
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
// Transient failures are retried with backoff.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	data, err := c.GetBytes(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// GetBytes performs an HTTP GET request and returns the whole body.
// Transient failures are retried with backoff.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := c.retry(ctx, func() error {
		body, _, err := c.doRequest(ctx, url)
		if err != nil {
			return err
		}
		defer body.Close()
		data, err = io.ReadAll(body)
		if err != nil {
			return httputil.Retryable(fmt.Errorf("%w: read body: %v", ErrNetwork, err))
		}
		return nil
	})
	return data, err
}

// Download streams the body of url into memory, reporting progress as
// bytes arrive. Bodies larger than limit bytes fail with [ErrTooLarge];
// a limit <= 0 disables the check. Transient failures restart the download.
func (c *Client) Download(ctx context.Context, url string, limit int64, progress ProgressFunc) ([]byte, error) {
	if progress == nil {
		progress = func(int64, int64) {}
	}

	var data []byte
	err := c.retry(ctx, func() error {
		body, total, err := c.doRequest(ctx, url)
		if err != nil {
			return err
		}
		defer body.Close()

		if limit > 0 && total > limit {
			return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, total, limit)
		}

		var r io.Reader = &progressReader{r: body, total: total, fn: progress}
		if limit > 0 {
			r = io.LimitReader(r, limit+1)
		}
		buf := make([]byte, 0, max(total, 0))
		data, err = readAll(r, buf)
		if err != nil {
			return httputil.Retryable(fmt.Errorf("%w: read body: %v", ErrNetwork, err))
		}
		if limit > 0 && int64(len(data)) > limit {
			return fmt.Errorf("%w: body exceeds limit of %d bytes", ErrTooLarge, limit)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) doRequest(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	host, path := hostPath(req.URL)
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound, code == http.StatusGone, code == http.StatusUnavailableForLegalReasons:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		rl := &errors.RateLimitedError{}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			rl.RetryAfter = secs
		}
		return &httputil.RetryableError{
			Err:   fmt.Errorf("%w: %w", ErrNetwork, rl),
			After: time.Duration(rl.RetryAfter) * time.Second,
		}
	case code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

func hostPath(u *url.URL) (string, string) {
	if u == nil {
		return "", ""
	}
	return u.Host, u.Path
}

// readAll is io.ReadAll appending into a caller-provided buffer.
func readAll(r io.Reader, b []byte) ([]byte, error) {
	for {
		if len(b) == cap(b) {
			b = append(b, 0)[:len(b)]
		}
		n, err := r.Read(b[len(b):cap(b)])
		b = b[:len(b)+n]
		if err == io.EOF {
			return b, nil
		}
		if err != nil {
			return b, err
		}
	}
}

type progressReader struct {
	r     io.Reader
	done  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.fn(p.done, p.total)
	}
	return n, err
}
