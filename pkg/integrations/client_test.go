package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	cderrors "github.com/matzehuels/cargo-dl/pkg/errors"
)

func testClient(t *testing.T, server *httptest.Server, headers map[string]string) *Client {
	t.Helper()
	return NewClient(headers, time.Second).
		WithHTTPClient(server.Client()).
		WithRetry(3, time.Millisecond)
}

func TestNewClient(t *testing.T) {
	headers := map[string]string{"User-Agent": UserAgent("1.2.3")}
	client := NewClient(headers, 0)

	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.http == nil {
		t.Error("NewClient() http client is nil")
	}
	if client.headers["User-Agent"] != "cargo-dl/1.2.3 (https://github.com/matzehuels/cargo-dl)" {
		t.Errorf("NewClient() headers = %v", client.headers)
	}
	if client.attempts != 3 {
		t.Errorf("attempts = %d, want 3", client.attempts)
	}
}

func TestClientGet(t *testing.T) {
	type response struct {
		Message string `json:"message"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		json.NewEncoder(w).Encode(response{Message: "hello"})
	}))
	defer server.Close()

	client := testClient(t, server, nil)

	var resp response
	if err := client.Get(context.Background(), server.URL, &resp); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.Message != "hello" {
		t.Errorf("Get() message = %q, want %q", resp.Message, "hello")
	}
}

func TestClientSendsHeaders(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := testClient(t, server, map[string]string{"User-Agent": "cargo-dl/test"})
	if _, err := client.GetBytes(context.Background(), server.URL); err != nil {
		t.Fatalf("GetBytes() error = %v", err)
	}
	if got != "cargo-dl/test" {
		t.Errorf("User-Agent = %q, want %q", got, "cargo-dl/test")
	}
}

func TestClientStatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		wantCalls int32
	}{
		{"not found", http.StatusNotFound, ErrNotFound, 1},
		{"gone", http.StatusGone, ErrNotFound, 1},
		{"legal", http.StatusUnavailableForLegalReasons, ErrNotFound, 1},
		{"forbidden", http.StatusForbidden, ErrNetwork, 1},
		{"server error", http.StatusInternalServerError, ErrNetwork, 3},
		{"bad gateway", http.StatusBadGateway, ErrNetwork, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := testClient(t, server, nil).GetBytes(context.Background(), server.URL)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetBytes() error = %v, want %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("server calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestClientRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer server.Close()

	data, err := testClient(t, server, nil).GetBytes(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetBytes() error = %v", err)
	}
	if string(data) != "finally" {
		t.Errorf("GetBytes() = %q", data)
	}
}

func TestClientRateLimited(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testClient(t, server, nil).GetBytes(context.Background(), server.URL)
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
	var rl *cderrors.RateLimitedError
	if !errors.As(err, &rl) {
		t.Errorf("error = %v, want RateLimitedError in chain", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server calls = %d, want 3", calls.Load())
	}
}

func TestCheckStatusRetryAfter(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"7"}},
	}
	err := checkStatus(resp)

	var rl *cderrors.RateLimitedError
	if !errors.As(err, &rl) || rl.RetryAfter != 7 {
		t.Fatalf("checkStatus() = %v, want RetryAfter 7", err)
	}
	if !strings.Contains(err.Error(), "retry after 7 seconds") {
		t.Errorf("error = %q", err)
	}
}

func TestClientDownload(t *testing.T) {
	body := strings.Repeat("x", 10_000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	var last, total int64
	data, err := testClient(t, server, nil).Download(context.Background(), server.URL, 1<<20, func(d, tot int64) {
		if d < last {
			t.Errorf("progress went backwards: %d after %d", d, last)
		}
		last, total = d, tot
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if string(data) != body {
		t.Errorf("Download() returned %d bytes, want %d", len(data), len(body))
	}
	if last != int64(len(body)) {
		t.Errorf("final progress = %d, want %d", last, len(body))
	}
	if total != int64(len(body)) {
		t.Errorf("total = %d, want %d", total, len(body))
	}
}

func TestClientDownloadTooLarge(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"content length", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(strings.Repeat("a", 2048)))
		}},
		{"chunked", func(w http.ResponseWriter, r *http.Request) {
			for range 4 {
				w.Write([]byte(strings.Repeat("a", 512)))
				w.(http.Flusher).Flush()
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer server.Close()

			_, err := testClient(t, server, nil).Download(context.Background(), server.URL, 1024, nil)
			if !errors.Is(err, ErrTooLarge) {
				t.Errorf("Download() error = %v, want ErrTooLarge", err)
			}
			if calls.Load() != 1 {
				t.Errorf("server calls = %d, want 1 (too large is not retried)", calls.Load())
			}
		})
	}
}

func TestClientCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(nil, time.Second).WithHTTPClient(server.Client()).GetBytes(ctx, server.URL)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("GetBytes() error = %v, want context.Canceled", err)
	}
}
