// Package observability provides hooks for progress reporting and instrumentation.
//
// Libraries emit events through small hook interfaces; the CLI (or a test)
// decides what to do with them. Every interface has a no-op implementation
// so emitting an event never requires a nil check.
//
// # Architecture
//
//   - [PipelineHooks]: per-crate stage transitions and download progress,
//     passed explicitly to the pipeline runner.
//   - [CacheHooks]: local cache probe outcomes.
//   - [HTTPHooks]: outgoing requests made by the registry client.
//
// Cache and HTTP hooks are registered process-wide at startup:
//
//	func main() {
//	    observability.SetHTTPHooks(&myHTTPHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.HTTP().OnRequest(ctx, "GET", host, path)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// Stage is one step of a crate's pipeline.
type Stage string

// Pipeline stages in the order a crate passes through them.
const (
	StageLocating  Stage = "locating"
	StageSelecting Stage = "selecting version"
	StageCache     Stage = "checking cache"
	StageFetching  Stage = "downloading"
	StageVerifying Stage = "verifying checksum"
	StageWriting   Stage = "writing"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// Terminal reports whether no further events follow s.
func (s Stage) Terminal() bool { return s == StageDone || s == StageFailed }

// Item identifies one specifier within a batch.
// Index is the position in the input, so duplicate specifiers stay distinct.
type Item struct {
	Index int
	Spec  string
}

// PipelineHooks receives events from the download pipeline.
// Implementations must be safe for concurrent use; items run in parallel.
type PipelineHooks interface {
	// OnStage records that item entered stage. Detail is a short
	// human-readable subject such as "serde 1.0.0" and may be empty.
	OnStage(ctx context.Context, item Item, stage Stage, detail string)

	// OnProgress reports downloaded bytes. Total is -1 when unknown.
	OnProgress(ctx context.Context, item Item, done, total int64)

	// OnFinish records the outcome of item. Err is nil on success.
	OnFinish(ctx context.Context, item Item, err error, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from local cache probes.
type CacheHooks interface {
	// OnCacheHit records a verified cache hit for an archive.
	OnCacheHit(ctx context.Context, archive, path string)

	// OnCacheMiss records a miss. Reason is "disabled", "absent" or "checksum".
	OnCacheMiss(ctx context.Context, archive, reason string)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnStage(context.Context, Item, Stage, string)          {}
func (NoopPipelineHooks) OnProgress(context.Context, Item, int64, int64)        {}
func (NoopPipelineHooks) OnFinish(context.Context, Item, error, time.Duration) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string, string)  {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string, string) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Fan-out
// =============================================================================

// MultiPipelineHooks forwards every event to each hook in order.
type MultiPipelineHooks []PipelineHooks

func (m MultiPipelineHooks) OnStage(ctx context.Context, item Item, stage Stage, detail string) {
	for _, h := range m {
		h.OnStage(ctx, item, stage, detail)
	}
}

func (m MultiPipelineHooks) OnProgress(ctx context.Context, item Item, done, total int64) {
	for _, h := range m {
		h.OnProgress(ctx, item, done, total)
	}
}

func (m MultiPipelineHooks) OnFinish(ctx context.Context, item Item, err error, d time.Duration) {
	for _, h := range m {
		h.OnFinish(ctx, item, err, d)
	}
}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	cacheHooks CacheHooks = NoopCacheHooks{}
	httpHooks  HTTPHooks  = NoopHTTPHooks{}
	hooksMu    sync.RWMutex
)

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
