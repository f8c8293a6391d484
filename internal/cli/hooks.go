package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/matzehuels/cargo-dl/pkg/observability"
)

// installHooks routes HTTP and cache events to debug logging.
func installHooks(logger *log.Logger) {
	observability.SetHTTPHooks(httpLogHooks{logger: logger})
	observability.SetCacheHooks(cacheLogHooks{logger: logger})
}

type httpLogHooks struct {
	logger *log.Logger
}

func (h httpLogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h httpLogHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "method", method, "host", host, "path", path,
		"status", status, "duration", d.Round(time.Millisecond))
}

func (h httpLogHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}

type cacheLogHooks struct {
	logger *log.Logger
}

func (h cacheLogHooks) OnCacheHit(_ context.Context, archive, path string) {
	h.logger.Debug("cache hit", "archive", archive, "path", path)
}

func (h cacheLogHooks) OnCacheMiss(_ context.Context, archive, reason string) {
	h.logger.Debug("cache miss", "archive", archive, "reason", reason)
}

// stageLogHooks logs pipeline stages at debug level.
type stageLogHooks struct {
	observability.NoopPipelineHooks
	logger *log.Logger
}

func (h stageLogHooks) OnStage(_ context.Context, item observability.Item, stage observability.Stage, detail string) {
	if stage.Terminal() {
		return
	}
	h.logger.Debug(string(stage), "crate", item.Spec, "detail", detail)
}

// logProgressHooks reports pipeline progress through the logger when no
// terminal is attached. Download progress is logged in quarter steps, or
// every progressStep bytes when the size is unknown. A download that
// starts over after a retry is reported from the beginning again.
type logProgressHooks struct {
	stageLogHooks

	mu   sync.Mutex
	last map[int]int64 // last logged step per item
	seen map[int]int64 // last reported byte count per item
}

const progressStep = 4 << 20

func newLogProgressHooks(logger *log.Logger) *logProgressHooks {
	return &logProgressHooks{
		stageLogHooks: stageLogHooks{logger: logger},
		last:          make(map[int]int64),
		seen:          make(map[int]int64),
	}
}

func (h *logProgressHooks) OnProgress(_ context.Context, item observability.Item, done, total int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if done < h.seen[item.Index] {
		h.last[item.Index] = 0
	}
	h.seen[item.Index] = done

	if total > 0 {
		step := done * 4 / total
		if step <= h.last[item.Index] {
			return
		}
		h.last[item.Index] = step
		h.logger.Info("downloading", "crate", item.Spec,
			"progress", fmt.Sprintf("%d%%", step*25),
			"bytes", humanize.IBytes(uint64(done)))
		return
	}

	step := done / progressStep
	if step <= h.last[item.Index] {
		return
	}
	h.last[item.Index] = step
	h.logger.Info("downloading", "crate", item.Spec, "bytes", humanize.IBytes(uint64(done)))
}
