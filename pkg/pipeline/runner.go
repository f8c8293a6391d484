package pipeline

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/cargo-dl/pkg/archive"
	"github.com/matzehuels/cargo-dl/pkg/cache"
	"github.com/matzehuels/cargo-dl/pkg/errors"
	"github.com/matzehuels/cargo-dl/pkg/integrations"
	"github.com/matzehuels/cargo-dl/pkg/integrations/crates"
	"github.com/matzehuels/cargo-dl/pkg/integrity"
	"github.com/matzehuels/cargo-dl/pkg/observability"
	"github.com/matzehuels/cargo-dl/pkg/resolve"
)

// Registry is the index side of a registry.
type Registry interface {
	crates.Index
	DownloadURL(ctx context.Context, e crates.Entry) (string, error)
}

// Fetcher downloads archive bytes.
type Fetcher interface {
	Download(ctx context.Context, url string, limit int64, progress integrations.ProgressFunc) ([]byte, error)
}

// Runner executes batches. It holds no per-batch state, so one Runner may
// serve several concurrent Run calls.
type Runner struct {
	Registry Registry
	Fetcher  Fetcher
	Cache    cache.Probe
	Logger   *log.Logger
	Hooks    observability.PipelineHooks
}

// NewRunner creates a runner. A nil cache disables caching and a nil
// logger selects log.Default().
func NewRunner(reg Registry, f Fetcher, c cache.Probe, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Registry: reg,
		Fetcher:  f,
		Cache:    c,
		Logger:   logger,
		Hooks:    observability.NoopPipelineHooks{},
	}
}

// batch is the state shared by the specifiers of one Run.
type batch struct {
	*Runner
	opts   Options
	memo   *crates.Memo
	logger *log.Logger
	hooks  observability.PipelineHooks

	mu    sync.Mutex
	paths map[string]*sync.Mutex
}

// Run processes specs and returns one outcome per spec in input order.
//
// The returned error is non-nil only when opts are invalid for the batch,
// which is detected before any network access, or when ctx was cancelled.
// Per-specifier failures are reported in the [Report].
func (r *Runner) Run(ctx context.Context, specs []resolve.Specifier, opts Options) (*Report, error) {
	if err := opts.ValidateAndSetDefaults(len(specs)); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	b := &batch{
		Runner: r,
		opts:   opts,
		memo:   crates.NewMemo(r.Registry),
		logger: r.Logger.With("run", runID[:8]),
		hooks:  r.Hooks,
		paths:  make(map[string]*sync.Mutex),
	}
	if b.hooks == nil {
		b.hooks = observability.NoopPipelineHooks{}
	}

	b.logger.Debug("starting batch", "crates", len(specs), "jobs", opts.Jobs)
	start := time.Now()
	report := &Report{RunID: runID, Outcomes: make([]Outcome, len(specs))}

	var g errgroup.Group
	g.SetLimit(opts.Jobs)
	for i, spec := range specs {
		g.Go(func() error {
			item := observability.Item{Index: i, Spec: spec.String()}
			report.Outcomes[i] = b.process(ctx, item, spec)
			return nil
		})
	}
	g.Wait()
	report.Duration = time.Since(start)

	b.logger.Debug("batch finished",
		"ok", report.Succeeded(),
		"failed", len(report.Failed()),
		"duration", report.Duration)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (b *batch) process(ctx context.Context, item observability.Item, spec resolve.Specifier) Outcome {
	start := time.Now()
	out := Outcome{Spec: spec}
	logger := b.logger.With("crate", spec.Name)

	out.Err = b.steps(ctx, item, spec, &out, logger)
	out.Duration = time.Since(start)

	if out.Err != nil {
		b.hooks.OnStage(ctx, item, observability.StageFailed, errors.UserMessage(out.Err))
		if ctx.Err() == nil {
			logger.Error("failed", "code", out.Code(), "err", errors.UserMessage(out.Err))
		}
	} else {
		b.hooks.OnStage(ctx, item, observability.StageDone, out.Path)
	}
	b.hooks.OnFinish(ctx, item, out.Err, out.Duration)
	return out
}

func (b *batch) steps(ctx context.Context, item observability.Item, spec resolve.Specifier, out *Outcome, logger *log.Logger) error {
	stage := func(s observability.Stage, detail string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.hooks.OnStage(ctx, item, s, detail)
		return nil
	}

	// Locating
	if err := stage(observability.StageLocating, spec.Name); err != nil {
		return err
	}
	file, err := b.memo.Fetch(ctx, spec.Name)
	if err != nil {
		return err
	}
	for _, bad := range file.Invalid {
		logger.Warn("skipping unreadable index record", "record", bad)
	}

	// Selecting
	req := spec.Req
	if req == nil {
		req = resolve.Any
	}
	if err := stage(observability.StageSelecting, req.String()); err != nil {
		return err
	}
	logger.Debug("candidate versions", "requirement", req, "versions", strings.Join(file.Versions(), ", "))
	entry, err := file.Select(req, b.opts.AllowYanked)
	if err != nil {
		return err
	}
	url, err := b.Registry.DownloadURL(ctx, entry)
	if err != nil {
		return err
	}
	out.Archive = crates.NewArchive(entry, url)
	logger = logger.With("version", entry.Vers)
	if entry.Yanked {
		logger.Warn("selected a yanked version")
	}

	path, explicit := b.opts.target(out.Archive.Stem())
	out.Path = path

	// CacheCheck, then Fetching on a miss
	if err := stage(observability.StageCache, out.Archive.String()); err != nil {
		return err
	}
	data, source, err := b.acquire(ctx, item, out.Archive, logger)
	if err != nil {
		return err
	}
	out.Source = source
	out.Bytes = len(data)

	// Verifying
	if err := stage(observability.StageVerifying, out.Archive.Checksum.String()); err != nil {
		return err
	}
	if err := integrity.Verify(data, out.Archive.Checksum); err != nil {
		return errors.Wrap(errors.ErrCodeChecksumMismatch, err, "%s from %s", out.Archive, source)
	}

	// Writing
	if err := stage(observability.StageWriting, path); err != nil {
		return err
	}
	noClobber := b.opts.NoClobber && !explicit
	unlock := b.lockPath(path)
	defer unlock()

	if b.opts.Extract {
		st, err := archive.Extract(data, out.Archive.Stem(), path, noClobber)
		if err != nil {
			return err
		}
		logger.Info("extracted", "path", path, "files", st.Files, "bytes", st.Bytes, "source", source)
		return nil
	}
	if err := archive.WriteFile(path, data, noClobber); err != nil {
		return err
	}
	logger.Info("downloaded", "path", path, "bytes", len(data), "source", source)
	return nil
}

// acquire returns verified cached bytes or downloads them.
func (b *batch) acquire(ctx context.Context, item observability.Item, a crates.Archive, logger *log.Logger) ([]byte, Source, error) {
	if hit, ok := b.Cache.Lookup(ctx, a); ok {
		logger.Debug("cache hit", "path", hit.Path)
		return hit.Data, SourceCache, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, SourceNone, err
	}

	b.hooks.OnStage(ctx, item, observability.StageFetching, a.URL)
	start := time.Now()
	data, err := b.Fetcher.Download(ctx, a.URL, b.opts.SizeLimit, func(done, total int64) {
		b.hooks.OnProgress(ctx, item, done, total)
	})
	if err != nil {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return nil, SourceNone, err
		}
		return nil, SourceNone, errors.Wrap(errors.ErrCodeFetch, err, "download %s", a)
	}
	logger.Debug("fetched", "url", a.URL, "bytes", len(data), "duration", time.Since(start))
	return data, SourceNetwork, nil
}

// lockPath serializes writers of the same output path within a batch.
func (b *batch) lockPath(path string) func() {
	b.mu.Lock()
	m, ok := b.paths[path]
	if !ok {
		m = &sync.Mutex{}
		b.paths[path] = m
	}
	b.mu.Unlock()

	m.Lock()
	return m.Unlock
}
