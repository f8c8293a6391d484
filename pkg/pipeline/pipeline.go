// Package pipeline downloads a batch of crates.
//
// Each specifier runs through a short state machine:
//
//	Locating → Selecting → CacheCheck → [Fetching] → Verifying → Writing → Done | Failed
//
// A failure ends that specifier's run and is recorded in its [Outcome];
// the rest of the batch carries on. Specifiers run concurrently up to
// [Options.Jobs] and the [Report] lists outcomes in input order.
//
// # Usage
//
//	runner := pipeline.NewRunner(client, client, cache.NewCargoCache(dirs...), logger)
//	report, err := runner.Run(ctx, specs, pipeline.Options{Extract: true})
//	if err != nil {
//	    return err // invalid options or cancellation
//	}
//	os.Exit(report.ExitCode())
//
// # Collaborators
//
// The runner only sees narrow interfaces: a [Registry] for index lookups
// and download URLs, a [Fetcher] for archive bytes and a [cache.Probe].
// Tests drive it with the fake registry from package cratestest.
package pipeline

import (
	"path/filepath"

	"github.com/matzehuels/cargo-dl/pkg/errors"
)

const (
	// DefaultJobs is the number of specifiers processed concurrently.
	DefaultJobs = 4

	// DefaultSizeLimit caps a single archive download.
	DefaultSizeLimit int64 = 40 << 20
)

// Options controls a batch run.
type Options struct {
	// AllowYanked lets yanked versions be selected.
	AllowYanked bool

	// Extract unpacks archives into "name-version/" instead of writing
	// "name-version.crate".
	Extract bool

	// Output overrides the output path. Only valid for a single specifier.
	// An explicit Output is always overwritten.
	Output string

	// Dir is the directory default output paths are created in.
	// Empty means the working directory.
	Dir string

	// NoClobber makes an existing default output path an error.
	NoClobber bool

	// Jobs bounds concurrency; 1 processes specifiers strictly in order.
	Jobs int

	// SizeLimit caps each download in bytes.
	SizeLimit int64
}

// ValidateAndSetDefaults checks opts against a batch of n specifiers and
// fills zero values with defaults.
func (o *Options) ValidateAndSetDefaults(n int) error {
	if n == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no crates given")
	}
	if o.Output != "" && n > 1 {
		return errors.New(errors.ErrCodeInvalidInput, "--output can only be used with a single crate, got %d", n)
	}
	if o.Jobs < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "jobs must be positive, got %d", o.Jobs)
	}
	if o.Jobs == 0 {
		o.Jobs = DefaultJobs
	}
	if o.SizeLimit <= 0 {
		o.SizeLimit = DefaultSizeLimit
	}
	if o.Dir == "" {
		o.Dir = "."
	}
	return nil
}

// target returns the output path for an archive stem and whether it was
// given explicitly.
func (o *Options) target(stem string) (string, bool) {
	if o.Output != "" {
		return o.Output, true
	}
	if o.Extract {
		return filepath.Join(o.Dir, stem), false
	}
	return filepath.Join(o.Dir, stem+".crate"), false
}
