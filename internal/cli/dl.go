package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/cargo-dl/pkg/buildinfo"
	"github.com/matzehuels/cargo-dl/pkg/cache"
	"github.com/matzehuels/cargo-dl/pkg/errors"
	"github.com/matzehuels/cargo-dl/pkg/integrations"
	"github.com/matzehuels/cargo-dl/pkg/integrations/crates"
	"github.com/matzehuels/cargo-dl/pkg/observability"
	"github.com/matzehuels/cargo-dl/pkg/pipeline"
	"github.com/matzehuels/cargo-dl/pkg/resolve"
)

// dlFlags holds the flags of the dl command.
type dlFlags struct {
	output      string
	dir         string
	extract     bool
	unpack      bool
	allowYanked bool
	noCache     bool
	noClobber   bool
	jobs        int
	index       string
	timeout     time.Duration
}

// settings are the effective values after merging flags, config and defaults.
type settings struct {
	index     string
	userAgent string
	jobs      int
	cacheDirs []string
	noClobber bool
	sizeLimit int64
	timeout   time.Duration
}

func (c *CLI) dlCommand() *cobra.Command {
	var f dlFlags

	cmd := &cobra.Command{
		Use:   "dl [flags] <crate>[@<version>]...",
		Short: "Download crates from the registry",
		Long: `Download one or more crates from a Cargo sparse registry.

Each crate is given as name, name@requirement or name:requirement. A bare
version such as serde@1.0 means ^1.0 as in Cargo.toml; comparators can be
combined with commas (">=1.2, <1.5"). Without a requirement the latest
non-yanked release is chosen. Prereleases only match requirements that
name a prerelease.

Archives found in cargo's registry cache are reused when their checksum
matches. Every archive is verified against the index checksum before it
is written.

The exit status is 0 only when every crate succeeded.`,
		Example: `  # Download the latest serde as serde-<version>.crate
  cargo dl serde

  # Extract a specific version into ./tokio-1.38.0/
  cargo dl -x tokio@=1.38.0

  # Several crates at once, two at a time
  cargo dl -j 2 rand@0.8 regex "syn@>=2, <3"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDownload(cmd.Context(), cmd.Flags(), &f, args)
		},
	}

	f.register(cmd.Flags())

	return cmd
}

// register binds the dl flags to flags.
func (f *dlFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.output, "output", "o", "", "write to this path instead of <name>-<version>.crate (single crate only)")
	flags.StringVarP(&f.dir, "dir", "C", "", "directory for default output paths")
	flags.BoolVarP(&f.extract, "extract", "x", false, "extract the archive into <name>-<version>/")
	flags.BoolVarP(&f.unpack, "unpack", "e", false, "same as --extract")
	flags.BoolVar(&f.allowYanked, "allow-yanked", false, "allow selecting yanked versions")
	flags.BoolVar(&f.noCache, "no-cache", false, "ignore cargo's local registry cache")
	flags.BoolVar(&f.noClobber, "no-clobber", false, "fail instead of overwriting default output paths")
	flags.IntVarP(&f.jobs, "jobs", "j", pipeline.DefaultJobs, "number of crates processed in parallel")
	flags.StringVar(&f.index, "index", crates.DefaultIndexURL, "sparse index URL")
	flags.DurationVar(&f.timeout, "timeout", integrations.DefaultTimeout, "connect and response-header timeout")
	flags.MarkHidden("unpack")
}

func (c *CLI) runDownload(ctx context.Context, flags *pflag.FlagSet, f *dlFlags, args []string) error {
	logger := loggerFromContext(ctx)

	specs, err := resolve.ParseSpecifiers(args)
	if err != nil {
		return err
	}

	cfg, cfgPath, err := loadConfig(c.configFile)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "load config")
	}
	if cfgPath != "" {
		logger.Debug("loaded config", "path", cfgPath)
	}
	s := resolveSettings(flags, f, cfg)

	opts := pipeline.Options{
		AllowYanked: f.allowYanked,
		Extract:     f.extract || f.unpack,
		Output:      f.output,
		Dir:         f.dir,
		NoClobber:   s.noClobber,
		Jobs:        s.jobs,
		SizeLimit:   s.sizeLimit,
	}
	if err := opts.ValidateAndSetDefaults(len(specs)); err != nil {
		return err
	}

	client, err := crates.NewClient(s.index, s.userAgent, s.timeout)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(client, client, newProbe(f.noCache, s.cacheDirs, logger), logger)
	prog := newProgress(logger)

	var report *pipeline.Report
	if isTerminal(c.err) {
		report, err = c.runInteractive(ctx, runner, specs, opts)
	} else {
		installHooks(logger)
		runner.Hooks = newLogProgressHooks(logger)
		report, err = runner.Run(ctx, specs, opts)
	}
	if report == nil {
		return err
	}
	prog.done(fmt.Sprintf("Processed %d crates", len(report.Outcomes)))

	c.printReport(report)
	if err != nil {
		return err
	}
	if !report.OK() {
		return &ExitError{Code: report.ExitCode()}
	}
	return nil
}

// runInteractive runs the batch under a live bubbletea view. Log lines are
// printed above the view while it is active.
func (c *CLI) runInteractive(ctx context.Context, runner *pipeline.Runner, specs []resolve.Specifier, opts pipeline.Options) (*pipeline.Report, error) {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.String()
	}

	p := tea.NewProgram(NewProgressModel(names),
		tea.WithOutput(c.err),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	runner.Hooks, runner.Logger = interactiveHooks(p, runner.Logger.GetLevel())
	defer installHooks(c.Logger)

	uiDone := make(chan error, 1)
	go func() {
		_, err := p.Run()
		uiDone <- err
	}()

	report, err := runner.Run(ctx, specs, opts)
	p.Send(batchDoneMsg{})
	if uiErr := <-uiDone; uiErr != nil {
		c.Logger.Debug("progress view stopped", "err", uiErr)
	}
	return report, err
}

// interactiveHooks routes every log line and pipeline event of a run
// through p, so nothing is written around the live view.
func interactiveHooks(p *tea.Program, level log.Level) (observability.PipelineHooks, *log.Logger) {
	logger := newLogger(teaLogWriter{p: p}, level)
	installHooks(logger)
	return observability.MultiPipelineHooks{
		teaHooks{p: p},
		stageLogHooks{logger: logger},
	}, logger
}

// resolveSettings merges flags over config over built-in defaults.
func resolveSettings(flags *pflag.FlagSet, f *dlFlags, cfg Config) settings {
	s := settings{
		index:     crates.DefaultIndexURL,
		userAgent: integrations.UserAgent(buildinfo.Version),
		jobs:      pipeline.DefaultJobs,
		cacheDirs: cfg.CacheDirs,
		noClobber: cfg.NoClobber,
		sizeLimit: pipeline.DefaultSizeLimit,
		timeout:   integrations.DefaultTimeout,
	}

	if cfg.Index != "" {
		s.index = cfg.Index
	}
	if cfg.UserAgent != "" {
		s.userAgent = cfg.UserAgent
	}
	if cfg.Jobs > 0 {
		s.jobs = cfg.Jobs
	}
	if cfg.SizeLimit > 0 {
		s.sizeLimit = cfg.SizeLimit
	}
	if cfg.Timeout.Duration > 0 {
		s.timeout = cfg.Timeout.Duration
	}

	if flags.Changed("index") {
		s.index = f.index
	}
	if flags.Changed("jobs") {
		s.jobs = f.jobs
	}
	if flags.Changed("no-clobber") {
		s.noClobber = f.noClobber
	}
	if flags.Changed("timeout") {
		s.timeout = f.timeout
	}
	return s
}

// newProbe returns the cache probe for a run. Without configured
// directories every registry cache under cargo's home is probed.
func newProbe(noCache bool, dirs []string, logger *log.Logger) cache.Probe {
	if noCache {
		return cache.NewNullCache()
	}
	if len(dirs) == 0 {
		home, err := cache.CargoHome()
		if err != nil {
			logger.Debug("cargo home unknown, cache disabled", "err", err)
			return cache.NewNullCache()
		}
		dirs, err = cache.DefaultDirs(home)
		if err != nil {
			logger.Warn("cannot list cargo registry cache", "err", err)
			return cache.NewNullCache()
		}
	}
	logger.Debug("cache directories", "dirs", dirs)
	return cache.NewCargoCache(dirs...)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
