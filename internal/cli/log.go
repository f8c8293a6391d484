// Package cli implements the cargo-dl command-line interface.
//
// The binary is installed as cargo-dl so cargo can run it as a subcommand:
// "cargo dl serde" executes "cargo-dl dl serde". Invoking the binary
// directly without the "dl" word works as well (see [Args]).
//
// # Commands
//
//   - dl: download, verify and optionally extract crates
//   - completion: generate shell completion scripts
//
// # Logging
//
// Logs go to stderr through charmbracelet/log. --verbose (-v) switches to
// debug level; the CARGO_DL_LOG environment variable (debug, info, warn,
// error) sets the default level. Loggers are passed through
// context.Context to commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// envLogLevel names the environment variable that overrides the default level.
const envLogLevel = "CARGO_DL_LOG"

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// LevelFromEnv returns the level named by CARGO_DL_LOG, or def when the
// variable is unset. An unknown value yields def and a non-nil error.
func LevelFromEnv(def log.Level) (log.Level, error) {
	v := strings.TrimSpace(os.Getenv(envLogLevel))
	if v == "" {
		return def, nil
	}
	level, err := log.ParseLevel(strings.ToLower(v))
	if err != nil {
		return def, fmt.Errorf("%s=%q: %w", envLogLevel, v, err)
	}
	return level, nil
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Downloaded 3 crates (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx.
// If no logger is attached, it returns log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
