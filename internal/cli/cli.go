// Package cli implements the cargo-dl command-line interface.
package cli

import (
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
)

// appName is the application name used for directories and display.
const appName = "cargo-dl"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configFile string
	out        io.Writer // summaries and shell completions
	err        io.Writer // logs and live progress
}

// New creates a new CLI instance logging to w.
// Summaries are written to stdout.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		out:    os.Stdout,
		err:    w,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// SetOutput redirects summaries and completions.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// ExitError carries a process exit status for a command that already
// reported its own failure.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return "exit status " + strconv.Itoa(e.Code) }
