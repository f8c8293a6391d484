package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cargo-dl/internal/cli"
	cderrors "github.com/matzehuels/cargo-dl/pkg/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130) // Standard shell convention for SIGINT
		}
		var exit *cli.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		fmt.Fprintln(os.Stderr, "error:", cderrors.UserMessage(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var verbose bool

	level, envErr := cli.LevelFromEnv(cli.LogInfo)
	c := cli.New(os.Stderr, level)
	if envErr != nil {
		c.Logger.Warn("ignoring log level", "err", envErr)
	}

	root := c.RootCommand()
	root.SetArgs(cli.Args(args))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	originalPreRun := root.PersistentPreRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if verbose {
			c.SetLogLevel(cli.LogDebug)
		}
		if originalPreRun != nil {
			return originalPreRun(cmd, args)
		}
		return nil
	}

	return root.ExecuteContext(ctx)
}
