package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/cargo-dl/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Download Rust crate source archives",
		Long: `cargo-dl downloads the source of published crates without a Cargo project.

It resolves each crate against the registry's sparse index, reuses archives
already present in cargo's local cache, verifies every archive against the
index checksum and writes the .crate file or its extracted source tree.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/cargo-dl/config.toml)")

	root.AddCommand(c.dlCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// commandWords are first arguments handled by the root command itself.
var commandWords = map[string]bool{
	"dl":               true,
	"completion":       true,
	"help":             true,
	"-h":               true,
	"--help":           true,
	"--version":        true,
	"__complete":       true,
	"__completeNoDesc": true,
}

// Args maps command-line arguments onto the command tree. cargo runs
// external subcommands as "cargo-dl dl <args>", and users may also call
// "cargo-dl <args>" directly; both reach the dl command.
func Args(args []string) []string {
	if len(args) == 0 || commandWords[args[0]] {
		return args
	}
	return append([]string{"dl"}, args...)
}
