package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/chainfile/internal/ledger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigPath  string
	EnvFile     string
	Chain       string
	NodeURL     string
	WorkDir     string
	Database    string
	MetricsFile string
	Concurrency int

	// Source replaces the node client when set.
	Source ledger.Source
	// LogWriter receives structured logs; defaults to the command's stderr.
	LogWriter io.Writer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the chainfile CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chainfile",
		Short: "chainfile - read files published on singleton chains",
		Long: "Follows a singleton chain to its tip, reads the file descriptor it carries,\n" +
			"fetches every chunk from its own chain and rebuilds the file with a hash check.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigPath, "config", "", "config file (default $XDG_CONFIG_HOME/chainfile/config.yaml)")
	pf.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before the environment")
	pf.StringVar(&opts.Chain, "chain", "", "chain name (chia|aba)")
	pf.StringVar(&opts.NodeURL, "node-url", "", "full node RPC URL")
	pf.StringVar(&opts.WorkDir, "workdir", "", "working directory for chunks")
	pf.StringVar(&opts.Database, "db", "", "SQLite provenance database")
	pf.StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	pf.IntVar(&opts.Concurrency, "concurrency", 0, "parallel chunk fetches")

	cmd.AddCommand(NewReadCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewWalkCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
