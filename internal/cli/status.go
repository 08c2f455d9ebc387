package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/chainfile/internal/descriptor"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	IndexFile string
	OutputDir string
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check which chunks of a file are present without the network",
		Long: `Canonicalizes the pending chunks in the working directory and tries to
reassemble the file described by --index. The ledger is never contacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.IndexFile, "index", "", "file descriptor JSON (required)")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "directory for the reconstructed file")
	_ = cmd.MarkFlagRequired("index")

	return cmd
}

func runStatus(cmd *cobra.Command, opts *StatusOptions) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := os.ReadFile(opts.IndexFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read index file", err)
	}
	d, err := descriptor.Parse(data)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid index file", err)
	}

	svc, err := s.service(false, false, opts.OutputDir)
	if err != nil {
		return err
	}
	res, err := svc.Assemble(d)
	if res == nil {
		return s.fail("assembly failed", err)
	}
	return s.report(res, err)
}
