package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	IndexFile string
	OutputDir string
	Refetch   bool
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get [start-id]",
		Short: "Retrieve the file published at a chain",
		Long: `Reads the file descriptor carried by the spend of start-id, fetches every
chunk from the chain named for it, and reassembles the file into the output
directory after checking its SHA-256.

Chunks already present in the working directory are reused, so an
interrupted retrieval resumes where it stopped.

Exit codes:
  0 - File complete and verified
  1 - File incomplete, hash mismatch, or ledger failure
  2 - Command error (bad arguments, config)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.IndexFile, "index", "", "read the file descriptor from this JSON file instead of the chain")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "directory for the reconstructed file (default: output_dir or workdir)")
	cmd.Flags().BoolVar(&opts.Refetch, "refetch", false, "fetch chunks even when already present")

	return cmd
}

func runGet(cmd *cobra.Command, opts *GetOptions, args []string) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	start, err := s.startID(args)
	if err != nil {
		return err
	}

	var override string
	if opts.IndexFile != "" {
		data, err := os.ReadFile(opts.IndexFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read index file", err)
		}
		override = string(data)
	}

	svc, err := s.service(true, opts.Refetch, opts.OutputDir)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd, s.logger)
	defer cancel()

	res, err := svc.RetrieveFile(ctx, start, override)
	if res == nil {
		return s.fail("retrieval failed", err)
	}
	s.logger.Info("retrieval finished",
		"complete", res.Complete, "present", res.Present, "required", res.Required,
		"run", res.RunID, "elapsed", res.Elapsed)
	return s.report(res, err)
}
