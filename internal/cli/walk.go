package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/chainfile/internal/chunkstore"
	"github.com/roach88/chainfile/internal/model"
)

// WalkOptions holds flags for the walk command.
type WalkOptions struct {
	*RootOptions
	DumpDir string
}

// WalkHop is one spent record in walk output.
type WalkHop struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// WalkResult is the output of the walk command.
type WalkResult struct {
	Start string    `json:"start"`
	Tip   string    `json:"tip"`
	Hops  []WalkHop `json:"hops"`
}

func (r *WalkResult) renderText(w io.Writer) {
	for _, h := range r.Hops {
		fmt.Fprintf(w, "%s  %s\n", h.ID, h.Message)
	}
	fmt.Fprintf(w, "Tip: %s\n", r.Tip)
}

// NewWalkCommand creates the walk command.
func NewWalkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WalkOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "walk [start-id]",
		Short: "List every spent record of a chain with its message",
		Long: `Walks the chain from start-id to its unspent tip and prints each spent
record with the message its spend carries.

With --dump, each message is also written to <dir>/<id>.txt.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWalk(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.DumpDir, "dump", "", "write each message to <dir>/<id>.txt")

	return cmd
}

func runWalk(cmd *cobra.Command, opts *WalkOptions, args []string) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	start, err := s.startID(args)
	if err != nil {
		return err
	}
	svc, err := s.service(true, false, "")
	if err != nil {
		return err
	}
	if opts.DumpDir != "" {
		if err := os.MkdirAll(opts.DumpDir, 0o755); err != nil {
			return WrapExitError(ExitCommandError, "failed to create dump directory", err)
		}
	}

	ctx, cancel := signalContext(cmd, s.logger)
	defer cancel()

	res := &WalkResult{Start: start.String(), Hops: []WalkHop{}}
	step, err := svc.Walk(ctx, start, func(hop model.Hop) error {
		res.Hops = append(res.Hops, WalkHop{ID: hop.ID.String(), Message: displayMessage(hop.Message)})
		if opts.DumpDir == "" {
			return nil
		}
		return chunkstore.WriteFileAtomic(filepath.Join(opts.DumpDir, hop.ID.String()+".txt"), hop.Message)
	})
	if err != nil {
		return s.fail("walk failed", err)
	}
	res.Tip = step.Current.String()
	return s.out.Success(res)
}
