package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/chainfile/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
	RunID string
}

// RunList is the output of history without --run.
type RunList struct {
	Runs []store.Run `json:"runs"`
}

func (l *RunList) renderText(w io.Writer) {
	if len(l.Runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tCHUNKS\tFILE\tSTARTED")
	for _, r := range l.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\n",
			r.ID, r.Status, r.Present, r.Required, r.Filename, r.StartedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

// RunDetail is the output of history --run.
type RunDetail struct {
	Run      store.Run             `json:"run"`
	Chunks   []store.ChunkRecord   `json:"chunks"`
	Failures []store.FailureRecord `json:"failures"`
}

func (d *RunDetail) renderText(w io.Writer) {
	r := d.Run
	fmt.Fprintf(w, "Run: %s\n", r.ID)
	fmt.Fprintf(w, "Status: %s\n", r.Status)
	fmt.Fprintf(w, "Start: %s (%s)\n", r.StartID, r.Chain)
	if r.Filename != "" {
		fmt.Fprintf(w, "File: %s %s\n", r.Filename, r.FileHash)
	}
	fmt.Fprintf(w, "Chunks: %d/%d\n", r.Present, r.Required)
	if r.ChainTip != "" {
		fmt.Fprintf(w, "Chain tip: %s\n", r.ChainTip)
	}
	fmt.Fprintf(w, "Started: %s\n", r.StartedAt.Format(time.RFC3339))
	if r.FinishedAt != nil {
		fmt.Fprintf(w, "Finished: %s\n", r.FinishedAt.Format(time.RFC3339))
	}
	for _, c := range d.Chunks {
		fmt.Fprintf(w, "  ok    %s from %s (%d bytes)\n", c.Hash, c.Source, c.Size)
	}
	for _, f := range d.Failures {
		warnColor.Fprintf(w, "  fail  %s from %s: %s\n", f.Hash, f.Source, f.Message)
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List retrievals recorded in the provenance database",
		Long: `Lists the runs recorded by get in the database given with --db, newest
first. With --run, shows one run with every chunk delivered and every failed
fetch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show one run in detail")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.cfg.Database == "" {
		return NewExitError(ExitCommandError, "no database: pass --db or set database in the config")
	}
	db, err := s.database()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if opts.RunID == "" {
		runs, err := db.ListRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return s.out.Success(&RunList{Runs: runs})
	}

	run, err := db.GetRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return WrapExitError(ExitCommandError, "unknown run", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}
	chunks, err := db.RunChunks(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load chunks", err)
	}
	failures, err := db.RunFailures(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load failures", err)
	}
	return s.out.Success(&RunDetail{Run: run, Chunks: chunks, Failures: failures})
}
