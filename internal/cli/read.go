package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ReadResult is the output of the read command. Message is printable text
// or 0x-prefixed hex.
type ReadResult struct {
	Start   string `json:"start"`
	Message string `json:"message"`
}

func (r *ReadResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "Message: %s\n", r.Message)
}

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read [start-id]",
		Short: "Print the latest message on a singleton chain",
		Long: `Walks the chain from start-id to its unspent tip and prints the message
carried by the last spent record.

start-id defaults to start_id from the configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(cmd, rootOpts, args)
		},
	}
}

func runRead(cmd *cobra.Command, opts *RootOptions, args []string) error {
	s, err := openSession(cmd, opts)
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

	ctx, cancel := signalContext(cmd, s.logger)
	defer cancel()

	msg, err := svc.ReadMessage(ctx, start)
	if err != nil {
		return s.fail("read failed", err)
	}
	return s.out.Success(&ReadResult{Start: start.String(), Message: displayMessage([]byte(msg))})
}
