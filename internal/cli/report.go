package cli

import (
	"fmt"
	"io"

	"github.com/roach88/chainfile/internal/retrieve"
)

// FileReport renders a retrieval or offline assembly result.
type FileReport struct {
	*retrieve.Result
}

func (r *FileReport) mismatched() bool {
	return !r.Complete && r.Assembly != nil
}

func (r *FileReport) renderText(w io.Writer) {
	if r.Descriptor != nil {
		fmt.Fprintf(w, "File: %s\n", r.Descriptor.Filename)
	}
	fmt.Fprintf(w, "Chunks: %d of %d present\n", r.Present, r.Required)
	if !r.ChainTip.IsZero() {
		fmt.Fprintf(w, "Chain tip: %s\n", r.ChainTip)
	}
	if r.Fetch != nil {
		for _, f := range r.Fetch.Failures {
			warnColor.Fprintf(w, "Failed: %s from %s: %s\n", f.Hash, f.Source, f.Error)
		}
		for _, m := range r.Fetch.Mismatches {
			warnColor.Fprintf(w, "Corrupt: %s from %s hashed to %s\n", m.Expected, m.Source, m.Actual)
		}
	}
	for _, h := range r.Missing {
		fmt.Fprintf(w, "Missing: %s\n", h)
	}

	switch {
	case r.Complete:
		fmt.Fprintf(w, "File hash: %s\n", r.Assembly.Hash)
		okColor.Fprintln(w, "Success. File hash matches.")
		fmt.Fprintf(w, "Saved to: %s\n", r.Assembly.Path)
	case r.mismatched():
		failColor.Fprintln(w, "FAIL File hash doesn't match up")
		fmt.Fprintf(w, "Expected: %s\n", r.Descriptor.Hash)
		fmt.Fprintf(w, "Actual: %s\n", r.Assembly.Hash)
		fmt.Fprintf(w, "Saved to: %s\n", r.Assembly.Path)
	default:
		failColor.Fprintf(w, "FAIL File incomplete. Only %d of %d chunks found\n", r.Present, r.Required)
	}
}

// report prints res and converts an unfinished file into an exit error.
// JSON output carries the report as error details.
func (s *session) report(res *retrieve.Result, err error) error {
	r := &FileReport{Result: res}

	var code, msg string
	var exitErr error
	switch {
	case res.Complete:
		return s.out.Success(r)
	case r.mismatched():
		code, msg = "mismatch", "file hash mismatch"
		exitErr = WrapExitError(ExitFailure, msg, err)
	default:
		code = "incomplete"
		msg = fmt.Sprintf("file incomplete: %d of %d chunks found", res.Present, res.Required)
		exitErr = NewExitError(ExitFailure, msg)
	}

	if s.out.Format == "json" {
		if outErr := s.out.Error(code, msg, r); outErr != nil {
			return outErr
		}
	} else if outErr := s.out.Success(r); outErr != nil {
		return outErr
	}
	return exitErr
}
