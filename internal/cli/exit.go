package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/chainfile/internal/descriptor"
	"github.com/roach88/chainfile/internal/ledger"
	"github.com/roach88/chainfile/internal/lineage"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // incomplete file, hash mismatch, ledger failure
	ExitCommandError = 2 // bad arguments, config, missing database
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Kind    string // failure class, see errorKind; empty for usage errors
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and message to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the first ExitError in err's chain, or
// ExitFailure.
func GetExitCode(err error) int {
	if exitErr := (*ExitError)(nil); errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Failure classes reported in JSON error output.
const (
	KindInterrupted       = "interrupted"
	KindAmbiguous         = "ambiguous"
	KindNotSpent          = "not_spent"
	KindNotFound          = "not_found"
	KindMalformed         = "malformed"
	KindInvalidDescriptor = "invalid_descriptor"
	KindTransient         = "transient"
	KindLedger            = "ledger"
	KindFailed            = "failed"
)

// errorKind classifies a retrieval failure. KindAmbiguous, KindMalformed
// and KindInvalidDescriptor are permanent for the record involved.
func errorKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return KindInterrupted
	case lineage.IsAmbiguous(err):
		return KindAmbiguous
	case lineage.IsNotSpent(err):
		return KindNotSpent
	case ledger.IsNotFound(err):
		return KindNotFound
	case lineage.IsMalformedPayload(err):
		return KindMalformed
	case descriptor.IsInvalidDescriptor(err):
		return KindInvalidDescriptor
	case ledger.IsTransient(err):
		return KindTransient
	case ledger.IsQueryError(err):
		return KindLedger
	default:
		return KindFailed
	}
}

// commandError maps a failure to an exit code, keeping existing ones.
func commandError(message string, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	kind := errorKind(err)
	if kind == KindInterrupted {
		message = "interrupted"
	}
	return &ExitError{Code: ExitFailure, Kind: kind, Message: message, Err: err}
}
