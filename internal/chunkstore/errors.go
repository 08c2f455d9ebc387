package chunkstore

import (
	"errors"
	"fmt"
)

// IncompleteFileError reports chunks missing from the canonical store.
// No output is written when it is returned.
type IncompleteFileError struct {
	Present  int
	Required int
	// Missing lists absent hashes in descriptor order.
	Missing []string
}

// Error implements the error interface.
func (e *IncompleteFileError) Error() string {
	return fmt.Sprintf("file incomplete: %d of %d chunks present", e.Present, e.Required)
}

// IntegrityMismatchError reports an assembled file whose hash differs from
// the descriptor. The file at Path is kept for inspection.
type IntegrityMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *IntegrityMismatchError) Error() string {
	return fmt.Sprintf("file hash mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// IsIncomplete reports whether err is an IncompleteFileError.
func IsIncomplete(err error) bool {
	var ie *IncompleteFileError
	return errors.As(err, &ie)
}

// IsIntegrityMismatch reports whether err is an IntegrityMismatchError.
func IsIntegrityMismatch(err error) bool {
	var me *IntegrityMismatchError
	return errors.As(err, &me)
}
