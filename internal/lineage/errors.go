package lineage

import (
	"errors"
	"fmt"

	"github.com/roach88/chainfile/internal/model"
)

var (
	// ErrRecordNotSpent is returned when a message is requested for a record
	// that has not been consumed yet.
	ErrRecordNotSpent = errors.New("lineage: record not spent")

	// ErrAmbiguousLineage is returned when a record has more than one child,
	// which a singleton chain must never have.
	ErrAmbiguousLineage = errors.New("lineage: ambiguous lineage")
)

// MalformedPayloadError reports a spend solution that could not be decoded
// into a non-empty list.
type MalformedPayloadError struct {
	ID  model.Identifier
	Err error
}

// Error implements the error interface.
func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload for %s: %v", e.ID, e.Err)
}

// Unwrap returns the decode error.
func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

// IsMalformedPayload reports whether err is a payload decode failure.
func IsMalformedPayload(err error) bool {
	var me *MalformedPayloadError
	return errors.As(err, &me)
}

// IsNotSpent reports whether err means the record is still unspent.
func IsNotSpent(err error) bool {
	return errors.Is(err, ErrRecordNotSpent)
}

// IsAmbiguous reports whether err is a forked lineage.
func IsAmbiguous(err error) bool {
	return errors.Is(err, ErrAmbiguousLineage)
}
