package descriptor

import (
	"errors"
	"fmt"
)

// InvalidDescriptorError reports a message that is not a usable file
// descriptor.
type InvalidDescriptorError struct {
	// Field names the offending field, empty for document-level problems.
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *InvalidDescriptorError) Error() string {
	msg := "invalid descriptor"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *InvalidDescriptorError) Unwrap() error {
	return e.Err
}

// IsInvalidDescriptor reports whether err is a descriptor format error.
func IsInvalidDescriptor(err error) bool {
	var de *InvalidDescriptorError
	return errors.As(err, &de)
}

func invalid(field, format string, args ...any) *InvalidDescriptorError {
	return &InvalidDescriptorError{Field: field, Message: fmt.Sprintf(format, args...)}
}
