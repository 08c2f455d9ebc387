package ledger

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned when the ledger has no record for an id.
var ErrRecordNotFound = errors.New("ledger: record not found")

// QueryErrorCode categorizes ledger query failures.
type QueryErrorCode string

const (
	// ErrCodeTransport covers connection failures, timeouts and 5xx/429.
	ErrCodeTransport QueryErrorCode = "TRANSPORT"

	// ErrCodeRejected means the node answered success=false.
	ErrCodeRejected QueryErrorCode = "REJECTED"

	// ErrCodeDecode means the node's answer could not be decoded.
	ErrCodeDecode QueryErrorCode = "DECODE"
)

// QueryError is a failed ledger query.
type QueryError struct {
	Code     QueryErrorCode
	Endpoint string
	ID       string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	msg := fmt.Sprintf("ledger %s: %s", e.Endpoint, e.Code)
	if e.ID != "" {
		msg += " (id=" + e.ID + ")"
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying later may succeed.
func (e *QueryError) Transient() bool {
	return e.Code == ErrCodeTransport
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// IsQueryError reports whether err is a ledger query failure.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// IsTransient reports whether err is a ledger failure worth retrying.
func IsTransient(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Transient()
	}
	return false
}
