package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequenceRunIDs generates predictable run ids for store tests:
// "run-0001", "run-0002", ...
//
// Implements store.RunIDGenerator. Safe for concurrent use.
type SequenceRunIDs struct {
	n atomic.Int64
}

// NewSequenceRunIDs creates a generator whose first id is "run-0001".
func NewSequenceRunIDs() *SequenceRunIDs {
	return &SequenceRunIDs{}
}

// Generate returns the next id.
func (g *SequenceRunIDs) Generate() string {
	return fmt.Sprintf("run-%04d", g.n.Add(1))
}

// FixedRunID always returns the same id.
type FixedRunID string

// Generate returns the fixed id, or "run-fixed" when empty.
func (f FixedRunID) Generate() string {
	if f == "" {
		return "run-fixed"
	}
	return string(f)
}
