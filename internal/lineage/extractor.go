package lineage

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/chainfile/internal/clvm"
	"github.com/roach88/chainfile/internal/ledger"
	"github.com/roach88/chainfile/internal/model"
)

// Extractor reads the message of a spent record: element zero of its
// decoded spend solution.
//
// Extractor keeps no state between calls, so repeating a call is safe and
// it may be shared between goroutines as long as its Source is.
type Extractor struct {
	source ledger.Source
}

// NewExtractor creates an extractor over source.
func NewExtractor(source ledger.Source) *Extractor {
	return &Extractor{source: source}
}

// Extract returns the first solution element of id's spend as a program.
//
// Errors: ledger.ErrRecordNotFound when the record is unknown,
// ErrRecordNotSpent when it has no spend yet, *MalformedPayloadError when
// the solution is not a non-empty list. Other ledger errors pass through.
func (e *Extractor) Extract(ctx context.Context, id model.Identifier) (*clvm.Program, error) {
	rec, err := e.source.RecordByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", id, err)
	}
	if !rec.IsSpent() {
		return nil, fmt.Errorf("extract %s: %w", id, ErrRecordNotSpent)
	}

	raw, err := e.source.SpendSolution(ctx, id, rec.SpentHeight)
	if err != nil {
		return nil, fmt.Errorf("solution %s: %w", id, err)
	}

	prog, err := clvm.Deserialize(raw)
	if err != nil {
		return nil, &MalformedPayloadError{ID: id, Err: err}
	}
	items, err := prog.ToList()
	if err != nil {
		return nil, &MalformedPayloadError{ID: id, Err: err}
	}
	if len(items) == 0 {
		return nil, &MalformedPayloadError{ID: id, Err: errors.New("empty solution")}
	}
	return items[0], nil
}

// ExtractMessage returns id's message as raw bytes. An atom yields its
// payload; a pair yields its serialized form.
func (e *Extractor) ExtractMessage(ctx context.Context, id model.Identifier) ([]byte, error) {
	prog, err := e.Extract(ctx, id)
	if err != nil {
		return nil, err
	}
	return prog.Bytes(), nil
}
