package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/chainfile/internal/descriptor"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// checkExpect compares a step's trace event with its expectation.
func (h *Harness) checkExpect(event TraceEvent, exp *Expect) []string {
	var errs []string
	if event.Status != exp.Status {
		errs = append(errs, fmt.Sprintf("expected status %q, got %q", exp.Status, event.Status))
	}
	if exp.Present != nil && event.Present != *exp.Present {
		errs = append(errs, fmt.Sprintf("expected %d chunks present, got %d", *exp.Present, event.Present))
	}
	if exp.Missing != nil && !slices.Equal(event.Missing, exp.Missing) {
		errs = append(errs, fmt.Sprintf("expected missing %v, got %v", exp.Missing, event.Missing))
	}
	if exp.Content {
		if msg := h.checkContent(); msg != "" {
			errs = append(errs, msg)
		}
	}
	return errs
}

func (h *Harness) checkContent() string {
	name, err := descriptor.OutputName(h.descriptor.Filename)
	if err != nil {
		return err.Error()
	}
	got, err := os.ReadFile(filepath.Join(h.outDir, name))
	if err != nil {
		return fmt.Sprintf("output file: %v", err)
	}
	if !bytes.Equal(got, h.content) {
		return fmt.Sprintf("output file differs: %d bytes, want %d", len(got), len(h.content))
	}
	return ""
}

// evaluateAssertions runs every assertion against the final state.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []error {
	var errs []error
	for _, a := range assertions {
		if err := h.evaluate(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertRunStatus:
		id := fmt.Sprintf("run-%04d", a.Run)
		run, err := h.store.GetRun(ctx, id)
		if err != nil {
			return &AssertionError{Type: a.Type, Expected: id + " " + a.Status, Actual: err.Error()}
		}
		if run.Status != a.Status {
			return &AssertionError{Type: a.Type, Expected: id + " " + a.Status, Actual: id + " " + run.Status}
		}
	case AssertLedgerCalls:
		if got := h.chain.Calls(a.Method); got != a.Count {
			return &AssertionError{Type: a.Type,
				Expected: fmt.Sprintf("%d %s calls", a.Count, a.Method),
				Actual:   fmt.Sprintf("%d", got)}
		}
	case AssertChunkSources:
		if a.Chunk < 0 || a.Chunk >= len(h.descriptor.HashChunks) {
			return &AssertionError{Type: a.Type, Expected: "a chunk index", Actual: fmt.Sprintf("%d", a.Chunk)}
		}
		sources, err := h.store.SourcesOf(ctx, h.descriptor.HashChunks[a.Chunk].Hash)
		if err != nil {
			return &AssertionError{Type: a.Type, Expected: "recorded sources", Actual: err.Error()}
		}
		if len(sources) != a.Count {
			return &AssertionError{Type: a.Type,
				Expected: fmt.Sprintf("%d sources for chunk %d", a.Count, a.Chunk),
				Actual:   fmt.Sprintf("%d", len(sources))}
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
