package lineage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/chainfile/internal/ledger"
	"github.com/roach88/chainfile/internal/metrics"
	"github.com/roach88/chainfile/internal/model"
)

// Sink receives each spent hop in chain order. Returning an error aborts
// the walk.
type Sink func(hop model.Hop) error

// Walker follows a singleton chain from a starting record to its tip.
// Walks are sequential: each hop needs the previous hop's child.
type Walker struct {
	source    ledger.Source
	extractor *Extractor
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithLogger sets the walker's logger.
func WithLogger(l *slog.Logger) WalkerOption {
	return func(w *Walker) { w.logger = l }
}

// WithMetrics records hop counts.
func WithMetrics(m *metrics.Metrics) WalkerOption {
	return func(w *Walker) { w.metrics = m }
}

// NewWalker creates a walker. extractor may be shared with other callers.
func NewWalker(source ledger.Source, extractor *Extractor, opts ...WalkerOption) *Walker {
	w := &Walker{
		source:    source,
		extractor: extractor,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk follows children from start until a record has none, emitting the
// message of every spent record after the first hop to sink (which may be
// nil). It returns the final (parent, current) pair; current is the unspent
// tip and parent the last spent record, or start when start is the tip.
//
// Any failure aborts the walk and returns a zero step. A record with more
// than one child fails with ErrAmbiguousLineage.
func (w *Walker) Walk(ctx context.Context, start model.Identifier, sink Sink) (model.LineageStep, error) {
	current := start
	parent := current

	for {
		if err := ctx.Err(); err != nil {
			return model.LineageStep{}, err
		}

		children, err := w.source.ChildRecords(ctx, current)
		if err != nil {
			return model.LineageStep{}, fmt.Errorf("children of %s: %w", current, err)
		}

		if current != start {
			msg, err := w.extractor.ExtractMessage(ctx, parent)
			if err != nil {
				return model.LineageStep{}, err
			}
			w.metrics.Hop()
			w.logger.Debug("lineage hop", "id", parent.String(), "bytes", len(msg))
			if sink != nil {
				if err := sink(model.Hop{ID: parent, Message: msg}); err != nil {
					return model.LineageStep{}, err
				}
			}
		}

		switch len(children) {
		case 0:
			return model.LineageStep{Parent: parent, Current: current}, nil
		case 1:
		default:
			return model.LineageStep{}, fmt.Errorf("%s has %d children: %w", current, len(children), ErrAmbiguousLineage)
		}

		parent = current
		current = children[0].ID()
	}
}

// ReadMessage walks to the tip and returns the message of the last spent
// record. A chain whose start record is the tip reads start's own message,
// which fails with ErrRecordNotSpent.
func (w *Walker) ReadMessage(ctx context.Context, start model.Identifier) ([]byte, model.LineageStep, error) {
	step, err := w.Walk(ctx, start, nil)
	if err != nil {
		return nil, model.LineageStep{}, err
	}
	msg, err := w.extractor.ExtractMessage(ctx, step.Parent)
	if err != nil {
		return nil, step, err
	}
	return msg, step, nil
}
