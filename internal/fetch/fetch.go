// Package fetch pulls the chunks named by a file descriptor into the
// pending chunk store.
package fetch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/chainfile/internal/chunkstore"
	"github.com/roach88/chainfile/internal/lineage"
	"github.com/roach88/chainfile/internal/metrics"
	"github.com/roach88/chainfile/internal/model"
)

// DefaultConcurrency bounds in-flight chunk fetches.
const DefaultConcurrency = 4

// Skip reasons.
const (
	ReasonRoot   = "root"
	ReasonCached = "cached"
)

// Options configures a Fetcher.
type Options struct {
	// Concurrency bounds parallel fetches. Values below 1 use the default.
	Concurrency int
	// Refetch fetches chunks even when their hash is already canonical.
	Refetch bool
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Fetcher fans chunk fetches out over a bounded worker pool. It shares the
// Extractor used by the read path.
type Fetcher struct {
	extractor   *lineage.Extractor
	store       *chunkstore.Store
	concurrency int
	refetch     bool
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// New creates a Fetcher writing into store.
func New(extractor *lineage.Extractor, store *chunkstore.Store, opts Options) *Fetcher {
	f := &Fetcher{
		extractor:   extractor,
		store:       store,
		concurrency: opts.Concurrency,
		refetch:     opts.Refetch,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
	if f.concurrency < 1 {
		f.concurrency = DefaultConcurrency
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Chunk is a chunk written to the pending store.
type Chunk struct {
	Hash   string           `json:"hash"`
	Source model.Identifier `json:"source"`
	Size   int              `json:"size"`
}

// Skip is a descriptor entry that was not fetched.
type Skip struct {
	Hash   string           `json:"hash"`
	Source model.Identifier `json:"source"`
	Reason string           `json:"reason"`
}

// Failure is a chunk whose fetch failed.
type Failure struct {
	Hash   string           `json:"hash"`
	Source model.Identifier `json:"source"`
	Err    error            `json:"-"`
	Error  string           `json:"error"`
}

// Mismatch is a fetched chunk whose bytes do not hash to the descriptor's
// expected value. The bytes are still stored; reassembly will report the
// expected hash as missing.
type Mismatch struct {
	Source   model.Identifier `json:"source"`
	Expected string           `json:"expected"`
	Actual   string           `json:"actual"`
}

// Report summarizes one fetch pass, in descriptor order.
type Report struct {
	Retrieved  []Chunk    `json:"retrieved"`
	Skipped    []Skip     `json:"skipped,omitempty"`
	Failures   []Failure  `json:"failures,omitempty"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

// OK reports whether every fetched chunk arrived intact.
func (r *Report) OK() bool {
	return len(r.Failures) == 0 && len(r.Mismatches) == 0
}

// task is one distinct source identifier and the descriptor entries that
// name it.
type task struct {
	source model.Identifier
	refs   []model.ChunkRef
}

type outcome struct {
	chunk    *Chunk
	failure  *Failure
	mismatch []Mismatch
}

// Fetch retrieves every chunk of d into the pending store.
//
// Entries whose source is root carry no content and are skipped, as are
// hashes already canonical unless Refetch is set. A source named by several
// entries is fetched once. Failures are collected per chunk and never stop
// other fetches. The only error returned is the context's, together with
// the partial report.
func (f *Fetcher) Fetch(ctx context.Context, root model.Identifier, d *model.FileDescriptor) (*Report, error) {
	report := &Report{}

	var tasks []*task
	byID := make(map[model.Identifier]*task)
	for _, ref := range d.HashChunks {
		switch {
		case ref.Source == root:
			f.logger.Warn("chunk source is the root record, skipping", "hash", ref.Hash, "id", ref.Source.String())
			f.metrics.ChunkFetch(metrics.OutcomeSkipped, 0, 0)
			report.Skipped = append(report.Skipped, Skip{Hash: ref.Hash, Source: ref.Source, Reason: ReasonRoot})
			continue
		case !f.refetch && f.store.Has(ref.Hash):
			f.logger.Debug("chunk already canonical", "hash", ref.Hash)
			report.Skipped = append(report.Skipped, Skip{Hash: ref.Hash, Source: ref.Source, Reason: ReasonCached})
			continue
		}
		if t, ok := byID[ref.Source]; ok {
			t.refs = append(t.refs, ref)
			continue
		}
		t := &task{source: ref.Source, refs: []model.ChunkRef{ref}}
		byID[ref.Source] = t
		tasks = append(tasks, t)
	}

	results := make([]outcome, len(tasks))
	var g errgroup.Group
	g.SetLimit(f.concurrency)

	var cancelled error
	for i, t := range tasks {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		i, t := i, t
		g.Go(func() error {
			results[i] = f.fetchOne(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.chunk != nil {
			report.Retrieved = append(report.Retrieved, *res.chunk)
		}
		if res.failure != nil {
			report.Failures = append(report.Failures, *res.failure)
		}
		report.Mismatches = append(report.Mismatches, res.mismatch...)
	}

	f.logger.Info("fetch complete",
		"retrieved", len(report.Retrieved),
		"skipped", len(report.Skipped),
		"failed", len(report.Failures),
		"mismatched", len(report.Mismatches))

	if cancelled != nil {
		return report, cancelled
	}
	return report, ctx.Err()
}

func (f *Fetcher) fetchOne(ctx context.Context, t *task) outcome {
	start := time.Now()
	first := t.refs[0]

	fail := func(err error) outcome {
		f.metrics.ChunkFetch(metrics.OutcomeError, 0, time.Since(start).Seconds())
		f.logger.Warn("chunk fetch failed", "hash", first.Hash, "id", t.source.String(), "error", err)
		return outcome{failure: &Failure{Hash: first.Hash, Source: t.source, Err: err, Error: err.Error()}}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	msg, err := f.extractor.ExtractMessage(ctx, t.source)
	if err != nil {
		return fail(err)
	}
	if err := f.store.WritePending(t.source, msg); err != nil {
		return fail(err)
	}

	f.metrics.ChunkFetch(metrics.OutcomeOK, len(msg), time.Since(start).Seconds())
	actual := model.ContentHash(msg)
	f.logger.Debug("chunk fetched", "id", t.source.String(), "bytes", len(msg), "hash", actual)

	out := outcome{chunk: &Chunk{Hash: actual, Source: t.source, Size: len(msg)}}
	for _, ref := range t.refs {
		if ref.Hash != actual {
			f.logger.Warn("chunk hash mismatch", "id", t.source.String(), "expected", ref.Hash, "actual", actual)
			out.mismatch = append(out.mismatch, Mismatch{Source: t.source, Expected: ref.Hash, Actual: actual})
		}
	}
	return out
}
