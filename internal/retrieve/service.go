package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/chainfile/internal/chunkstore"
	"github.com/roach88/chainfile/internal/descriptor"
	"github.com/roach88/chainfile/internal/fetch"
	"github.com/roach88/chainfile/internal/ledger"
	"github.com/roach88/chainfile/internal/lineage"
	"github.com/roach88/chainfile/internal/metrics"
	"github.com/roach88/chainfile/internal/model"
	"github.com/roach88/chainfile/internal/store"
)

// Recorder receives provenance for each retrieval. *store.Store implements
// it; a nil Recorder records nothing.
type Recorder interface {
	BeginRun(ctx context.Context, start model.Identifier, chain string) (string, error)
	SetDescriptor(ctx context.Context, runID string, d *model.FileDescriptor) error
	RecordChunk(ctx context.Context, runID string, source model.Identifier, hash string, size int) error
	RecordFailure(ctx context.Context, runID string, source model.Identifier, hash, message string) error
	FinishRun(ctx context.Context, runID string, out store.Outcome) error
}

var _ Recorder = (*store.Store)(nil)

// Options configures a Service.
type Options struct {
	Chain       string
	WorkDir     string
	OutputDir   string
	Concurrency int
	Refetch     bool
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Recorder    Recorder
}

// Service runs retrievals against one ledger and one working directory.
type Service struct {
	extractor *lineage.Extractor
	walker    *lineage.Walker
	fetcher   *fetch.Fetcher
	chunks    *chunkstore.Store
	recorder  Recorder
	chain     string
	outputDir string
	logger    *slog.Logger
}

// New creates a Service. source may be nil for offline use, in which case
// only Assemble works.
func New(source ledger.Source, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WorkDir == "" {
		return nil, errors.New("retrieve: work directory is required")
	}
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = opts.WorkDir
	}

	chunks, err := chunkstore.Open(opts.WorkDir,
		chunkstore.WithLogger(logger),
		chunkstore.WithMetrics(opts.Metrics))
	if err != nil {
		return nil, err
	}

	extractor := lineage.NewExtractor(source)
	return &Service{
		extractor: extractor,
		walker: lineage.NewWalker(source, extractor,
			lineage.WithLogger(logger),
			lineage.WithMetrics(opts.Metrics)),
		fetcher: fetch.New(extractor, chunks, fetch.Options{
			Concurrency: opts.Concurrency,
			Refetch:     opts.Refetch,
			Logger:      logger,
			Metrics:     opts.Metrics,
		}),
		chunks:    chunks,
		recorder:  opts.Recorder,
		chain:     opts.Chain,
		outputDir: outDir,
		logger:    logger,
	}, nil
}

// Chunks returns the service's chunk store.
func (s *Service) Chunks() *chunkstore.Store {
	return s.chunks
}

// ReadMessage walks from start to the chain tip and returns the message of
// the last spent record.
func (s *Service) ReadMessage(ctx context.Context, start model.Identifier) (string, error) {
	msg, _, err := s.walker.ReadMessage(ctx, start)
	if err != nil {
		return "", err
	}
	return string(msg), nil
}

// Walk follows the chain from start, passing every spent hop to sink.
func (s *Service) Walk(ctx context.Context, start model.Identifier, sink lineage.Sink) (model.LineageStep, error) {
	return s.walker.Walk(ctx, start, sink)
}

// Descriptor returns the file descriptor for start: override when given,
// otherwise the message carried by the spend of start itself.
func (s *Service) Descriptor(ctx context.Context, start model.Identifier, override string) (*model.FileDescriptor, error) {
	if override != "" {
		return descriptor.ParseString(override)
	}
	msg, err := s.extractor.ExtractMessage(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	s.logger.Debug("descriptor message", "id", start.String(), "message", string(msg))
	return descriptor.Parse(msg)
}
