package retrieve

import (
	"context"
	"time"

	"github.com/roach88/chainfile/internal/chunkstore"
	"github.com/roach88/chainfile/internal/fetch"
	"github.com/roach88/chainfile/internal/model"
)

// Result is the outcome of a file retrieval.
type Result struct {
	// Complete is true only when the output exists and matches the
	// descriptor hash.
	Complete bool `json:"complete"`
	// ChainTip is the unspent tip of the descriptor's chain, zero when the
	// chain could not be walked.
	ChainTip model.Identifier `json:"chain_tip"`
	// VerifiedHashes are the descriptor hashes present in the canonical
	// store, in descriptor order.
	VerifiedHashes []string `json:"verified_hashes"`
	// Missing are the descriptor hashes absent from the canonical store.
	Missing []string `json:"missing,omitempty"`
	Present  int      `json:"present"`
	Required int      `json:"required"`

	RunID      string                `json:"run_id,omitempty"`
	Descriptor *model.FileDescriptor `json:"descriptor,omitempty"`
	Fetch      *fetch.Report         `json:"fetch,omitempty"`
	Assembly   *chunkstore.Assembly  `json:"assembly,omitempty"`
	Elapsed    time.Duration         `json:"elapsed"`
}

// RetrieveFile reconstructs the file published at start.
//
// override, when non-empty, replaces the descriptor stored on chain.
// Missing chunks are not an error: the Result reports them and no output is
// written. A whole-file hash mismatch returns the Result together with a
// *chunkstore.IntegrityMismatchError. Descriptor and cancellation failures
// return a nil Result.
func (s *Service) RetrieveFile(ctx context.Context, start model.Identifier, override string) (*Result, error) {
	began := time.Now()
	runID := s.beginRun(ctx, start)

	res, err := s.retrieve(ctx, runID, start, override)
	if res != nil {
		res.RunID = runID
		res.Elapsed = time.Since(began)
	}
	s.finishRun(ctx, runID, res, err)
	return res, err
}

func (s *Service) retrieve(ctx context.Context, runID string, start model.Identifier, override string) (*Result, error) {
	d, err := s.Descriptor(ctx, start, override)
	if err != nil {
		return nil, err
	}
	s.logger.Info("file descriptor",
		"filename", d.Filename, "hash", d.Hash, "chunks", len(d.HashChunks))
	if runID != "" {
		s.record("set descriptor", s.recorder.SetDescriptor(ctx, runID, d))
	}

	var tip model.Identifier
	step, err := s.walker.Walk(ctx, start, nil)
	switch {
	case err == nil:
		tip = step.Current
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		s.logger.Warn("chain tip unavailable", "id", start.String(), "error", err)
	}

	report, err := s.fetcher.Fetch(ctx, start, d)
	if err != nil {
		return nil, err
	}
	s.recordFetch(ctx, runID, report)

	res, err := s.Assemble(d)
	if res != nil {
		res.ChainTip = tip
		res.Fetch = report
	}
	return res, err
}

// Assemble canonicalizes pending chunks and reassembles d without touching
// the ledger.
func (s *Service) Assemble(d *model.FileDescriptor) (*Result, error) {
	if _, err := s.chunks.Canonicalize(); err != nil {
		// Files that failed to canonicalize stay pending and are
		// reported missing below.
		s.logger.Warn("canonicalize", "error", err)
	}

	hashes := d.HashChunks.Hashes()
	present, missing := s.chunks.Present(hashes)
	res := &Result{
		VerifiedHashes: present,
		Missing:        missing,
		Present:        len(present),
		Required:       len(hashes),
		Descriptor:     d,
	}
	if res.VerifiedHashes == nil {
		res.VerifiedHashes = []string{}
	}

	asm, err := s.chunks.Reassemble(d, s.outputDir)
	switch {
	case err == nil:
		res.Complete = true
		res.Assembly = asm
		return res, nil
	case chunkstore.IsIncomplete(err):
		return res, nil
	case chunkstore.IsIntegrityMismatch(err):
		res.Assembly = asm
		return res, err
	default:
		return nil, err
	}
}

func (s *Service) recordFetch(ctx context.Context, runID string, report *fetch.Report) {
	if runID == "" {
		return
	}
	for _, c := range report.Retrieved {
		s.record("record chunk", s.recorder.RecordChunk(ctx, runID, c.Source, c.Hash, c.Size))
	}
	for _, f := range report.Failures {
		s.record("record failure", s.recorder.RecordFailure(ctx, runID, f.Source, f.Hash, f.Error))
	}
}
