package retrieve

import (
	"context"

	"github.com/roach88/chainfile/internal/chunkstore"
	"github.com/roach88/chainfile/internal/model"
	"github.com/roach88/chainfile/internal/store"
)

// beginRun opens a provenance run, returning "" when recording is off or
// fails. Provenance never blocks a retrieval.
func (s *Service) beginRun(ctx context.Context, start model.Identifier) string {
	if s.recorder == nil {
		return ""
	}
	id, err := s.recorder.BeginRun(ctx, start, s.chain)
	if err != nil {
		s.record("begin run", err)
		return ""
	}
	return id
}

func (s *Service) finishRun(ctx context.Context, runID string, res *Result, err error) {
	if runID == "" {
		return
	}
	out := store.Outcome{Status: runStatus(res, err)}
	if res != nil {
		out.ChainTip = res.ChainTip
		out.Present = res.Present
		out.Required = res.Required
	}
	// Record the outcome even when ctx was cancelled mid-run.
	s.record("finish run", s.recorder.FinishRun(context.WithoutCancel(ctx), runID, out))
}

func (s *Service) record(op string, err error) {
	if err != nil {
		s.logger.Warn("provenance "+op+" failed", "error", err)
	}
}

func runStatus(res *Result, err error) string {
	switch {
	case res != nil && res.Complete:
		return store.StatusComplete
	case chunkstore.IsIntegrityMismatch(err):
		return store.StatusMismatch
	case res != nil && err == nil:
		return store.StatusIncomplete
	default:
		return store.StatusFailed
	}
}
