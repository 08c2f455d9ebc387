package store

import (
	"context"
	"fmt"

	"github.com/roach88/chainfile/internal/model"
)

// Run statuses.
const (
	StatusRunning    = "running"
	StatusComplete   = "complete"
	StatusIncomplete = "incomplete"
	StatusMismatch   = "mismatch"
	StatusFailed     = "failed"
)

// Outcome is the final state of a run.
type Outcome struct {
	Status   string
	ChainTip model.Identifier
	Present  int
	Required int
}

// BeginRun inserts a running run and returns its id.
func (s *Store) BeginRun(ctx context.Context, start model.Identifier, chain string) (string, error) {
	id := s.ids.Generate()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, start_id, chain, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, start.String(), chain, StatusRunning, s.now())
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// SetDescriptor stores the file name and hash a run is retrieving.
func (s *Store) SetDescriptor(ctx context.Context, runID string, d *model.FileDescriptor) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET filename = ?, file_hash = ?, required = ? WHERE id = ?
	`, d.Filename, d.Hash, len(d.HashChunks), runID)
	if err != nil {
		return fmt.Errorf("set descriptor: %w", err)
	}
	return requireRow(res, runID)
}

// RecordChunk notes that source delivered bytes hashing to hash.
// Uses ON CONFLICT DO NOTHING for idempotency - a source is recorded once
// per run.
func (s *Store) RecordChunk(ctx context.Context, runID string, source model.Identifier, hash string, size int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (run_id, source_id, hash, size)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, source_id) DO NOTHING
	`, runID, source.String(), hash, size)
	if err != nil {
		return fmt.Errorf("record chunk: %w", err)
	}
	return nil
}

// RecordFailure notes a failed chunk fetch.
func (s *Store) RecordFailure(ctx context.Context, runID string, source model.Identifier, hash, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failures (run_id, source_id, hash, message)
		VALUES (?, ?, ?, ?)
	`, runID, source.String(), hash, message)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, out Outcome) error {
	tip := ""
	if !out.ChainTip.IsZero() {
		tip = out.ChainTip.String()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, chain_tip = ?, present = ?, required = ?, finished_at = ?
		WHERE id = ?
	`, out.Status, tip, out.Present, out.Required, s.now(), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return requireRow(res, runID)
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func requireRow(res rowsAffected, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}
