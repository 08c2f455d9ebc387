package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/chainfile/internal/model"
)

// Run is one recorded retrieval.
type Run struct {
	ID         string     `json:"id"`
	StartID    string     `json:"start_id"`
	Chain      string     `json:"chain"`
	Filename   string     `json:"filename,omitempty"`
	FileHash   string     `json:"file_hash,omitempty"`
	ChainTip   string     `json:"chain_tip,omitempty"`
	Status     string     `json:"status"`
	Present    int        `json:"present"`
	Required   int        `json:"required"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ChunkRecord is a chunk delivered during a run.
type ChunkRecord struct {
	Source string `json:"source"`
	Hash   string `json:"hash"`
	Size   int    `json:"size"`
}

// FailureRecord is a failed chunk fetch.
type FailureRecord struct {
	Source  string `json:"source"`
	Hash    string `json:"hash"`
	Message string `json:"message"`
}

const runColumns = `id, start_id, chain, filename, file_hash, chain_tip, status, present, required, started_at, finished_at`

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return r, err
}

// RunChunks returns the chunks delivered during a run, in insertion order.
func (s *Store) RunChunks(ctx context.Context, runID string) ([]ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, hash, size FROM chunks WHERE run_id = ? ORDER BY rowid ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	out := []ChunkRecord{}
	for rows.Next() {
		var c ChunkRecord
		if err := rows.Scan(&c.Source, &c.Hash, &c.Size); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// RunFailures returns the failed fetches of a run.
func (s *Store) RunFailures(ctx context.Context, runID string) ([]FailureRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, hash, message FROM failures WHERE run_id = ? ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	out := []FailureRecord{}
	for rows.Next() {
		var f FailureRecord
		if err := rows.Scan(&f.Source, &f.Hash, &f.Message); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return out, nil
}

// SourcesOf returns every identifier that has delivered hash, across runs.
func (s *Store) SourcesOf(ctx context.Context, hash string) ([]model.Identifier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT source_id FROM chunks WHERE hash = ? ORDER BY source_id ASC
	`, model.NormalizeHash(hash))
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []model.Identifier
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		id, err := model.ParseIdentifier(raw)
		if err != nil {
			return nil, fmt.Errorf("stored source: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r        Run
		started  string
		finished sql.NullString
	)
	err := row.Scan(&r.ID, &r.StartID, &r.Chain, &r.Filename, &r.FileHash, &r.ChainTip,
		&r.Status, &r.Present, &r.Required, &started, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	r.StartedAt, err = time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return Run{}, fmt.Errorf("parse finished_at: %w", err)
		}
		r.FinishedAt = &t
	}
	return r, nil
}
