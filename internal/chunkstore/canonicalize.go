package chunkstore

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/chainfile/internal/metrics"
	"github.com/roach88/chainfile/internal/model"
)

// Canonicalize moves every pending chunk under its content hash and returns
// hash → canonical path for the files it handled.
//
// A pending file whose hash is already canonical is removed; the contents
// are identical by construction. Re-running with nothing pending is a
// no-op. A failure on one file does not stop the others; all failures are
// joined into the returned error.
func (s *Store) Canonicalize() (map[string]string, error) {
	ids, err := s.Pending()
	if err != nil {
		return nil, err
	}

	moved := make(map[string]string, len(ids))
	var errs []error
	for _, id := range ids {
		name := id.String()
		src := s.PendingPath(id)
		hash, err := hashFile(src)
		if err != nil {
			s.metrics.Canonical(metrics.OutcomeError)
			errs = append(errs, err)
			continue
		}

		dst := s.ChunkPath(hash)
		if s.Has(hash) {
			if err := os.Remove(src); err != nil {
				s.metrics.Canonical(metrics.OutcomeError)
				errs = append(errs, fmt.Errorf("remove duplicate %s: %w", src, err))
				continue
			}
			s.metrics.Canonical(metrics.OutcomeDuplicate)
			s.logger.Debug("chunk already canonical", "source", name, "hash", hash)
			moved[hash] = dst
			continue
		}

		if err := os.Rename(src, dst); err != nil {
			s.metrics.Canonical(metrics.OutcomeError)
			errs = append(errs, fmt.Errorf("canonicalize %s: %w", src, err))
			continue
		}
		s.metrics.Canonical(metrics.OutcomeMoved)
		s.logger.Info("renaming chunk", "source", name, "hash", hash)
		moved[hash] = dst
	}
	return moved, errors.Join(errs...)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	hash, _, err := model.HashReader(f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hash, nil
}
