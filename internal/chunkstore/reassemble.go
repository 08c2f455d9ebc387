package chunkstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/roach88/chainfile/internal/descriptor"
	"github.com/roach88/chainfile/internal/metrics"
	"github.com/roach88/chainfile/internal/model"
)

// Assembly describes a reconstructed file.
type Assembly struct {
	Path   string `json:"path"`
	Hash   string `json:"hash"`
	Size   int64  `json:"size"`
	Chunks int    `json:"chunks"`
}

// Reassemble concatenates the descriptor's chunks, in descriptor order,
// into outDir/<base name of d.Filename> and verifies the result.
//
// Missing chunks yield *IncompleteFileError and nothing is written. A hash
// disagreement yields *IntegrityMismatchError; the written file replaces
// any earlier one and is kept. Chunks are never removed.
func (s *Store) Reassemble(d *model.FileDescriptor, outDir string) (*Assembly, error) {
	name, err := descriptor.OutputName(d.Filename)
	if err != nil {
		return nil, err
	}

	hashes := d.HashChunks.Hashes()
	present, missing := s.Present(hashes)
	if len(missing) > 0 {
		s.metrics.Assembly(metrics.ResultIncomplete)
		s.logger.Warn("file incomplete",
			"present", len(present), "required", len(hashes), "missing", len(missing))
		return nil, &IncompleteFileError{
			Present:  len(present),
			Required: len(hashes),
			Missing:  missing,
		}
	}

	if err := os.MkdirAll(outDir, dirPerm); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	target := filepath.Join(outDir, name)

	actual, size, err := s.concat(target, hashes)
	if err != nil {
		return nil, err
	}

	asm := &Assembly{Path: target, Hash: actual, Size: size, Chunks: len(hashes)}
	expected := model.NormalizeHash(d.Hash)
	if actual != expected {
		s.metrics.Assembly(metrics.ResultMismatch)
		s.logger.Error("file hash doesn't match", "path", target, "expected", expected, "actual", actual)
		return asm, &IntegrityMismatchError{Path: target, Expected: expected, Actual: actual}
	}

	s.metrics.Assembly(metrics.ResultComplete)
	s.logger.Info("file hash matches", "path", target, "hash", actual, "bytes", size)
	return asm, nil
}

// concat writes the chunks to a temp file beside target, hashing as it
// goes, then renames it over target.
func (s *Store) concat(target string, hashes []string) (sum string, size int64, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+"-*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("assemble %s: %w", target, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(tmp, h)
	for _, hash := range hashes {
		n, err := appendChunk(w, s.ChunkPath(hash))
		if err != nil {
			return "", 0, err
		}
		size += n
	}

	if err := tmp.Sync(); err != nil {
		return "", 0, fmt.Errorf("sync %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("close %s: %w", target, err)
	}
	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		return "", 0, fmt.Errorf("chmod %s: %w", target, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", 0, fmt.Errorf("rename %s: %w", target, err)
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

func appendChunk(w io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open chunk: %w", err)
	}
	defer f.Close()
	n, err := io.Copy(w, f)
	if err != nil {
		return n, fmt.Errorf("copy chunk %s: %w", path, err)
	}
	return n, nil
}
