package chunkstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/chainfile/internal/metrics"
	"github.com/roach88/chainfile/internal/model"
)

// Ext is the file extension of pending and canonical chunks.
const Ext = ".chunk"

const (
	pendingDir = "pending"
	chunksDir  = "chunks"
	dirPerm    = 0o755
	filePerm   = 0o644
)

// Store is a chunk store rooted at a working directory. Methods are safe
// for concurrent use by writers of distinct identifiers.
type Store struct {
	root    string
	pending string
	chunks  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics records canonicalize and assembly outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Open creates the store layout under workdir if needed.
func Open(workdir string, opts ...Option) (*Store, error) {
	s := &Store{
		root:    workdir,
		pending: filepath.Join(workdir, pendingDir),
		chunks:  filepath.Join(workdir, chunksDir),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, dir := range []string{s.pending, s.chunks} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, fmt.Errorf("create chunk store: %w", err)
		}
	}
	return s, nil
}

// Root returns the working directory.
func (s *Store) Root() string {
	return s.root
}

// PendingPath returns where the chunk fetched from id is kept.
func (s *Store) PendingPath(id model.Identifier) string {
	return filepath.Join(s.pending, id.String()+Ext)
}

// ChunkPath returns the canonical location of a chunk hash.
func (s *Store) ChunkPath(hash string) string {
	return filepath.Join(s.chunks, model.NormalizeHash(hash)+Ext)
}

// WritePending stores data fetched from id, replacing any earlier copy.
func (s *Store) WritePending(id model.Identifier, data []byte) error {
	return writeAtomic(s.pending, s.PendingPath(id), data)
}

// WriteFileAtomic writes data to path through a synced temp file in the
// same directory, so readers see either the old file or the whole new one.
func WriteFileAtomic(path string, data []byte) error {
	return writeAtomic(filepath.Dir(path), path, data)
}

// Has reports whether the canonical store holds hash.
func (s *Store) Has(hash string) bool {
	info, err := os.Stat(s.ChunkPath(hash))
	return err == nil && info.Mode().IsRegular()
}

// Pending lists identifiers with a pending chunk, sorted.
func (s *Store) Pending() ([]model.Identifier, error) {
	names, err := chunkNames(s.pending)
	if err != nil {
		return nil, err
	}
	ids := make([]model.Identifier, 0, len(names))
	for _, name := range names {
		id, err := model.ParseIdentifier(name)
		if err != nil {
			s.logger.Warn("ignoring pending file with foreign name", "file", name+Ext)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Canonical lists the hashes held in the canonical store, sorted.
func (s *Store) Canonical() ([]string, error) {
	names, err := chunkNames(s.chunks)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, name := range names {
		if model.IsContentHash(name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// Present splits hashes into those held canonically and those missing,
// keeping input order.
func (s *Store) Present(hashes []string) (present, missing []string) {
	has := s.Has
	if held, err := s.Canonical(); err == nil {
		set := make(map[string]bool, len(held))
		for _, h := range held {
			set[h] = true
		}
		has = func(h string) bool { return set[h] }
	}
	for _, h := range hashes {
		if has(h) {
			present = append(present, h)
		} else {
			missing = append(missing, h)
		}
	}
	return present, missing
}

// Clean removes the pending and canonical directories and recreates them
// empty. It is never called implicitly.
func (s *Store) Clean() error {
	for _, dir := range []string{s.pending, s.chunks} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clean %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("clean %s: %w", dir, err)
		}
	}
	return nil
}

// chunkNames returns the base names (without Ext) of chunk files in dir.
// Temp files and directories are skipped.
func chunkNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || filepath.Ext(name) != Ext {
			continue
		}
		names = append(names, strings.TrimSuffix(name, Ext))
	}
	sort.Strings(names)
	return names, nil
}

// writeAtomic writes data to a temp file in dir and renames it to target.
func writeAtomic(dir, target string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", target, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}
	if err = os.Chmod(tmp.Name(), filePerm); err != nil {
		return fmt.Errorf("chmod %s: %w", target, err)
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("rename %s: %w", target, err)
	}
	return nil
}
