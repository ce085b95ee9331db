// Package indexstore is a store.Backend that keeps every entry in a
// single msgpack-encoded index file. The whole index is rewritten
// atomically (temporary file plus rename) on each change, which
// suits many small hashes that would otherwise litter a tree with
// sidecar files.
package indexstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/byte4ever/hashit/store"
)

// index is the on-disk layout.
type index struct {
	Entries map[string][]byte `msgpack:"entries"`
}

// Store persists entries in one index file. The index is
// re-read on every operation so that changes made by other
// processes are observed.
type Store struct {
	mu   sync.Mutex
	path string
}

var _ store.Backend = (*Store)(nil)

// New returns a Store backed by the index file at path.
// The file is created on first write.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the index file location.
func (s *Store) Path() string {
	return s.path
}

// Exists implements store.Backend.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.load()
	if err != nil {
		return false, err
	}

	_, ok := idx.Entries[key]

	return ok, nil
}

// OpenRead implements store.Backend.
func (s *Store) OpenRead(
	_ context.Context,
	key string,
) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.load()
	if err != nil {
		return nil, err
	}

	by, ok := idx.Entries[key]
	if !ok {
		return nil, store.NotFound(key, nil)
	}

	return io.NopCloser(bytes.NewReader(by)), nil
}

// OpenWrite implements store.Backend. Content is committed
// to the index when the handle is closed.
func (s *Store) OpenWrite(
	_ context.Context,
	key string,
	mode store.Mode,
) (io.WriteCloser, error) {
	var initial []byte

	if mode == store.Append {
		s.mu.Lock()
		idx, err := s.load()
		s.mu.Unlock()

		if err != nil {
			return nil, err
		}

		initial = idx.Entries[key]
	}

	return store.NewCommitWriter(initial, func(content []byte) error {
		return s.put(key, content)
	}), nil
}

// Create implements store.Backend.
func (s *Store) Create(_ context.Context, key string) error {
	return s.put(key, []byte{})
}

// Keys lists the keys present in the index in sorted
// order.
func (s *Store) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.load()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(idx.Entries))
	for k := range idx.Entries {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys, nil
}

func (s *Store) put(key string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.load()
	if err != nil {
		return err
	}

	idx.Entries[key] = content

	return s.save(idx)
}

func (s *Store) load() (*index, error) {
	const errCtx = "loading index"

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return &index{Entries: make(map[string][]byte)}, nil
	}

	if err != nil {
		return nil, store.IOError(
			s.path, fmt.Errorf("%s: %w", errCtx, err),
		)
	}

	var idx index

	if len(raw) > 0 {
		if err := msgpack.Unmarshal(raw, &idx); err != nil {
			return nil, store.IOError(
				s.path, fmt.Errorf("%s: %w", errCtx, err),
			)
		}
	}

	if idx.Entries == nil {
		idx.Entries = make(map[string][]byte)
	}

	return &idx, nil
}

func (s *Store) save(idx *index) error {
	const errCtx = "saving index"

	dir := filepath.Dir(s.path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return store.MissingDir(dir, err)
	}

	raw, err := msgpack.Marshal(idx)
	if err != nil {
		return store.IOError(
			s.path, fmt.Errorf("%s: %w", errCtx, err),
		)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return store.IOError(
			s.path, fmt.Errorf("%s: %w", errCtx, err),
		)
	}

	defer func() {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil &&
			!errors.Is(rmErr, fs.ErrNotExist) {
			slog.Warn(
				"cannot remove temporary index",
				"path", tmp.Name(),
				"error", rmErr,
			)
		}
	}()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close() //nolint:errcheck // write error wins

		return store.IOError(
			s.path, fmt.Errorf("%s: %w", errCtx, err),
		)
	}

	if err := tmp.Close(); err != nil {
		return store.IOError(
			s.path, fmt.Errorf("%s: %w", errCtx, err),
		)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return store.IOError(
			s.path, fmt.Errorf("%s: %w", errCtx, err),
		)
	}

	return nil
}
