// Package filestore is the local filesystem store.Backend. Keys are
// file paths, optionally confined under a root directory.
// Truncating writes go to a temporary file that replaces the entry
// on Close, so readers never observe a half-written hash.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/byte4ever/hashit/store"
)

const (
	dirPerm  = 0o755
	filePerm = 0o600
)

// Store resolves keys to files.
type Store struct {
	root string
}

var _ store.Backend = (*Store)(nil)

// New returns a Store. With an empty root, keys are used
// as paths directly; otherwise every key, absolute or
// not, is placed under root and ".." segments cannot
// climb above it.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the configured root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the file path backing key.
func (s *Store) Path(key string) string {
	if s.root == "" {
		return filepath.Clean(key)
	}

	// Cleaning against the separator drops leading ".."
	// segments before the key is joined to root.
	rel := filepath.Clean(
		string(filepath.Separator) + filepath.FromSlash(key),
	)

	return filepath.Join(s.root, rel)
}

// Exists implements store.Backend.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	pa := s.Path(key)

	_, err := os.Stat(pa)
	if err == nil {
		return true, nil
	}

	// A file where a directory is expected means the entry
	// cannot exist yet; Create reports the structural error.
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return false, nil
	}

	return false, store.IOError(pa, err)
}

// OpenRead implements store.Backend.
func (s *Store) OpenRead(
	_ context.Context,
	key string,
) (io.ReadCloser, error) {
	pa := s.Path(key)

	fi, err := os.Open(pa) //nolint:gosec // path is caller-provided by design
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, store.NotFound(pa, err)
		}

		return nil, store.IOError(pa, err)
	}

	return fi, nil
}

// OpenWrite implements store.Backend.
func (s *Store) OpenWrite(
	_ context.Context,
	key string,
	mode store.Mode,
) (io.WriteCloser, error) {
	pa := s.Path(key)

	if err := ensureDir(pa); err != nil {
		return nil, err
	}

	if mode == store.Truncate {
		return newReplaceWriter(pa)
	}

	fi, err := os.OpenFile( //nolint:gosec // path is caller-provided by design
		pa, os.O_WRONLY|os.O_CREATE|os.O_APPEND, filePerm,
	)
	if err != nil {
		return nil, store.IOError(pa, err)
	}

	return fi, nil
}

// Create implements store.Backend. An existing entry is
// emptied.
func (s *Store) Create(_ context.Context, key string) error {
	pa := s.Path(key)

	if err := ensureDir(pa); err != nil {
		return err
	}

	fi, err := os.OpenFile( //nolint:gosec // path is caller-provided by design
		pa, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm,
	)
	if err != nil {
		return store.IOError(pa, err)
	}

	if err := fi.Close(); err != nil {
		return store.IOError(pa, err)
	}

	slog.Debug("created entry", "path", pa)

	return nil
}

func ensureDir(pa string) error {
	dir := filepath.Dir(pa)

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return store.MissingDir(dir, err)
	}

	return nil
}

// replaceWriter writes to a sibling temporary file and
// renames it over the target on Close. After a failed
// write the target is left untouched.
type replaceWriter struct {
	target string
	tmp    *os.File
	err    error
	done   bool
}

var _ store.Aborter = (*replaceWriter)(nil)

func newReplaceWriter(target string) (*replaceWriter, error) {
	tmp, err := os.CreateTemp(
		filepath.Dir(target), "."+filepath.Base(target)+".tmp-*",
	)
	if err != nil {
		return nil, store.IOError(target, err)
	}

	return &replaceWriter{target: target, tmp: tmp}, nil
}

func (rw *replaceWriter) Write(p []byte) (int, error) {
	if rw.done {
		return 0, store.ErrClosed
	}

	if rw.err != nil {
		return 0, rw.err
	}

	n, err := rw.tmp.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}

	if err != nil {
		rw.err = err
	}

	return n, err
}

// Abort removes the temporary file and keeps the target.
func (rw *replaceWriter) Abort() error {
	if rw.done {
		return nil
	}

	rw.done = true

	err := rw.tmp.Close()
	rw.discard()

	if err != nil && !errors.Is(err, os.ErrClosed) {
		return store.IOError(rw.target, err)
	}

	return nil
}

func (rw *replaceWriter) Close() error {
	const errCtx = "replacing entry"

	if rw.done {
		return nil
	}

	if rw.err != nil {
		if err := rw.Abort(); err != nil {
			return err
		}

		return store.IOError(
			rw.target, fmt.Errorf("%s: %w", errCtx, rw.err),
		)
	}

	rw.done = true

	if err := rw.tmp.Close(); err != nil {
		rw.discard()

		return store.IOError(
			rw.target, fmt.Errorf("%s: %w", errCtx, err),
		)
	}

	if err := os.Rename(rw.tmp.Name(), rw.target); err != nil {
		rw.discard()

		return store.IOError(
			rw.target, fmt.Errorf("%s: %w", errCtx, err),
		)
	}

	return nil
}

func (rw *replaceWriter) discard() {
	if err := os.Remove(rw.tmp.Name()); err != nil &&
		!errors.Is(err, fs.ErrNotExist) {
		slog.Warn(
			"cannot remove temporary file",
			"path", rw.tmp.Name(),
			"error", err,
		)
	}
}
