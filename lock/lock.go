package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/byte4ever/hashit/store"
)

// Suffix is appended to a key to name its lock file.
const Suffix = ".lock"

// PollInterval is the wait between attempts in Acquire.
const PollInterval = 25 * time.Millisecond

// ErrLocked is returned by TryAcquire when another holder
// owns the lock.
var ErrLocked = errors.New("lock is held elsewhere")

// Lock is a held lock. Release it when done.
type Lock struct {
	path string
	fi   *os.File
}

// Path returns the lock file path for key.
func Path(key string) string {
	return key + Suffix
}

// TryAcquire takes the lock at path without waiting.
func TryAcquire(path string) (*Lock, error) {
	const errCtx = "acquiring lock"

	fi, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := tryLock(fi, path); err != nil {
		_ = fi.Close()

		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Debug("acquired lock", "path", path)

	return &Lock{path: path, fi: fi}, nil
}

// Acquire takes the lock at path, retrying every
// PollInterval until it succeeds or ctx is done.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	const errCtx = "waiting for lock"

	tick := time.NewTicker(PollInterval)
	defer tick.Stop()

	for {
		lk, err := TryAcquire(path)
		if err == nil {
			return lk, nil
		}

		if !errors.Is(err, ErrLocked) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %s: %w", errCtx, path, ctx.Err())
		case <-tick.C:
		}
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. The lock file itself is kept.
// Releasing twice is a no-op.
func (l *Lock) Release() error {
	const errCtx = "releasing lock"

	if l == nil || l.fi == nil {
		return nil
	}

	fi := l.fi
	l.fi = nil

	unlockErr := unlock(fi, l.path)
	closeErr := fi.Close()

	if err := errors.Join(unlockErr, closeErr); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Debug("released lock", "path", l.path)

	return nil
}

func open(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, store.MissingDir(path, err)
	}

	fi, err := os.OpenFile( //nolint:gosec // path is caller-provided by design
		path, os.O_CREATE|os.O_RDWR, 0o600,
	)
	if err != nil {
		return nil, store.IOError(path, err)
	}

	return fi, nil
}
