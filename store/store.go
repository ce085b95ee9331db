package store

import (
	"context"
	"io"
	"log/slog"
)

// Pattern: Strategy -- swap persistence without changing
// the comparison logic.

// Mode selects how a write handle treats the bytes already
// stored under a key.
type Mode int

const (
	// Append preserves existing bytes and writes after
	// them.
	Append Mode = iota
	// Truncate discards existing bytes before the first
	// write.
	Truncate
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case Append:
		return "append"
	case Truncate:
		return "truncate"
	default:
		return "unknown"
	}
}

// Backend stores cache entries under opaque keys.
//
// Implementations touch only the entry named by key and
// whatever structure is needed to hold it.
type Backend interface {
	// Exists reports whether an entry is present at key.
	// Plain absence is (false, nil).
	Exists(ctx context.Context, key string) (bool, error)

	// OpenRead returns a handle over the full current
	// bytes of the entry. It fails with ErrNotFound when
	// the entry was never created.
	OpenRead(ctx context.Context, key string) (io.ReadCloser, error)

	// OpenWrite returns a write handle in the given mode,
	// creating the entry and its prerequisites when
	// needed. Bytes become visible at the latest when the
	// handle is closed.
	OpenWrite(
		ctx context.Context,
		key string,
		mode Mode,
	) (io.WriteCloser, error)

	// Create ensures an entry with empty content exists at
	// key, creating containing structure along the way.
	Create(ctx context.Context, key string) error
}

// ReadAll opens key for reading and returns its full
// content.
func ReadAll(
	ctx context.Context,
	b Backend,
	key string,
) (result []byte, retErr error) {
	rc, err := b.OpenRead(ctx, key)
	if err != nil {
		return nil, err
	}

	defer func() {
		if closeErr := rc.Close(); closeErr != nil && retErr == nil {
			retErr = IOError(key, closeErr)
		}
	}()

	by, err := io.ReadAll(rc)
	if err != nil {
		return nil, IOError(key, err)
	}

	if by == nil {
		by = []byte{}
	}

	return by, nil
}

// Aborter is implemented by write handles that can drop
// their pending bytes instead of persisting them.
type Aborter interface {
	// Abort releases the handle and leaves the entry as it
	// was before OpenWrite. Later calls are no-ops.
	Abort() error
}

// WriteAll opens key in the given mode, writes data in
// full and closes the handle. A failed or short write
// aborts the handle when it supports it, so the prior
// entry is kept.
func WriteAll(
	ctx context.Context,
	b Backend,
	key string,
	mode Mode,
	data []byte,
) error {
	wc, err := b.OpenWrite(ctx, key, mode)
	if err != nil {
		return err
	}

	n, err := wc.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}

	if err != nil {
		release(wc)

		return IOError(key, err)
	}

	if err := wc.Close(); err != nil {
		return IOError(key, err)
	}

	return nil
}

func release(wc io.WriteCloser) {
	var err error

	if a, ok := wc.(Aborter); ok {
		err = a.Abort()
	} else {
		err = wc.Close()
	}

	if err != nil {
		slog.Warn("cannot release write handle", "error", err)
	}
}
