// Package fetcher reads the combined hash previously stored under a
// key. An absent entry is created empty and reported as "no prior
// record" (empty bytes), never as an error.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/byte4ever/hashit/store"
)

// Fetcher returns the bytes cached under a key.
type Fetcher interface {
	FetchCached(ctx context.Context, key string) ([]byte, error)
}

// FetcherFunc adapts a plain function to the Fetcher
// interface.
type FetcherFunc func(ctx context.Context, key string) ([]byte, error)

// FetchCached delegates to the wrapped function.
func (f FetcherFunc) FetchCached(
	ctx context.Context,
	key string,
) ([]byte, error) {
	return f(ctx, key)
}

// Store fetches through a backend.
type Store struct {
	backend store.Backend
}

var _ Fetcher = (*Store)(nil)

// New returns a Fetcher over backend.
func New(backend store.Backend) *Store {
	return &Store{backend: backend}
}

// FetchCached implements Fetcher. A missing entry is
// created empty and an empty, non-nil slice is returned.
func (s *Store) FetchCached(
	ctx context.Context,
	key string,
) ([]byte, error) {
	const errCtx = "fetching cached hash"

	ok, err := s.backend.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if !ok {
		if err := s.backend.Create(ctx, key); err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		slog.Debug("initialised empty entry", "key", key)

		return []byte{}, nil
	}

	by, err := store.ReadAll(ctx, s.backend, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return by, nil
}
