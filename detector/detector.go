package detector

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/byte4ever/hashit/fetcher"
	"github.com/byte4ever/hashit/hashcalc"
	"github.com/byte4ever/hashit/store"
)

// Detector compares a combined hash with the one cached
// under an output key.
type Detector struct {
	backend  store.Backend
	computer hashcalc.Computer
	fetcher  fetcher.Fetcher
}

// Result is the outcome of Check.
type Result struct {
	// Changed reports whether Hash differs from Cached.
	Changed bool
	// Hash is the combined hash of the inputs.
	Hash []byte
	// Cached is what the output key held. Empty when the
	// key has no record.
	Cached []byte
}

// New returns a Detector persisting through backend and
// hashing inputs with computer.
func New(backend store.Backend, computer hashcalc.Computer) *Detector {
	return NewWithFetcher(backend, computer, fetcher.New(backend))
}

// NewWithFetcher is New with an explicit cache fetcher.
func NewWithFetcher(
	backend store.Backend,
	computer hashcalc.Computer,
	fe fetcher.Fetcher,
) *Detector {
	return &Detector{
		backend:  backend,
		computer: computer,
		fetcher:  fe,
	}
}

// HasChanged reports whether the combined hash of inputs
// differs from the one cached under key, and stores the
// new hash when it does.
//
// A hashing failure returns before key is touched. An
// empty input list hashes to empty bytes, which equal a
// freshly created entry: the first call on a new key with
// no inputs returns false and leaves an empty entry.
func (d *Detector) HasChanged(
	ctx context.Context,
	inputs []string,
	key string,
) (bool, error) {
	const errCtx = "detecting change"

	hash, err := d.computer.CalcHash(ctx, inputs)
	if err != nil {
		return false, fmt.Errorf("%s: %w", errCtx, err)
	}

	cached, err := d.fetcher.FetchCached(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%s: %w", errCtx, err)
	}

	if bytes.Equal(hash, cached) {
		slog.Debug("unchanged", "key", key)

		return false, nil
	}

	if err := store.WriteAll(
		ctx, d.backend, key, store.Truncate, hash,
	); err != nil {
		return false, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Debug("changed", "key", key, "bytes", len(hash))

	return true, nil
}

// Check compares without side effects: a missing key is
// read as empty and is not created.
func (d *Detector) Check(
	ctx context.Context,
	inputs []string,
	key string,
) (Result, error) {
	const errCtx = "checking change"

	hash, err := d.computer.CalcHash(ctx, inputs)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	cached, err := d.peek(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	return Result{
		Changed: !bytes.Equal(hash, cached),
		Hash:    hash,
		Cached:  cached,
	}, nil
}

// Record replaces the entry under key with hash.
func (d *Detector) Record(
	ctx context.Context,
	key string,
	hash []byte,
) error {
	const errCtx = "recording hash"

	if err := store.WriteAll(
		ctx, d.backend, key, store.Truncate, hash,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

func (d *Detector) peek(
	ctx context.Context,
	key string,
) ([]byte, error) {
	ok, err := d.backend.Exists(ctx, key)
	if err != nil {
		return nil, err
	}

	if !ok {
		return []byte{}, nil
	}

	return store.ReadAll(ctx, d.backend, key)
}
