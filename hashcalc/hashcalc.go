package hashcalc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/byte4ever/hashit/digester"
	"github.com/byte4ever/hashit/store"
)

// Pattern: Strategy -- swap how input content is resolved
// without changing the comparison logic.

// Computer produces a combined hash over ordered inputs.
type Computer interface {
	// CalcHash returns the concatenated digests of inputs.
	// Zero inputs yield an empty, non-nil slice.
	CalcHash(ctx context.Context, inputs []string) ([]byte, error)
}

// ComputerFunc adapts a plain function to the Computer
// interface.
type ComputerFunc func(
	ctx context.Context,
	inputs []string,
) ([]byte, error)

// CalcHash delegates to the wrapped function.
func (f ComputerFunc) CalcHash(
	ctx context.Context,
	inputs []string,
) ([]byte, error) {
	return f(ctx, inputs)
}

// Store reads every input through a backend.
type Store struct {
	backend store.Backend
	alg     digester.Algorithm
}

var _ Computer = (*Store)(nil)

// NewStore returns a Computer that reads inputs from
// backend and digests them with alg.
func NewStore(backend store.Backend, alg digester.Algorithm) *Store {
	return &Store{backend: backend, alg: alg}
}

// Algorithm returns the digest algorithm in use.
func (s *Store) Algorithm() digester.Algorithm {
	return s.alg
}

// CalcHash implements Computer. It stops at the first
// input that cannot be opened (store.ErrNotFound naming
// that input) or read (store.ErrIO).
func (s *Store) CalcHash(
	ctx context.Context,
	inputs []string,
) ([]byte, error) {
	const errCtx = "calculating hash"

	combined := make([]byte, 0, len(inputs)*s.alg.Size)

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		dg, err := s.digest(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		combined = append(combined, dg...)
	}

	slog.Debug(
		"calculated hash",
		"inputs", len(inputs),
		"algorithm", s.alg.Name,
	)

	return combined, nil
}

func (s *Store) digest(
	ctx context.Context,
	input string,
) (result []byte, retErr error) {
	rc, err := s.backend.OpenRead(ctx, input)
	if err != nil {
		return nil, err
	}

	defer func() {
		if closeErr := rc.Close(); closeErr != nil && retErr == nil {
			retErr = store.IOError(input, closeErr)
		}
	}()

	dg, err := s.alg.SumReader(rc)
	if err != nil {
		return nil, store.IOError(input, err)
	}

	return dg, nil
}

// Literal digests each identifier's own bytes. It resolves
// every input, so it never fails.
type Literal struct {
	alg digester.Algorithm
}

var _ Computer = Literal{}

// NewLiteral returns a Literal computer using alg.
func NewLiteral(alg digester.Algorithm) Literal {
	return Literal{alg: alg}
}

// CalcHash implements Computer.
func (l Literal) CalcHash(
	_ context.Context,
	inputs []string,
) ([]byte, error) {
	combined := make([]byte, 0, len(inputs)*l.alg.Size)

	for _, in := range inputs {
		combined = append(combined, l.alg.Sum([]byte(in))...)
	}

	return combined, nil
}
