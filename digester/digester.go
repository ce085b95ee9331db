package digester

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names.
const (
	Blake2b512 = "blake2b-512"
	Blake3     = "blake3"
	SHA256     = "sha256"
	SHA512     = "sha512"
)

// DefaultName is the algorithm used when none is configured.
const DefaultName = Blake2b512

// ErrUnknownAlgorithm is returned by Lookup for an
// unsupported algorithm name.
var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

// ErrBadLength is returned by Split when a combined hash
// is not a whole number of digests.
var ErrBadLength = errors.New("combined hash length mismatch")

// Algorithm is one digest function with a fixed output
// size.
type Algorithm struct {
	// Name is the canonical algorithm name.
	Name string
	// Size is the digest length in bytes.
	Size int

	newFunc func() hash.Hash
}

var registry = map[string]Algorithm{
	Blake2b512: {
		Name:    Blake2b512,
		Size:    blake2b.Size,
		newFunc: newBlake2b512,
	},
	Blake3: {
		Name:    Blake3,
		Size:    32,
		newFunc: func() hash.Hash { return blake3.New() },
	},
	SHA256: {
		Name:    SHA256,
		Size:    sha256.Size,
		newFunc: sha256.New,
	},
	SHA512: {
		Name:    SHA512,
		Size:    sha512.Size,
		newFunc: sha512.New,
	},
}

var aliases = map[string]string{
	"blake2b":    Blake2b512,
	"blake3-256": Blake3,
	"sha-256":    SHA256,
	"sha-512":    SHA512,
}

func newBlake2b512() hash.Hash {
	// A nil key never fails.
	h, err := blake2b.New512(nil)
	if err != nil {
		panic(fmt.Sprintf("blake2b: %v", err))
	}

	return h
}

// Default returns the default algorithm.
func Default() Algorithm {
	return registry[DefaultName]
}

// Lookup returns the algorithm registered under name.
// Names are case-insensitive; an empty name selects the
// default.
func Lookup(name string) (Algorithm, error) {
	const errCtx = "looking up algorithm"

	na := strings.ToLower(strings.TrimSpace(name))
	if na == "" {
		return Default(), nil
	}

	if canon, ok := aliases[na]; ok {
		na = canon
	}

	alg, ok := registry[na]
	if !ok {
		return Algorithm{}, fmt.Errorf(
			"%s: %w: %q", errCtx, ErrUnknownAlgorithm, name,
		)
	}

	return alg, nil
}

// Names lists the canonical algorithm names in sorted
// order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for na := range registry {
		names = append(names, na)
	}

	sort.Strings(names)

	return names
}

// New returns a fresh streaming hasher.
func (a Algorithm) New() hash.Hash {
	return a.newFunc()
}

// Sum digests data.
func (a Algorithm) Sum(data []byte) []byte {
	ha := a.newFunc()
	_, _ = ha.Write(data) //nolint:errcheck // hash.Hash never fails

	return ha.Sum(nil)
}

// SumReader digests everything read from r in a single
// pass.
func (a Algorithm) SumReader(r io.Reader) ([]byte, error) {
	const errCtx = "digesting stream"

	ha := a.newFunc()

	if _, err := io.Copy(ha, r); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return ha.Sum(nil), nil
}

// Split cuts a combined hash into its per-input digests.
// An empty combined hash yields no digests.
func (a Algorithm) Split(combined []byte) ([][]byte, error) {
	const errCtx = "splitting combined hash"

	if len(combined)%a.Size != 0 {
		return nil, fmt.Errorf(
			"%s: %w: %d bytes is not a multiple of %d (%s)",
			errCtx, ErrBadLength, len(combined), a.Size, a.Name,
		)
	}

	parts := make([][]byte, 0, len(combined)/a.Size)
	for off := 0; off < len(combined); off += a.Size {
		parts = append(parts, combined[off:off+a.Size])
	}

	return parts, nil
}

// Hex is a convenience for hex-encoding a digest.
func Hex(d []byte) string {
	return hex.EncodeToString(d)
}
