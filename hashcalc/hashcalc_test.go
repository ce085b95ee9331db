package hashcalc_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/hashit/digester"
	"github.com/byte4ever/hashit/hashcalc"
	"github.com/byte4ever/hashit/store"
	"github.com/byte4ever/hashit/store/filestore"
	"github.com/byte4ever/hashit/store/memstore"
)

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, pa := range parts {
		out = append(out, pa...)
	}

	return out
}

func TestStore_concatenates_in_order(t *testing.T) {
	t.Parallel()

	alg := digester.Default()
	st := memstore.New()
	st.Put("a", []byte("alpha"))
	st.Put("b", []byte("beta"))

	hc := hashcalc.NewStore(st, alg)

	got, err := hc.CalcHash(context.Background(), []string{"a", "b"})

	require.NoError(t, err)
	assert.Equal(
		t,
		concat(alg.Sum([]byte("alpha")), alg.Sum([]byte("beta"))),
		got,
	)
}

func TestStore_order_matters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memstore.New()
	st.Put("a", []byte("alpha"))
	st.Put("b", []byte("beta"))

	hc := hashcalc.NewStore(st, digester.Default())

	ab, err := hc.CalcHash(ctx, []string{"a", "b"})
	require.NoError(t, err)

	ba, err := hc.CalcHash(ctx, []string{"b", "a"})
	require.NoError(t, err)

	assert.NotEqual(t, ab, ba)
}

func TestStore_empty_inputs(t *testing.T) {
	t.Parallel()

	hc := hashcalc.NewStore(memstore.New(), digester.Default())

	got, err := hc.CalcHash(context.Background(), nil)

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_missing_input_names_it(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	present := filepath.Join(dir, "present.txt")
	missing := filepath.Join(dir, "missing.txt")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0o600))

	hc := hashcalc.NewStore(filestore.New(""), digester.Default())

	_, err := hc.CalcHash(
		context.Background(), []string{present, missing},
	)

	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), missing)
	assert.Contains(t, err.Error(), "calculating hash")
}

func TestStore_files_match_digest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pa := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(pa, []byte("hello"), 0o600))

	alg, err := digester.Lookup(digester.SHA256)
	require.NoError(t, err)

	got, err := hashcalc.NewStore(filestore.New(""), alg).CalcHash(
		context.Background(), []string{pa},
	)

	require.NoError(t, err)
	assert.Equal(
		t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		digester.Hex(got),
	)
}

func TestStore_canceled_context(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := memstore.New()
	st.Put("a", []byte("alpha"))

	_, err := hashcalc.NewStore(st, digester.Default()).CalcHash(
		ctx, []string{"a"},
	)

	require.ErrorIs(t, err, context.Canceled)
}

func TestLiteral_hashes_identifiers(t *testing.T) {
	t.Parallel()

	alg := digester.Default()

	got, err := hashcalc.NewLiteral(alg).CalcHash(
		context.Background(), []string{"/this/is/new"},
	)

	require.NoError(t, err)
	assert.Equal(t, alg.Sum([]byte("/this/is/new")), got)
}

func TestComputerFunc_delegates(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	var seen []string

	fn := hashcalc.ComputerFunc(
		func(_ context.Context, inputs []string) ([]byte, error) {
			seen = inputs

			return nil, boom
		},
	)

	_, err := fn.CalcHash(context.Background(), []string{"x"})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"x"}, seen)
}

func FuzzLiteral_length(f *testing.F) {
	f.Add("a", "b")
	f.Add("", "")

	f.Fuzz(func(t *testing.T, first string, second string) {
		alg := digester.Default()

		got, err := hashcalc.NewLiteral(alg).CalcHash(
			context.Background(), []string{first, second},
		)

		require.NoError(t, err)
		assert.Len(t, got, 2*alg.Size)
	})
}
