package detector_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/hashit/detector"
	"github.com/byte4ever/hashit/digester"
	"github.com/byte4ever/hashit/fetcher"
	"github.com/byte4ever/hashit/hashcalc"
	"github.com/byte4ever/hashit/store"
	"github.com/byte4ever/hashit/store/filestore"
	"github.com/byte4ever/hashit/store/memstore"
)

const outKey = "output"

func newLiteral(st store.Backend) *detector.Detector {
	return detector.New(st, hashcalc.NewLiteral(digester.Default()))
}

func newStoreBacked(st store.Backend) *detector.Detector {
	return detector.New(st, hashcalc.NewStore(st, digester.Default()))
}

// recorder counts write handles and can fail them.
type recorder struct {
	*memstore.Store
	writes   int
	writeErr error
}

func (r *recorder) OpenWrite(
	ctx context.Context,
	key string,
	mode store.Mode,
) (io.WriteCloser, error) {
	r.writes++

	if r.writeErr != nil {
		return nil, r.writeErr
	}

	return r.Store.OpenWrite(ctx, key, mode)
}

// cutOff passes only the first half of each write to the
// underlying handle and then fails, like a full disk.
type cutOff struct {
	store.Backend
	err error
}

func (c *cutOff) OpenWrite(
	ctx context.Context,
	key string,
	mode store.Mode,
) (io.WriteCloser, error) {
	wc, err := c.Backend.OpenWrite(ctx, key, mode)
	if err != nil {
		return nil, err
	}

	return &cutWriter{WriteCloser: wc, err: c.err}, nil
}

type cutWriter struct {
	io.WriteCloser
	err error
}

func (w *cutWriter) Write(p []byte) (int, error) {
	n, err := w.WriteCloser.Write(p[:len(p)/2])
	if err != nil {
		return n, err
	}

	return n, w.err
}

func (w *cutWriter) Abort() error {
	if ab, ok := w.WriteCloser.(store.Aborter); ok {
		return ab.Abort()
	}

	return w.Close()
}

func TestHasChanged_scenario_single_input(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	de := newLiteral(memstore.New())
	in := []string{"/this/is/new"}

	first, err := de.HasChanged(ctx, in, outKey)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := de.HasChanged(ctx, in, outKey)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestHasChanged_scenario_two_inputs_then_swapped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	de := newLiteral(memstore.New())
	in := []string{"/this/is/new", "/second/input"}

	first, err := de.HasChanged(ctx, in, outKey)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := de.HasChanged(ctx, in, outKey)
	require.NoError(t, err)
	assert.False(t, second)

	swapped, err := de.HasChanged(
		ctx, []string{"/second/input", "/this/is/new"}, outKey,
	)
	require.NoError(t, err)
	assert.True(t, swapped)
}

func TestHasChanged_empty_inputs_on_fresh_key(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memstore.New()
	de := newLiteral(st)

	got, err := de.HasChanged(ctx, nil, outKey)

	require.NoError(t, err)
	assert.False(t, got)

	stored, ok := st.Get(outKey)
	require.True(t, ok)
	assert.Empty(t, stored)
}

func TestHasChanged_empty_inputs_after_content(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memstore.New()
	de := newLiteral(st)

	_, err := de.HasChanged(ctx, []string{"a"}, outKey)
	require.NoError(t, err)

	got, err := de.HasChanged(ctx, []string{}, outKey)

	require.NoError(t, err)
	assert.True(t, got)

	stored, _ := st.Get(outKey)
	assert.Empty(t, stored)
}

func TestHasChanged_first_use_true_for_any_inputs(t *testing.T) {
	t.Parallel()

	for name, in := range map[string][]string{
		"single":   {"x"},
		"multiple": {"x", "y", "z"},
		"repeated": {"x", "x"},
		"blank":    {""},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := newLiteral(memstore.New()).HasChanged(
				context.Background(), in, outKey,
			)

			require.NoError(t, err)
			assert.True(t, got)
		})
	}
}

func TestHasChanged_idempotent_no_op(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := &recorder{Store: memstore.New()}
	de := newLiteral(rec)
	in := []string{"a", "b"}

	_, err := de.HasChanged(ctx, in, outKey)
	require.NoError(t, err)
	require.Equal(t, 1, rec.writes)

	for range 5 {
		got, err := de.HasChanged(ctx, in, outKey)

		require.NoError(t, err)
		assert.False(t, got)
	}

	assert.Equal(t, 1, rec.writes)
}

func TestHasChanged_sensitive_to_any_byte(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memstore.New()
	st.Put("in/a", []byte("alpha"))
	st.Put("in/b", []byte("bravo"))

	de := newStoreBacked(st)
	in := []string{"in/a", "in/b"}

	_, err := de.HasChanged(ctx, in, outKey)
	require.NoError(t, err)

	st.Put("in/b", []byte("bravO"))

	got, err := de.HasChanged(ctx, in, outKey)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = de.HasChanged(ctx, in, outKey)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestHasChanged_order_sensitive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memstore.New()
	st.Put("one", []byte("1"))
	st.Put("two", []byte("2"))

	de := newStoreBacked(st)

	_, err := de.HasChanged(ctx, []string{"one", "two"}, outKey)
	require.NoError(t, err)

	got, err := de.HasChanged(ctx, []string{"two", "one"}, outKey)

	require.NoError(t, err)
	assert.True(t, got)
}

func TestHasChanged_content_not_identity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memstore.New()
	st.Put("old-name", []byte("same"))
	st.Put("new-name", []byte("same"))

	de := newStoreBacked(st)

	_, err := de.HasChanged(ctx, []string{"old-name"}, outKey)
	require.NoError(t, err)

	got, err := de.HasChanged(ctx, []string{"new-name"}, outKey)

	require.NoError(t, err)
	assert.False(t, got)
}

func TestHasChanged_round_trip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memstore.New()
	alg := digester.Default()
	co := hashcalc.NewLiteral(alg)
	de := detector.New(st, co)
	in := []string{"p", "q"}

	want, err := co.CalcHash(ctx, in)
	require.NoError(t, err)

	changed, err := de.HasChanged(ctx, in, outKey)
	require.NoError(t, err)
	require.True(t, changed)

	got, err := store.ReadAll(ctx, st, outKey)

	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Len(t, got, 2*alg.Size)
}

func TestHasChanged_replaces_instead_of_appending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memstore.New()
	de := newLiteral(st)

	_, err := de.HasChanged(ctx, []string{"a"}, outKey)
	require.NoError(t, err)

	_, err = de.HasChanged(ctx, []string{"b"}, outKey)
	require.NoError(t, err)

	got, _ := st.Get(outKey)
	assert.Equal(t, digester.Default().Sum([]byte("b")), got)
}

func TestHasChanged_hash_failure_leaves_key_untouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memstore.New()
	de := newStoreBacked(st)

	_, err := de.HasChanged(ctx, []string{"missing"}, outKey)

	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "missing")

	_, ok := st.Get(outKey)
	assert.False(t, ok)
}

func TestHasChanged_computer_error_skips_fetch(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	fetched := false

	de := detector.NewWithFetcher(
		memstore.New(),
		hashcalc.ComputerFunc(
			func(context.Context, []string) ([]byte, error) {
				return nil, boom
			},
		),
		fetcher.FetcherFunc(
			func(context.Context, string) ([]byte, error) {
				fetched = true

				return []byte{}, nil
			},
		),
	)

	_, err := de.HasChanged(context.Background(), []string{"a"}, outKey)

	require.ErrorIs(t, err, boom)
	assert.False(t, fetched)
}

func TestHasChanged_write_error_keeps_kind(t *testing.T) {
	t.Parallel()

	rec := &recorder{
		Store:    memstore.New(),
		writeErr: store.MissingDir(outKey, errors.New("read-only")),
	}

	_, err := newLiteral(rec).HasChanged(
		context.Background(), []string{"a"}, outKey,
	)

	require.ErrorIs(t, err, store.ErrMissingDir)
	assert.Contains(t, err.Error(), "detecting change")
}

func TestHasChanged_fetch_error_propagates(t *testing.T) {
	t.Parallel()

	de := detector.NewWithFetcher(
		memstore.New(),
		hashcalc.NewLiteral(digester.Default()),
		fetcher.FetcherFunc(
			func(_ context.Context, key string) ([]byte, error) {
				return nil, store.IOError(key, errors.New("disk"))
			},
		),
	)

	_, err := de.HasChanged(context.Background(), []string{"a"}, outKey)

	require.ErrorIs(t, err, store.ErrIO)
}

func TestHasChanged_keys_are_independent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	de := newLiteral(memstore.New())
	in := []string{"shared"}

	a, err := de.HasChanged(ctx, in, "a")
	require.NoError(t, err)

	b, err := de.HasChanged(ctx, in, "b")
	require.NoError(t, err)

	assert.True(t, a)
	assert.True(t, b)
}

func TestHasChanged_filestore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("v1"), 0o600))

	st := filestore.New("")
	de := newStoreBacked(st)
	key := filepath.Join(dir, "out", "src.digest")
	in := []string{src}

	first, err := de.HasChanged(ctx, in, key)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := de.HasChanged(ctx, in, key)
	require.NoError(t, err)
	assert.False(t, second)

	onDisk, err := os.ReadFile(key)
	require.NoError(t, err)
	assert.Equal(t, digester.Default().Sum([]byte("v1")), onDisk)

	require.NoError(t, os.WriteFile(src, []byte("v2"), 0o600))

	third, err := de.HasChanged(ctx, in, key)
	require.NoError(t, err)
	assert.True(t, third)
}

func TestCheck_has_no_side_effects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := &recorder{Store: memstore.New()}
	de := newLiteral(rec)

	res, err := de.Check(ctx, []string{"a"}, outKey)

	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Empty(t, res.Cached)
	assert.Equal(t, digester.Default().Sum([]byte("a")), res.Hash)
	assert.Zero(t, rec.writes)
	assert.Empty(t, rec.Keys())
}

func TestCheck_after_HasChanged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	de := newLiteral(memstore.New())
	in := []string{"a"}

	_, err := de.HasChanged(ctx, in, outKey)
	require.NoError(t, err)

	res, err := de.Check(ctx, in, outKey)

	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, res.Hash, res.Cached)
}

func TestCheck_then_Record(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	de := newLiteral(memstore.New())
	in := []string{"a", "b"}

	res, err := de.Check(ctx, in, outKey)
	require.NoError(t, err)
	require.True(t, res.Changed)

	require.NoError(t, de.Record(ctx, outKey, res.Hash))

	got, err := de.HasChanged(ctx, in, outKey)

	require.NoError(t, err)
	assert.False(t, got)
}

func TestRecord_write_error(t *testing.T) {
	t.Parallel()

	rec := &recorder{
		Store:    memstore.New(),
		writeErr: store.IOError(outKey, errors.New("full")),
	}

	err := newLiteral(rec).Record(context.Background(), outKey, []byte{1})

	require.ErrorIs(t, err, store.ErrIO)
	assert.Contains(t, err.Error(), "recording hash")
}

func TestHasChanged_failed_write_keeps_prior_hash(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	key := filepath.Join(dir, "out.digest")
	alg := digester.Default()
	comp := hashcalc.NewLiteral(alg)

	first, err := detector.New(filestore.New(""), comp).HasChanged(
		ctx, []string{"a"}, key,
	)
	require.NoError(t, err)
	require.True(t, first)

	tooLarge := errors.New("file too large")
	broken := &cutOff{Backend: filestore.New(""), err: tooLarge}
	in := make([]string, 20)

	for i := range in {
		in[i] = filepath.Join("input", string(rune('a'+i)))
	}

	changed, err := detector.New(broken, comp).HasChanged(ctx, in, key)

	require.ErrorIs(t, err, store.ErrIO)
	require.ErrorIs(t, err, tooLarge)
	assert.False(t, changed)

	onDisk, err := os.ReadFile(key)
	require.NoError(t, err)
	assert.Equal(t, alg.Sum([]byte("a")), onDisk)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
