// Package storetest checks a store.Backend implementation against
// the behaviour change detection relies on.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/hashit/store"
)

// Factory returns a fresh, empty backend for one subtest.
type Factory func(t *testing.T) store.Backend

// Run exercises the Backend contract. Each subtest gets
// its own backend from newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	ctx := context.Background()

	t.Run("exists_false_for_unknown_key", func(t *testing.T) {
		bk := newBackend(t)

		ok, err := bk.Exists(ctx, "out/unknown.hash")

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("open_read_unknown_is_not_found", func(t *testing.T) {
		bk := newBackend(t)

		_, err := bk.OpenRead(ctx, "out/unknown.hash")

		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("create_makes_empty_entry", func(t *testing.T) {
		bk := newBackend(t)

		require.NoError(t, bk.Create(ctx, "out/a.hash"))

		ok, err := bk.Exists(ctx, "out/a.hash")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := store.ReadAll(ctx, bk, "out/a.hash")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("create_is_idempotent", func(t *testing.T) {
		bk := newBackend(t)

		require.NoError(t, bk.Create(ctx, "out/a.hash"))
		require.NoError(t, bk.Create(ctx, "out/a.hash"))

		got, err := store.ReadAll(ctx, bk, "out/a.hash")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("truncate_write_roundtrip", func(t *testing.T) {
		bk := newBackend(t)

		require.NoError(t, store.WriteAll(
			ctx, bk, "out/a.hash", store.Truncate,
			[]byte("first"),
		))

		got, err := store.ReadAll(ctx, bk, "out/a.hash")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), got)
	})

	t.Run("truncate_replaces_content", func(t *testing.T) {
		bk := newBackend(t)

		require.NoError(t, store.WriteAll(
			ctx, bk, "out/a.hash", store.Truncate,
			[]byte("a much longer first value"),
		))
		require.NoError(t, store.WriteAll(
			ctx, bk, "out/a.hash", store.Truncate,
			[]byte("second"),
		))

		got, err := store.ReadAll(ctx, bk, "out/a.hash")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got)
	})

	t.Run("append_preserves_content", func(t *testing.T) {
		bk := newBackend(t)

		require.NoError(t, store.WriteAll(
			ctx, bk, "out/a.hash", store.Truncate,
			[]byte("head-"),
		))
		require.NoError(t, store.WriteAll(
			ctx, bk, "out/a.hash", store.Append,
			[]byte("tail"),
		))

		got, err := store.ReadAll(ctx, bk, "out/a.hash")
		require.NoError(t, err)
		assert.Equal(t, []byte("head-tail"), got)
	})

	t.Run("append_creates_absent_entry", func(t *testing.T) {
		bk := newBackend(t)

		require.NoError(t, store.WriteAll(
			ctx, bk, "deep/nested/a.hash", store.Append,
			[]byte("x"),
		))

		got, err := store.ReadAll(ctx, bk, "deep/nested/a.hash")
		require.NoError(t, err)
		assert.Equal(t, []byte("x"), got)
	})

	t.Run("binary_content_survives", func(t *testing.T) {
		bk := newBackend(t)

		data := []byte{0x00, 0xff, 0x10, '\n', 0x80}

		require.NoError(t, store.WriteAll(
			ctx, bk, "out/bin.hash", store.Truncate, data,
		))

		got, err := store.ReadAll(ctx, bk, "out/bin.hash")
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("keys_are_independent", func(t *testing.T) {
		bk := newBackend(t)

		require.NoError(t, store.WriteAll(
			ctx, bk, "out/a.hash", store.Truncate, []byte("a"),
		))
		require.NoError(t, store.WriteAll(
			ctx, bk, "out/b.hash", store.Truncate, []byte("b"),
		))
		require.NoError(t, bk.Create(ctx, "out/c.hash"))

		got, err := store.ReadAll(ctx, bk, "out/a.hash")
		require.NoError(t, err)
		assert.Equal(t, []byte("a"), got)

		got, err = store.ReadAll(ctx, bk, "out/b.hash")
		require.NoError(t, err)
		assert.Equal(t, []byte("b"), got)
	})
}
