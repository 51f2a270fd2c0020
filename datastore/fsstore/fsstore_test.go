package fsstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opforge/memo-framework/datastore"
	"github.com/opforge/memo-framework/datastore/fsstore"
	"github.com/opforge/memo-framework/operations"
	"github.com/opforge/memo-framework/operations/optest"
)

func newTestStore(t *testing.T) *fsstore.Store {
	t.Helper()

	store, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	return store
}

func Test_Store_RoundTrip(t *testing.T) {
	t.Parallel()

	reg := operations.NewRegistry()
	numv, _ := optest.Value(t, reg, "number")
	ctx := t.Context()

	store := newTestStore(t)
	op := numv.MustNew(7)

	require.NoError(t, store.Put(ctx, op, map[string]any{"mean": 1.5}))

	ok, err := store.Contains(ctx, op)
	require.NoError(t, err)
	require.True(t, ok)

	// A structurally equal operation built in this or any other process maps
	// to the same file.
	got, err := store.Get(ctx, numv.MustNew(7))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"mean": 1.5}, got)
}

func Test_Store_FileLayout(t *testing.T) {
	t.Parallel()

	reg := operations.NewRegistry()
	numv, _ := optest.Value(t, reg, "number")
	ctx := t.Context()

	store := newTestStore(t)
	op := numv.MustNew(7)
	require.NoError(t, store.Put(ctx, op, 42))

	_, err := os.Stat(filepath.Join(store.Root(), op.Digest()+".json"))
	require.NoError(t, err)

	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}

func Test_Store_GetAbsent(t *testing.T) {
	t.Parallel()

	reg := operations.NewRegistry()
	numv, _ := optest.Value(t, reg, "number")

	store := newTestStore(t)
	_, err := store.Get(t.Context(), numv.MustNew(7))
	require.ErrorIs(t, err, datastore.ErrKeyNotFound)
}

func Test_Store_Overwrite(t *testing.T) {
	t.Parallel()

	reg := operations.NewRegistry()
	numv, _ := optest.Value(t, reg, "number")
	ctx := t.Context()

	store := newTestStore(t)
	op := numv.MustNew(7)

	require.NoError(t, store.Put(ctx, op, "first"))
	require.NoError(t, store.Put(ctx, op, "second"))

	got, err := store.Get(ctx, op)
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func Test_Store_DeleteAndClear(t *testing.T) {
	t.Parallel()

	reg := operations.NewRegistry()
	numv, _ := optest.Value(t, reg, "number")
	ctx := t.Context()

	store := newTestStore(t)
	op := numv.MustNew(7)
	require.NoError(t, store.Put(ctx, op, 42))

	require.NoError(t, store.Delete(ctx, op))
	require.NoError(t, store.Delete(ctx, op), "deleting an absent key is not an error")

	ok, err := store.Contains(ctx, op)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Put(ctx, numv.MustNew(1), 1))
	require.NoError(t, store.Put(ctx, numv.MustNew(2), 2))
	require.NoError(t, store.Clear(ctx))

	for range store.Keys(ctx) {
		t.Fatal("expected no keys after clear")
	}
}

func Test_Store_Keys(t *testing.T) {
	t.Parallel()

	reg := operations.NewRegistry()
	numv, _ := optest.Value(t, reg, "number")
	ctx := t.Context()

	store := newTestStore(t)
	one, two := numv.MustNew(1), numv.MustNew(2)
	require.NoError(t, store.Put(ctx, one, 1))
	require.NoError(t, store.Put(ctx, two, 2))

	var keys []string
	for k, err := range store.Keys(ctx) {
		require.NoError(t, err)
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{one.Key(), two.Key()}, keys)

	// Stored keys decode back into operations.
	op, err := operations.DecodeJSONIn(reg, []byte(keys[0]))
	require.NoError(t, err)
	assert.Equal(t, "number", op.Tag())
}

func Test_Store_WithCache(t *testing.T) {
	t.Parallel()

	reg := operations.NewRegistry()
	numv, calls := optest.Value(t, reg, "number")
	ctx := t.Context()

	dir := t.TempDir()

	// Two stores over the same directory model two processes sharing a cache.
	first, err := fsstore.New(dir)
	require.NoError(t, err)
	_, err = datastore.NewCache(first).Execute(ctx, numv.MustNew(7))
	require.NoError(t, err)

	second, err := fsstore.New(dir)
	require.NoError(t, err)
	got, err := datastore.NewCache(second).Execute(ctx, numv.MustNew(7))
	require.NoError(t, err)

	assert.InDelta(t, 7.0, got, 0, "json backends return numbers as float64")
	assert.Equal(t, 1, calls.Count())
}
