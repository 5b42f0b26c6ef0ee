package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "a/b/one.bin", []byte("hello")))

	blob, err := store.Open(ctx, "a/b/one.bin")
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, int64(5), blob.Size())

	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	buf := make([]byte, 3)
	n, err := blob.ReadAt(ctx, buf, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("llo"), buf)
}

func TestMemoryStoreCreateVisibleOnClose(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	w, err := store.Create(ctx, "staged.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	// Not visible until Close.
	_, err = store.Open(ctx, "staged.bin")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, w.Close())
	blob, err := store.Open(ctx, "staged.bin")
	require.NoError(t, err)
	blob.Close()
}

func TestMemoryStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "x/1", nil))
	require.NoError(t, store.Put(ctx, "x/2", nil))
	require.NoError(t, store.Put(ctx, "y/1", nil))

	names, err := store.List(ctx, "x/")
	require.NoError(t, err)
	assert.Equal(t, []string{"x/1", "x/2"}, names)

	require.NoError(t, store.Delete(ctx, "x/1"))
	require.NoError(t, store.Delete(ctx, "x/1")) // idempotent

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"x/2", "y/1"}, names)
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	src := []byte("immutable")
	require.NoError(t, store.Put(ctx, "blob", src))
	src[0] = 'X' // caller mutation must not leak in

	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	defer blob.Close()

	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("immutable"), data)
}
