package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/channelbriefapp/channelbrief-engine/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestKV creates a temporary Badger store for testing.
func setupTestKV(t *testing.T) store.KV {
	t.Helper()

	kv, err := store.OpenBadger(filepath.Join(t.TempDir(), "test-db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	return kv
}

func TestBadgerKV_SetGet(t *testing.T) {
	kv := setupTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "video:42:abc", []byte(`{"videoId":"abc"}`)))

	got, err := kv.Get(ctx, "video:42:abc")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"videoId":"abc"}`), got)
}

func TestBadgerKV_GetMissing(t *testing.T) {
	kv := setupTestKV(t)

	_, err := kv.Get(context.Background(), "video:42:nope")
	assert.True(t, store.IsNotFound(err))
}

func TestBadgerKV_Overwrite(t *testing.T) {
	kv := setupTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", []byte("one")))
	require.NoError(t, kv.Set(ctx, "k", []byte("two")))

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}

func TestBadgerKV_DeleteIdempotent(t *testing.T) {
	kv := setupTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", []byte("v")))
	require.NoError(t, kv.Delete(ctx, "k"))
	require.NoError(t, kv.Delete(ctx, "k")) // absent key is fine

	_, err := kv.Get(ctx, "k")
	assert.True(t, store.IsNotFound(err))
}

func TestBadgerKV_ListKeys(t *testing.T) {
	kv := setupTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "video:42:a", []byte("1")))
	require.NoError(t, kv.Set(ctx, "video:42:b", []byte("2")))
	require.NoError(t, kv.Set(ctx, "video:7:c", []byte("3")))
	require.NoError(t, kv.Set(ctx, "channel:42:x", []byte("4")))

	keys, err := kv.ListKeys(ctx, "video:42:")
	require.NoError(t, err)
	assert.Equal(t, []string{"video:42:a", "video:42:b"}, keys)

	keys, err = kv.ListKeys(ctx, "video:9:")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestBadgerKV_MultiDelete(t *testing.T) {
	kv := setupTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "a", []byte("1")))
	require.NoError(t, kv.Set(ctx, "b", []byte("2")))
	require.NoError(t, kv.Set(ctx, "c", []byte("3")))

	require.NoError(t, kv.MultiDelete(ctx, []string{"a", "c", "missing"}))

	_, err := kv.Get(ctx, "a")
	assert.True(t, store.IsNotFound(err))
	_, err = kv.Get(ctx, "c")
	assert.True(t, store.IsNotFound(err))

	got, err := kv.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
}

func TestBadgerKV_MultiDeleteEmpty(t *testing.T) {
	kv := setupTestKV(t)

	require.NoError(t, kv.MultiDelete(context.Background(), nil))
}

func TestBadgerKV_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reopen-db")
	ctx := context.Background()

	kv, err := store.OpenBadger(dir, nil)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "k", []byte("survives")))
	require.NoError(t, kv.Close())

	kv, err = store.OpenBadger(dir, nil)
	require.NoError(t, err)
	defer kv.Close()

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("survives"), got)
}
