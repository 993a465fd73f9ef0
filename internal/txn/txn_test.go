package txn_test

import (
	"context"
	"encoding/json/v2"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/channelbriefapp/channelbrief-engine/internal/store"
	"github.com/channelbriefapp/channelbrief-engine/internal/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupManager(t *testing.T) (*txn.Manager, store.KV) {
	t.Helper()

	kv, err := store.OpenBadger(filepath.Join(t.TempDir(), "txn-db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	return txn.NewManager(kv, slog.New(slog.DiscardHandler)), kv
}

func TestCommitAppliesStagedWrites(t *testing.T) {
	mgr, kv := setupManager(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "video:42:old", []byte("stale")))

	tx, err := mgr.Begin(ctx, txn.KindSaveVideos)
	require.NoError(t, err)
	tx.Stage("video:42:a", []byte("one"))
	tx.Stage("video:42:b", []byte("two"))
	tx.StageDelete("video:42:old")
	require.NoError(t, tx.Commit(ctx))

	got, err := kv.Get(ctx, "video:42:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	got, err = kv.Get(ctx, "video:42:b")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	_, err = kv.Get(ctx, "video:42:old")
	assert.True(t, store.IsNotFound(err))

	// Commit deleted the log entry: absence is the committed marker.
	pending, err := mgr.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRollbackLeavesStoreUntouched(t *testing.T) {
	mgr, kv := setupManager(t)
	ctx := context.Background()

	tx, err := mgr.Begin(ctx, txn.KindSaveVideos)
	require.NoError(t, err)
	tx.Stage("video:42:a", []byte("never written"))
	require.NoError(t, tx.Rollback(ctx))

	_, err = kv.Get(ctx, "video:42:a")
	assert.True(t, store.IsNotFound(err))

	pending, err := mgr.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunCommitsOnNilError(t *testing.T) {
	mgr, kv := setupManager(t)
	ctx := context.Background()

	err := mgr.Run(ctx, txn.KindMergeVideos, func(tx *txn.Tx) error {
		tx.Stage("k", []byte("v"))
		return nil
	})
	require.NoError(t, err)

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestRunRollsBackOnError(t *testing.T) {
	mgr, kv := setupManager(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := mgr.Run(ctx, txn.KindMergeVideos, func(tx *txn.Tx) error {
		tx.Stage("k", []byte("v"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = kv.Get(ctx, "k")
	assert.True(t, store.IsNotFound(err))

	pending, err := mgr.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPendingListsInFlightEntry(t *testing.T) {
	mgr, _ := setupManager(t)
	ctx := context.Background()

	tx, err := mgr.Begin(ctx, txn.KindRetention)
	require.NoError(t, err)

	pending, err := mgr.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, tx.ID(), pending[0].TransactionID)
	assert.Equal(t, txn.KindRetention, pending[0].Kind)
	assert.Equal(t, txn.StatePending, pending[0].State)

	require.NoError(t, tx.Rollback(ctx))
}

// plantEntry simulates a process that died mid-commit by writing a pending
// log entry directly, the way Commit would have before applying.
func plantEntry(t *testing.T, kv store.KV, entry txn.LogEntry) {
	t.Helper()
	raw, err := json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), store.TxLogKey(entry.TransactionID), raw))
}

func TestRecoverKeepsFullyOldValue(t *testing.T) {
	mgr, kv := setupManager(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "video:42:v1", []byte("old shape")))

	entry := txn.NewTestEntry("txn-dead1", txn.KindSaveVideos, []txn.TestOp{
		{Key: "video:42:v1", PreImage: []byte("old shape"), NewValue: []byte("new shape")},
	})
	plantEntry(t, kv, entry)

	report, err := mgr.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.EntriesRecovered)
	assert.Equal(t, 1, report.KeysKeptOld)
	assert.Equal(t, 0, report.KeysDiscarded)

	got, err := kv.Get(ctx, "video:42:v1")
	require.NoError(t, err)
	assert.Equal(t, []byte("old shape"), got)
}

func TestRecoverKeepsFullyNewValue(t *testing.T) {
	mgr, kv := setupManager(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "video:42:v1", []byte("new shape")))

	entry := txn.NewTestEntry("txn-dead2", txn.KindSaveVideos, []txn.TestOp{
		{Key: "video:42:v1", PreImage: []byte("old shape"), NewValue: []byte("new shape")},
	})
	plantEntry(t, kv, entry)

	report, err := mgr.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.KeysKeptNew)

	got, err := kv.Get(ctx, "video:42:v1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new shape"), got)
}

func TestRecoverDiscardsHalfWrittenValue(t *testing.T) {
	mgr, kv := setupManager(t)
	ctx := context.Background()

	// Neither the pre nor the post shape: a torn write.
	require.NoError(t, kv.Set(ctx, "video:42:v1", []byte("garbled")))

	entry := txn.NewTestEntry("txn-dead3", txn.KindMergeVideos, []txn.TestOp{
		{Key: "video:42:v1", PreImage: []byte("old shape"), NewValue: []byte("new shape")},
	})
	plantEntry(t, kv, entry)

	report, err := mgr.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.KeysDiscarded)

	// The torn value is gone; the next full sync repopulates it.
	_, err = kv.Get(ctx, "video:42:v1")
	assert.True(t, store.IsNotFound(err))

	pending, err := mgr.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRecoverEntryWithoutOps(t *testing.T) {
	mgr, kv := setupManager(t)
	ctx := context.Background()

	// Crash between Begin and Commit: entry exists, nothing was staged.
	entry := txn.LogEntry{
		TransactionID: "txn-dead4",
		Kind:          txn.KindClearScope,
		StartedAt:     time.Now().UTC(),
		State:         txn.StatePending,
	}
	plantEntry(t, kv, entry)

	report, err := mgr.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.EntriesRecovered)
	assert.Equal(t, 0, report.KeysDiscarded)
}

func TestRecoverNothingPending(t *testing.T) {
	mgr, _ := setupManager(t)

	report, err := mgr.Recover(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.EntriesRecovered)
}
