// Package txn provides crash-safe multi-key writes over the single-key
// atomic store. A transaction stages its writes in memory, persists a log
// entry with pre-images and shape checksums before touching any data key,
// applies the writes, and deletes the entry on success. The absence of a log
// entry is the committed marker; an entry still present at startup means the
// process died mid-write and Recover has to put the affected keys back into
// a fully-old or fully-new shape.
package txn

import (
	"context"
	"encoding/hex"
	"encoding/json/v2"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/channelbriefapp/channelbrief-engine/internal/errors"
	"github.com/channelbriefapp/channelbrief-engine/internal/id"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
)

// Kind names the engine operation a transaction belongs to. Purely
// diagnostic: recovery treats every kind the same way.
type Kind string

// Operation kinds recorded in the transaction log.
const (
	KindSaveVideos    Kind = "save-videos"
	KindMergeVideos   Kind = "merge-videos"
	KindRemoveChannel Kind = "remove-channel-videos"
	KindRetention     Kind = "retention-sweep"
	KindSaveChannels  Kind = "save-channels"
	KindClearScope    Kind = "clear-scope"
	KindRepair        Kind = "repair"
)

// State is the lifecycle position of a transaction log entry. Committed
// entries are never stored (commit deletes the entry); the constant exists
// for the in-memory state machine and diagnostics.
type State string

// Transaction states.
const (
	StatePending    State = "pending"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolledback"
)

// StagedOp is one key mutation a transaction intends to perform.
// NewValue nil means delete. PreImage nil means the key was absent before
// the transaction. The checksums let recovery classify whatever it finds
// under the key after a crash.
type StagedOp struct {
	Key      string `json:"key"`
	NewValue []byte `json:"newValue,omitempty"`
	PreImage []byte `json:"preImage,omitempty"`
	PreSum   string `json:"preSum,omitempty"`
	PostSum  string `json:"postSum,omitempty"`
}

// LogEntry is the durable record of an in-flight transaction.
type LogEntry struct {
	TransactionID string     `json:"transactionId"`
	Kind          Kind       `json:"operationKind"`
	StartedAt     time.Time  `json:"startedAt"`
	State         State      `json:"state"`
	Ops           []StagedOp `json:"ops,omitempty"`
}

// Manager begins transactions and recovers the ones a previous process
// lifetime left behind.
type Manager struct {
	kv     store.KV
	logger *slog.Logger
}

// NewManager creates a transaction manager over the given store.
func NewManager(kv store.KV, logger *slog.Logger) *Manager {
	return &Manager{kv: kv, logger: logger}
}

// Tx is a single in-flight transaction. Not safe for concurrent use; the
// engine has one logical writer.
type Tx struct {
	mgr   *Manager
	entry LogEntry
	done  bool
}

// Begin allocates a transaction and persists its log entry in state pending.
// The entry carries no staged operations yet; those are added by Stage and
// flushed to the log by Commit before any data key is touched.
func (m *Manager) Begin(ctx context.Context, kind Kind) (*Tx, error) {
	txID, err := id.Generate(id.PrefixTransaction)
	if err != nil {
		return nil, errors.Internal("generate transaction id").WithCause(err)
	}

	tx := &Tx{
		mgr: m,
		entry: LogEntry{
			TransactionID: txID,
			Kind:          kind,
			StartedAt:     time.Now().UTC(),
			State:         StatePending,
		},
	}
	if err := m.writeEntry(ctx, tx.entry); err != nil {
		return nil, err
	}
	return tx, nil
}

// ID returns the transaction id.
func (t *Tx) ID() string {
	return t.entry.TransactionID
}

// Stage records an intent to set key to value. No data key is written until
// Commit.
func (t *Tx) Stage(key string, value []byte) {
	t.entry.Ops = append(t.entry.Ops, StagedOp{Key: key, NewValue: value, PostSum: checksum(value)})
}

// StageDelete records an intent to delete key.
func (t *Tx) StageDelete(key string) {
	t.entry.Ops = append(t.entry.Ops, StagedOp{Key: key})
}

// Commit captures pre-images, flushes the completed log entry, applies every
// staged write, and deletes the entry. A crash anywhere in the apply loop is
// repairable: the durable entry pins both the old and the new shape of every
// key.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return errors.Internal("transaction already finished")
	}
	t.done = true

	// Snapshot pre-images before mutating anything.
	for i := range t.entry.Ops {
		op := &t.entry.Ops[i]
		current, err := t.mgr.kv.Get(ctx, op.Key)
		if err != nil && !store.IsNotFound(err) {
			t.mgr.deleteEntry(ctx, t.entry.TransactionID)
			return err
		}
		if err == nil {
			op.PreImage = current
			op.PreSum = checksum(current)
		}
	}

	// Persist the full entry before the first data mutation.
	if err := t.mgr.writeEntry(ctx, t.entry); err != nil {
		t.mgr.deleteEntry(ctx, t.entry.TransactionID)
		return err
	}

	for i, op := range t.entry.Ops {
		var err error
		if op.NewValue == nil {
			err = t.mgr.kv.Delete(ctx, op.Key)
		} else {
			err = t.mgr.kv.Set(ctx, op.Key, op.NewValue)
		}
		if err != nil {
			// Apply failed mid-way: put the already-written keys back.
			t.mgr.restore(ctx, t.entry.Ops[:i])
			t.mgr.deleteEntry(ctx, t.entry.TransactionID)
			return err
		}
	}

	return t.mgr.deleteEntry(ctx, t.entry.TransactionID)
}

// Rollback discards the transaction without applying any staged write and
// deletes its log entry. Safe to call after Commit; it becomes a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.entry.State = StateRolledBack
	return t.mgr.deleteEntry(ctx, t.entry.TransactionID)
}

// Run executes fn inside a transaction: begin on entry, commit when fn
// returns nil, rollback on error or panic. This is how the repository wraps
// every multi-key write.
func (m *Manager) Run(ctx context.Context, kind Kind, fn func(tx *Tx) error) error {
	tx, err := m.Begin(ctx, kind)
	if err != nil {
		return err
	}

	defer func() {
		if !tx.done {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Pending returns the log entries still in state pending, oldest first.
// Outside of startup recovery this should be empty or contain only the
// currently running transaction.
func (m *Manager) Pending(ctx context.Context) ([]LogEntry, error) {
	keys, err := m.kv.ListKeys(ctx, store.TxLogPrefix())
	if err != nil {
		return nil, err
	}

	entries := make([]LogEntry, 0, len(keys))
	for _, key := range keys {
		raw, err := m.kv.Get(ctx, key)
		if err != nil {
			if store.IsNotFound(err) {
				continue // committed between list and get
			}
			return nil, err
		}
		var entry LogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			m.logger.Warn("undecodable transaction log entry", "key", key, "error", err)
			continue
		}
		if entry.State == StatePending {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// writeEntry persists a log entry under its transaction id.
func (m *Manager) writeEntry(ctx context.Context, entry LogEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return errors.Internalf("marshal transaction %s", entry.TransactionID).WithCause(err)
	}
	return m.kv.Set(ctx, store.TxLogKey(entry.TransactionID), raw)
}

// deleteEntry removes a log entry. Absence of the entry is the committed
// marker, so this is the commit's final durable step.
func (m *Manager) deleteEntry(ctx context.Context, txID string) error {
	return m.kv.Delete(ctx, store.TxLogKey(txID))
}

// restore writes pre-images back for the given ops, best effort.
func (m *Manager) restore(ctx context.Context, ops []StagedOp) {
	for _, op := range ops {
		var err error
		if op.PreImage == nil {
			err = m.kv.Delete(ctx, op.Key)
		} else {
			err = m.kv.Set(ctx, op.Key, op.PreImage)
		}
		if err != nil {
			m.logger.Error("failed to restore pre-image", "key", op.Key, "error", err)
		}
	}
}

// checksum returns the hex BLAKE2b-256 digest of a value. Nil (absent) has
// no checksum; callers encode absence as the empty string.
func checksum(value []byte) string {
	if value == nil {
		return ""
	}
	sum := blake2b.Sum256(value)
	return hex.EncodeToString(sum[:])
}
