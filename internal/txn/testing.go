package txn

import "time"

// TestOp describes one staged mutation for a fabricated log entry.
type TestOp struct {
	Key      string
	PreImage []byte // nil: key absent before
	NewValue []byte // nil: staged delete
}

// NewTestEntry builds a pending log entry with correct checksums, the shape
// Commit persists right before applying. Tests use it to simulate a process
// that died mid-commit without reaching into the entry encoding.
func NewTestEntry(txID string, kind Kind, ops []TestOp) LogEntry {
	entry := LogEntry{
		TransactionID: txID,
		Kind:          kind,
		StartedAt:     time.Now().UTC(),
		State:         StatePending,
	}
	for _, op := range ops {
		entry.Ops = append(entry.Ops, StagedOp{
			Key:      op.Key,
			NewValue: op.NewValue,
			PreImage: op.PreImage,
			PreSum:   checksum(op.PreImage),
			PostSum:  checksum(op.NewValue),
		})
	}
	return entry
}
