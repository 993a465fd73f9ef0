package txn

import (
	"context"
	"encoding/json/v2"

	"github.com/channelbriefapp/channelbrief-engine/internal/metrics"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
)

// RecoveryReport summarizes what Recover did with the log entries a previous
// process lifetime left behind.
type RecoveryReport struct {
	EntriesRecovered int
	KeysKeptOld      int
	KeysKeptNew      int
	KeysDiscarded    int
}

// Recover handles transactions interrupted by a process death. It must run
// once at startup, before the repository serves its first read.
//
// For every pending entry, each staged key is classified by checksum:
// matching the pre-image shape means the write never reached it, matching
// the post shape means the write completed for that key; both are valid
// states and are left alone. Anything else is a half-written value and is
// discarded so the next full sync repopulates it. The stale entry is removed
// afterwards, which re-establishes the no-pending-entries invariant.
func (m *Manager) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	keys, err := m.kv.ListKeys(ctx, store.TxLogPrefix())
	if err != nil {
		return report, err
	}
	if len(keys) == 0 {
		return report, nil
	}

	m.logger.Warn("recovering interrupted transactions", "count", len(keys))

	for _, key := range keys {
		raw, err := m.kv.Get(ctx, key)
		if err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return report, err
		}

		var entry LogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			// The log entry itself is unreadable. Without staged ops there
			// is nothing to inspect; drop the entry and let validation
			// catch any stray damage.
			m.logger.Error("discarding undecodable transaction log entry", "key", key, "error", err)
			if err := m.kv.Delete(ctx, key); err != nil {
				return report, err
			}
			report.EntriesRecovered++
			continue
		}

		if err := m.recoverEntry(ctx, entry, &report); err != nil {
			return report, err
		}
		if err := m.kv.Delete(ctx, key); err != nil {
			return report, err
		}
		report.EntriesRecovered++
	}

	metrics.RecoveredKeysTotal.WithLabelValues(metrics.VerdictKeptOld).Add(float64(report.KeysKeptOld))
	metrics.RecoveredKeysTotal.WithLabelValues(metrics.VerdictKeptNew).Add(float64(report.KeysKeptNew))
	metrics.RecoveredKeysTotal.WithLabelValues(metrics.VerdictDiscarded).Add(float64(report.KeysDiscarded))

	m.logger.Info("transaction recovery complete",
		"entries", report.EntriesRecovered,
		"keptOld", report.KeysKeptOld,
		"keptNew", report.KeysKeptNew,
		"discarded", report.KeysDiscarded)

	return report, nil
}

// recoverEntry classifies every key the entry staged. An entry persisted by
// Begin but never completed by Commit carries no ops; nothing was mutated.
func (m *Manager) recoverEntry(ctx context.Context, entry LogEntry, report *RecoveryReport) error {
	for _, op := range entry.Ops {
		current, err := m.kv.Get(ctx, op.Key)
		switch {
		case store.IsNotFound(err):
			// Absent is the pre state when there was no pre-image, and the
			// post state for a staged delete.
			if op.PreImage == nil {
				report.KeysKeptOld++
			} else if op.NewValue == nil {
				report.KeysKeptNew++
			} else {
				// Key vanished mid-write; nothing to discard.
				m.logger.Warn("staged key missing after interruption",
					"tx", entry.TransactionID, "key", op.Key)
				report.KeysDiscarded++
			}
		case err != nil:
			return err
		default:
			switch checksum(current) {
			case op.PreSum:
				report.KeysKeptOld++
			case op.PostSum:
				report.KeysKeptNew++
			default:
				m.logger.Warn("discarding half-written value",
					"tx", entry.TransactionID, "kind", entry.Kind, "key", op.Key)
				if err := m.kv.Delete(ctx, op.Key); err != nil {
					return err
				}
				report.KeysDiscarded++
			}
		}
	}
	return nil
}
