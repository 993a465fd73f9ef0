package integrity

import (
	"context"
	"encoding/json/v2"
	"log/slog"

	"github.com/channelbriefapp/channelbrief-engine/internal/cache"
	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	"github.com/channelbriefapp/channelbrief-engine/internal/sse"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
)

// Recovery applies repairs for the issues the validator reports.
type Recovery struct {
	kv        store.KV
	validator *Validator
	repo      *cache.Repository
	emitter   store.EventEmitter
	logger    *slog.Logger

	// resetFraction is the share of critically broken entries above which
	// the whole scope is cleared instead of repaired record by record.
	resetFraction float64
}

// NewRecovery creates a recovery engine. resetFraction outside (0,1] falls
// back to clearing only when every entry is broken.
func NewRecovery(kv store.KV, validator *Validator, repo *cache.Repository, resetFraction float64, logger *slog.Logger, emitter store.EventEmitter) *Recovery {
	if resetFraction <= 0 || resetFraction > 1 {
		resetFraction = 1
	}
	return &Recovery{
		kv:            kv,
		validator:     validator,
		repo:          repo,
		emitter:       emitter,
		logger:        logger,
		resetFraction: resetFraction,
	}
}

// ValidateAndRepair scans the scope and repairs what it can.
//
// Critical issues: the offending record is deleted, keeping the rest of the
// cache usable. When more than resetFraction of the checked entries are
// critically broken the per-record approach is pointless; the scope is
// cleared wholesale and the force-full-sync flag is set so the next sync
// repopulates everything.
//
// Summary-invariant warnings: processed is cleared back to false so the
// next sync refetches the authoritative value instead of displaying an
// inconsistent record.
//
// Returns false when any critical issue could not be repaired (a storage
// write failed); callers surface a manual-reset affordance in that case.
func (r *Recovery) ValidateAndRepair(ctx context.Context, scope domain.Scope) bool {
	report := r.validator.ValidateCache(ctx, scope)

	criticalKeys := report.CriticalKeys()
	if report.Metrics.EntriesChecked > 0 &&
		float64(len(criticalKeys))/float64(report.Metrics.EntriesChecked) > r.resetFraction {
		return r.fullReset(ctx, scope, len(criticalKeys), report.Metrics.EntriesChecked)
	}

	deleted, repaired := 0, 0
	success := true
	for _, key := range criticalKeys {
		if err := r.kv.Delete(ctx, key); err != nil {
			r.logger.Error("failed to delete corrupt record", "key", key, "error", err)
			success = false
			continue
		}
		deleted++
	}

	for _, issue := range report.Issues {
		if issue.Kind != KindSummaryInvariant {
			continue
		}
		if err := r.clearProcessed(ctx, issue.AffectedKey); err != nil {
			r.logger.Warn("failed to downgrade processed flag", "key", issue.AffectedKey, "error", err)
			continue
		}
		repaired++
	}

	remaining := len(criticalKeys) - deleted
	r.repo.SetValidationStatus(statusFor(report, remaining))
	if deleted > 0 || repaired > 0 || !success {
		r.emitter.Emit(sse.NewRepairCompletedEvent(scope.String(), deleted, repaired, success))
	}
	r.logger.Info("cache repair complete",
		"scope", scope, "deleted", deleted, "repaired", repaired, "success", success)
	return success
}

// fullReset clears the scope and forces the next sync to be full.
func (r *Recovery) fullReset(ctx context.Context, scope domain.Scope, broken, checked int) bool {
	r.logger.Warn("cache damage exceeds reset threshold, clearing scope",
		"scope", scope, "broken", broken, "checked", checked)

	if err := r.repo.ClearScope(ctx, scope); err != nil {
		r.logger.Error("failed to clear corrupted scope", "scope", scope, "error", err)
		r.repo.SetValidationStatus(domain.ValidationCorrupted)
		return false
	}
	if err := r.repo.SignalChannelListChanged(ctx, scope); err != nil {
		r.logger.Warn("failed to set force-full flag after reset", "scope", scope, "error", err)
	}

	r.repo.SetValidationStatus(domain.ValidationHealthy)
	r.emitter.Emit(sse.NewRepairCompletedEvent(scope.String(), checked, 0, true))
	return true
}

// clearProcessed rewrites a record with processed set back to false so the
// next sync refetches the summary.
func (r *Recovery) clearProcessed(ctx context.Context, key string) error {
	raw, err := r.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	var rec domain.VideoRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return err
	}

	rec.Processed = false
	rec.Status = domain.StatusPending

	updated, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, key, updated)
}

// statusFor derives the validation status surfaced through cache stats.
func statusFor(report Report, remainingCritical int) domain.ValidationStatus {
	if remainingCritical > 0 {
		return domain.ValidationCorrupted
	}
	for _, issue := range report.Issues {
		if issue.Severity == SeverityWarning {
			return domain.ValidationWarning
		}
	}
	return domain.ValidationHealthy
}
