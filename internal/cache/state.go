package cache

import (
	"context"
	"encoding/json/v2"
	"strconv"
	"time"

	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
)

// channelChangedMarker is the stored value of the sticky channel-change
// flag. Presence of the key is what matters; the value is fixed.
const channelChangedMarker = "1"

// LastSyncAt returns the scope's last successful sync time, or the zero
// time when the scope has never synced (or the value is unreadable, which
// downgrades the next sync to a full one, the safe direction).
func (r *Repository) LastSyncAt(ctx context.Context, scope domain.Scope) time.Time {
	raw, err := r.kv.Get(ctx, store.LastSyncKey(scope))
	if err != nil {
		if !store.IsNotFound(err) {
			r.logger.Warn("failed to read last sync timestamp", "scope", scope, "error", err)
		}
		return time.Time{}
	}
	millis, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || millis <= 0 {
		r.logger.Warn("unparsable last sync timestamp", "scope", scope, "value", string(raw))
		return time.Time{}
	}
	return time.UnixMilli(millis).UTC()
}

// SetLastSyncAt records the scope's last successful sync time.
func (r *Repository) SetLastSyncAt(ctx context.Context, scope domain.Scope, at time.Time) error {
	value := strconv.FormatInt(at.UnixMilli(), 10)
	return r.kv.Set(ctx, store.LastSyncKey(scope), []byte(value))
}

// CheckUserChanged compares the stored cache owner against scope. On a
// mismatch the previous owner's scope is cleared before the new owner is
// recorded, so one account's records can never appear under another. Returns
// true when a switch happened.
func (r *Repository) CheckUserChanged(ctx context.Context, scope domain.Scope) (bool, error) {
	raw, err := r.kv.Get(ctx, store.LastUserKey)
	if err != nil && !store.IsNotFound(err) {
		return false, err
	}

	previous := domain.Scope(raw)
	if previous == scope {
		return false, nil
	}

	if previous != "" {
		r.logger.Info("cache owner changed, clearing previous scope",
			"previous", previous, "current", scope)
		if err := r.ClearScope(ctx, previous); err != nil {
			return false, err
		}
	}
	if err := r.kv.Set(ctx, store.LastUserKey, []byte(scope.String())); err != nil {
		return false, err
	}
	return previous != "", nil
}

// LastOwner returns the scope that currently owns the cache, or the empty
// scope when no user has synced yet.
func (r *Repository) LastOwner(ctx context.Context) domain.Scope {
	raw, err := r.kv.Get(ctx, store.LastUserKey)
	if err != nil {
		if !store.IsNotFound(err) {
			r.logger.Warn("failed to read cache owner", "error", err)
		}
		return ""
	}
	return domain.Scope(raw)
}

// ChannelListChanged reports whether the sticky channel-change flag is set
// for the scope. A storage failure reads as unset; the sync merely runs
// incrementally and the durable flag still forces a full sync next time.
func (r *Repository) ChannelListChanged(ctx context.Context, scope domain.Scope) bool {
	_, err := r.kv.Get(ctx, store.ChannelChangedKey(scope))
	if err != nil {
		if !store.IsNotFound(err) {
			r.logger.Warn("failed to read channel-change flag", "scope", scope, "error", err)
		}
		return false
	}
	return true
}

// SignalChannelListChanged sets the sticky flag forcing the next sync to be
// a full sync. Set whenever a channel is added or removed: a full page is
// the only way to pick up a new channel's backlog.
func (r *Repository) SignalChannelListChanged(ctx context.Context, scope domain.Scope) error {
	return r.kv.Set(ctx, store.ChannelChangedKey(scope), []byte(channelChangedMarker))
}

// ClearChannelChangeSignal clears the sticky flag. Only called after a full
// sync completed; a failed full sync leaves the flag set so the next attempt
// is full again.
func (r *Repository) ClearChannelChangeSignal(ctx context.Context, scope domain.Scope) error {
	return r.kv.Delete(ctx, store.ChannelChangedKey(scope))
}

// SetValidationStatus records the verdict of the most recent integrity run.
// Held in memory only; stats are derived, never stored.
func (r *Repository) SetValidationStatus(status domain.ValidationStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validationStatus = status
}

// ValidationStatus returns the most recent integrity verdict.
func (r *Repository) ValidationStatus() domain.ValidationStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validationStatus
}

// Stats computes cache statistics for the scope from the live collection.
func (r *Repository) Stats(ctx context.Context, scope domain.Scope) domain.CacheStats {
	stats := domain.CacheStats{
		LastSyncTimestamp: r.LastSyncAt(ctx, scope),
		ValidationStatus:  r.ValidationStatus(),
	}

	keys, err := r.kv.ListKeys(ctx, store.VideoScopePrefix(scope))
	if err != nil {
		r.logger.Error("failed to list videos for stats", "scope", scope, "error", err)
		return stats
	}

	for _, key := range keys {
		raw, err := r.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		stats.TotalEntries++
		stats.ApproximateSizeBytes += int64(len(raw))

		var v domain.VideoRecord
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		if v.CreatedAt.IsZero() {
			continue
		}
		if stats.OldestEntryTimestamp.IsZero() || v.CreatedAt.Before(stats.OldestEntryTimestamp) {
			stats.OldestEntryTimestamp = v.CreatedAt
		}
		if v.CreatedAt.After(stats.NewestEntryTimestamp) {
			stats.NewestEntryTimestamp = v.CreatedAt
		}
	}
	return stats
}
