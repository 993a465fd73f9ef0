// Package cache owns the device-resident video and channel collections: the
// serialized working set, its merge semantics, retention, scope ownership,
// and the sticky channel-change flag. Reads degrade to empty on storage
// failure; writes go through the transaction manager and propagate errors so
// the orchestrator can keep its in-memory result and retry.
package cache

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"sync"
	"time"

	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	"github.com/channelbriefapp/channelbrief-engine/internal/metrics"
	"github.com/channelbriefapp/channelbrief-engine/internal/sse"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
	"github.com/channelbriefapp/channelbrief-engine/internal/txn"
)

// SearchIndexer keeps the summary search index in step with the working set.
// The repository calls it after every persisted mutation; index failures are
// logged, never propagated, because the index is derived data.
type SearchIndexer interface {
	IndexVideos(ctx context.Context, videos []domain.VideoRecord) error
	DeleteVideos(ctx context.Context, videoIDs []string) error
}

// NoopSearchIndexer is a no-op implementation for testing and for builds
// with search disabled.
type NoopSearchIndexer struct{}

// IndexVideos is a no-op.
func (NoopSearchIndexer) IndexVideos(context.Context, []domain.VideoRecord) error { return nil }

// DeleteVideos is a no-op.
func (NoopSearchIndexer) DeleteVideos(context.Context, []string) error { return nil }

// RetentionPolicy controls the CleanOldVideos sweep. Disabled keeps the
// complete summary history and turns the sweep into a no-op.
type RetentionPolicy struct {
	Enabled bool
	MaxAge  time.Duration
}

// Repository is the cache engine's data access layer.
type Repository struct {
	kv        store.KV
	txns      *txn.Manager
	logger    *slog.Logger
	emitter   store.EventEmitter
	indexer   SearchIndexer
	retention RetentionPolicy

	// now is swappable for retention and stats tests.
	now func() time.Time

	mu               sync.RWMutex
	validationStatus domain.ValidationStatus
}

// NewRepository creates a repository over the given store and transaction
// manager. The emitter is required; pass store.NewNoopEmitter() in tests.
func NewRepository(kv store.KV, txns *txn.Manager, retention RetentionPolicy, logger *slog.Logger, emitter store.EventEmitter) *Repository {
	return &Repository{
		kv:               kv,
		txns:             txns,
		logger:           logger,
		emitter:          emitter,
		indexer:          NoopSearchIndexer{},
		retention:        retention,
		now:              time.Now,
		validationStatus: domain.ValidationHealthy,
	}
}

// SetSearchIndexer sets the search indexer for keeping search in sync.
// Set after construction to avoid a circular dependency: the index is built
// over the repository's own records.
func (r *Repository) SetSearchIndexer(indexer SearchIndexer) {
	r.indexer = indexer
}

// Videos returns every cached video for the scope. It never fails: a cold or
// unreadable cache is served as empty, because empty is always a valid state.
// Individually corrupt records are skipped; the validator deals with them.
func (r *Repository) Videos(ctx context.Context, scope domain.Scope) []domain.VideoRecord {
	keys, err := r.kv.ListKeys(ctx, store.VideoScopePrefix(scope))
	if err != nil {
		r.logger.Error("failed to list cached videos, serving empty", "scope", scope, "error", err)
		return []domain.VideoRecord{}
	}

	videos := make([]domain.VideoRecord, 0, len(keys))
	for _, key := range keys {
		raw, err := r.kv.Get(ctx, key)
		if err != nil {
			if !store.IsNotFound(err) {
				r.logger.Warn("failed to read cached video", "key", key, "error", err)
			}
			continue
		}
		var v domain.VideoRecord
		if err := json.Unmarshal(raw, &v); err != nil {
			r.logger.Warn("skipping undecodable cached video", "key", key, "error", err)
			continue
		}
		videos = append(videos, v)
	}
	return videos
}

// SaveVideos atomically replaces the scope's working set with records.
// Records already present keep their key; anything not in records is removed.
func (r *Repository) SaveVideos(ctx context.Context, scope domain.Scope, records []domain.VideoRecord) error {
	existing, err := r.kv.ListKeys(ctx, store.VideoScopePrefix(scope))
	if err != nil {
		return err
	}

	keep := make(map[string]bool, len(records))
	err = r.txns.Run(ctx, txn.KindSaveVideos, func(tx *txn.Tx) error {
		for _, v := range records {
			key := store.VideoKey(scope, v.VideoID)
			keep[key] = true
			raw, err := json.Marshal(v)
			if err != nil {
				return err
			}
			tx.Stage(key, raw)
		}
		for _, key := range existing {
			if !keep[key] {
				tx.StageDelete(key)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.reindex(ctx, records)
	return nil
}

// MergeVideos folds incoming records into the scope's working set. Per
// videoId the incoming record wins unless the local one is more complete
// (local processed, incoming not), which guards against a stale
// summarization pipeline regressing a finished summary. Local records absent
// from incoming are always preserved; merges never delete. The merged set is
// persisted before it is returned.
func (r *Repository) MergeVideos(ctx context.Context, scope domain.Scope, incoming []domain.VideoRecord) ([]domain.VideoRecord, error) {
	local := r.Videos(ctx, scope)

	byID := make(map[string]domain.VideoRecord, len(local))
	for _, v := range local {
		byID[v.VideoID] = v
	}

	changed := make([]domain.VideoRecord, 0, len(incoming))
	for _, in := range incoming {
		if in.VideoID == "" {
			r.logger.Warn("dropping incoming video without id", "channel", in.ChannelID)
			continue
		}
		if cur, ok := byID[in.VideoID]; ok && cur.MoreCompleteThan(in) {
			continue
		}
		byID[in.VideoID] = in
		changed = append(changed, in)
	}

	if len(changed) > 0 {
		err := r.txns.Run(ctx, txn.KindMergeVideos, func(tx *txn.Tx) error {
			for _, v := range changed {
				raw, err := json.Marshal(v)
				if err != nil {
					return err
				}
				tx.Stage(store.VideoKey(scope, v.VideoID), raw)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		r.reindex(ctx, changed)
		metrics.VideosMergedTotal.Add(float64(len(changed)))
		r.emitter.Emit(sse.NewVideosMergedEvent(scope.String(), len(changed)))
	}

	merged := make([]domain.VideoRecord, 0, len(byID))
	for _, v := range byID {
		merged = append(merged, v)
	}
	domain.SortNewestFirst(merged)
	return merged, nil
}

// RemoveChannelVideos deletes every cached video belonging to the channel,
// returning how many were removed. Used on unsubscribe so stale summaries
// don't linger.
func (r *Repository) RemoveChannelVideos(ctx context.Context, scope domain.Scope, channelID string) (int, error) {
	var removedIDs []string
	for _, v := range r.Videos(ctx, scope) {
		if v.ChannelID == channelID {
			removedIDs = append(removedIDs, v.VideoID)
		}
	}
	if len(removedIDs) == 0 {
		return 0, nil
	}

	err := r.txns.Run(ctx, txn.KindRemoveChannel, func(tx *txn.Tx) error {
		for _, id := range removedIDs {
			tx.StageDelete(store.VideoKey(scope, id))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.deindex(ctx, removedIDs)
	r.emitter.Emit(sse.NewChannelRemovedEvent(scope.String(), channelID, len(removedIDs)))
	return len(removedIDs), nil
}

// CleanOldVideos removes records older than the retention horizon. When
// retention is disabled the product keeps the full summary history and this
// returns 0 without touching the store.
func (r *Repository) CleanOldVideos(ctx context.Context, scope domain.Scope) (int, error) {
	if !r.retention.Enabled {
		return 0, nil
	}

	horizon := r.now().Add(-r.retention.MaxAge)
	var expiredIDs []string
	for _, v := range r.Videos(ctx, scope) {
		if v.CreatedAt.Before(horizon) {
			expiredIDs = append(expiredIDs, v.VideoID)
		}
	}
	if len(expiredIDs) == 0 {
		return 0, nil
	}

	err := r.txns.Run(ctx, txn.KindRetention, func(tx *txn.Tx) error {
		for _, id := range expiredIDs {
			tx.StageDelete(store.VideoKey(scope, id))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.deindex(ctx, expiredIDs)
	metrics.RetentionRemovedTotal.Add(float64(len(expiredIDs)))
	r.logger.Info("retention sweep removed old videos", "scope", scope, "count", len(expiredIDs))
	return len(expiredIDs), nil
}

// ClearScope removes everything the scope owns: videos, channels, the sync
// timestamp, and the channel-change flag.
func (r *Repository) ClearScope(ctx context.Context, scope domain.Scope) error {
	var keys []string
	var videoIDs []string

	for _, prefix := range store.ScopePrefixes(scope) {
		listed, err := r.kv.ListKeys(ctx, prefix)
		if err != nil {
			return err
		}
		keys = append(keys, listed...)
	}
	for _, key := range keys {
		if _, id, ok := store.ParseVideoKey(key); ok {
			videoIDs = append(videoIDs, id)
		}
	}
	keys = append(keys, store.ScopeFlagKeys(scope)...)

	err := r.txns.Run(ctx, txn.KindClearScope, func(tx *txn.Tx) error {
		for _, key := range keys {
			tx.StageDelete(key)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.deindex(ctx, videoIDs)
	r.emitter.Emit(sse.NewCacheClearedEvent(scope.String()))
	r.logger.Info("cleared cache scope", "scope", scope, "keys", len(keys))
	return nil
}

// ClearAll wipes every cached record regardless of scope, including the
// owner marker. This is the factory-reset path; it bypasses the transaction
// log because there is no pre-image worth restoring after a full wipe.
// Pending transaction entries are left for Recover to settle.
func (r *Repository) ClearAll(ctx context.Context) error {
	var keys []string
	var videoIDs []string

	for _, prefix := range store.DataPrefixes() {
		listed, err := r.kv.ListKeys(ctx, prefix)
		if err != nil {
			return err
		}
		keys = append(keys, listed...)
	}
	for _, key := range keys {
		if _, id, ok := store.ParseVideoKey(key); ok {
			videoIDs = append(videoIDs, id)
		}
	}
	keys = append(keys, store.LastUserKey)

	if err := r.kv.MultiDelete(ctx, keys); err != nil {
		return err
	}

	r.deindex(ctx, videoIDs)
	r.emitter.Emit(sse.NewCacheClearedEvent(""))
	r.logger.Info("cleared entire cache", "keys", len(keys))
	return nil
}

// reindex pushes records into the search index, logging failures. The index
// is derived data; a failed update never fails the write that caused it.
func (r *Repository) reindex(ctx context.Context, videos []domain.VideoRecord) {
	if err := r.indexer.IndexVideos(ctx, videos); err != nil {
		r.logger.Warn("search index update failed", "count", len(videos), "error", err)
	}
}

// deindex removes records from the search index, logging failures.
func (r *Repository) deindex(ctx context.Context, videoIDs []string) {
	if err := r.indexer.DeleteVideos(ctx, videoIDs); err != nil {
		r.logger.Warn("search index delete failed", "count", len(videoIDs), "error", err)
	}
}
