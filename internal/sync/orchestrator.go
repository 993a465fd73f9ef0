// Package sync coordinates one refresh of the cache against the ChannelBrief
// backend: decide full vs incremental, fetch, merge, persist, retention. A
// sync that cannot reach the backend degrades to the cached data instead of
// failing, as long as there is cached data to serve.
package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/channelbriefapp/channelbrief-engine/internal/cache"
	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	"github.com/channelbriefapp/channelbrief-engine/internal/metrics"
	"github.com/channelbriefapp/channelbrief-engine/internal/normalize"
	"github.com/channelbriefapp/channelbrief-engine/internal/remote"
	"github.com/channelbriefapp/channelbrief-engine/internal/sse"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
)

// DefaultPageSize is how many summaries a full sync requests. The backend
// caps pages at the same size.
const DefaultPageSize = 50

// Thumbnailer computes a BlurHash placeholder for a channel thumbnail URL.
type Thumbnailer interface {
	BlurHash(ctx context.Context, imageURL string) (string, error)
}

// Result is what a sync call hands back to the UI.
type Result struct {
	Videos     []domain.VideoRecord `json:"videos"`
	FromCache  bool                 `json:"fromCache"`
	LastSync   time.Time            `json:"lastSync"`
	NextCursor string               `json:"nextCursor,omitempty"`
	Stats      domain.CacheStats    `json:"cacheStats"`
}

// Orchestrator runs sync calls. Concurrent calls for the same scope are
// coalesced onto one in-flight run; the cache assumes a single logical
// writer and a second parallel fetch would double-merge.
type Orchestrator struct {
	repo     *cache.Repository
	api      remote.API
	emitter  store.EventEmitter
	logger   *slog.Logger
	thumbs   Thumbnailer
	pageSize int
	now      func() time.Time
	group    singleflight.Group
}

// New creates an Orchestrator. A pageSize <= 0 falls back to DefaultPageSize.
func New(repo *cache.Repository, api remote.API, pageSize int, emitter store.EventEmitter, logger *slog.Logger) *Orchestrator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if emitter == nil {
		emitter = store.NewNoopEmitter()
	}
	return &Orchestrator{
		repo:     repo,
		api:      api,
		emitter:  emitter,
		logger:   logger.With("component", "sync"),
		pageSize: pageSize,
		now:      time.Now,
	}
}

// SetThumbnailer installs the BlurHash generator used when channels are
// refreshed. Without one, channel records keep whatever placeholder the
// cache already has.
func (o *Orchestrator) SetThumbnailer(t Thumbnailer) {
	o.thumbs = t
}

// Sync refreshes the cache for userID and returns the post-sync view.
// An empty userID returns cached data for the current owner without
// touching the network. Concurrent calls for the same user await the
// in-flight run instead of starting their own.
func (o *Orchestrator) Sync(ctx context.Context, userID string) (*Result, error) {
	if userID == "" {
		return o.cachedOnly(ctx), nil
	}

	scope, err := domain.ParseScope(userID)
	if err != nil {
		return nil, err
	}

	v, err, _ := o.group.Do(scope.String(), func() (any, error) {
		return o.run(ctx, scope)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// run is one non-coalesced sync pass.
func (o *Orchestrator) run(ctx context.Context, scope domain.Scope) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.SyncDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	log := o.logger.With("sync_id", uuid.NewString(), "scope", scope)
	o.emitter.Emit(sse.NewSyncStartedEvent(scope.String()))

	if switched, err := o.repo.CheckUserChanged(ctx, scope); err != nil {
		return nil, err
	} else if switched {
		log.Info("cache reseeded for new owner")
	}

	// Loaded up front: this is what the caller gets if the network is down.
	cached := o.repo.Videos(ctx, scope)

	lastSync := o.repo.LastSyncAt(ctx, scope)
	full := o.repo.ChannelListChanged(ctx, scope) || lastSync.IsZero()

	strategy := metrics.SyncStrategyIncremental
	if full {
		strategy = metrics.SyncStrategyFull
	}

	query := remote.SummariesQuery{Limit: o.pageSize, Paginated: true}
	if !full {
		query.Since = lastSync
	}
	log.Debug("fetching summaries", "full", full, "query", query.String())

	page, err := o.api.FetchVideoSummaries(ctx, query)
	if err != nil {
		return o.fallback(ctx, scope, cached, strategy, log, err)
	}

	videos := cached
	persist := full || len(page.Videos) > 0
	if persist {
		merged, err := o.repo.MergeVideos(ctx, scope, prepare(page.Videos))
		if err != nil {
			// The channel-change signal, if set, stays set so the next
			// attempt retries a full sync.
			return o.fallback(ctx, scope, cached, strategy, log, err)
		}
		videos = merged

		if full {
			if err := o.repo.ClearChannelChangeSignal(ctx, scope); err != nil {
				log.Warn("failed to clear channel change signal", "error", err)
			}
			o.refreshChannels(ctx, scope, log)
		}
		if err := o.repo.SetLastSyncAt(ctx, scope, o.now().UTC()); err != nil {
			log.Warn("failed to record sync timestamp", "error", err)
		}
	} else {
		// Empty incremental delta: reuse the cached set and leave the
		// timestamp alone, so the next window cannot silently skip past
		// records this page did not cover.
		log.Debug("incremental sync returned no new videos")
	}

	if removed, err := o.repo.CleanOldVideos(ctx, scope); err != nil {
		log.Warn("retention cleanup failed", "error", err)
	} else if removed > 0 {
		log.Info("retention cleanup removed expired videos", "removed", removed)
		videos = o.repo.Videos(ctx, scope)
	}

	domain.SortNewestFirst(videos)
	result := &Result{
		Videos:     videos,
		FromCache:  false,
		LastSync:   o.repo.LastSyncAt(ctx, scope),
		NextCursor: nextCursor(page.NextCursor, videos),
		Stats:      o.repo.Stats(ctx, scope),
	}
	metrics.SyncRunsTotal.WithLabelValues(strategy, metrics.SyncResultOK).Inc()
	o.emitter.Emit(sse.NewSyncCompletedEvent(scope.String(), false, len(videos)))
	return result, nil
}

// fallback serves the pre-fetch cached set after a remote or merge failure.
// With nothing cached there is nothing to degrade to, so the error is
// returned instead.
func (o *Orchestrator) fallback(ctx context.Context, scope domain.Scope, cached []domain.VideoRecord, strategy string, log *slog.Logger, cause error) (*Result, error) {
	if len(cached) == 0 {
		metrics.SyncRunsTotal.WithLabelValues(strategy, metrics.SyncResultError).Inc()
		return nil, cause
	}
	metrics.SyncRunsTotal.WithLabelValues(strategy, metrics.SyncResultFallback).Inc()
	log.Warn("sync failed, serving cached data", "error", cause, "cached", len(cached))

	domain.SortNewestFirst(cached)
	result := &Result{
		Videos:     cached,
		FromCache:  true,
		LastSync:   o.repo.LastSyncAt(ctx, scope),
		NextCursor: nextCursor("", cached),
		Stats:      o.repo.Stats(ctx, scope),
	}
	o.emitter.Emit(sse.NewSyncCompletedEvent(scope.String(), true, len(cached)))
	return result, nil
}

// cachedOnly serves whatever the current owner has cached. No owner means
// no one has ever synced on this device.
func (o *Orchestrator) cachedOnly(ctx context.Context) *Result {
	metrics.SyncRunsTotal.WithLabelValues(metrics.SyncStrategyCachedOnly, metrics.SyncResultOK).Inc()
	owner := o.repo.LastOwner(ctx)
	if owner == "" {
		return &Result{Videos: []domain.VideoRecord{}, FromCache: true}
	}

	videos := o.repo.Videos(ctx, owner)
	domain.SortNewestFirst(videos)
	return &Result{
		Videos:     videos,
		FromCache:  true,
		LastSync:   o.repo.LastSyncAt(ctx, owner),
		NextCursor: nextCursor("", videos),
		Stats:      o.repo.Stats(ctx, owner),
	}
}

// refreshChannels replaces the cached channel list after a full sync.
// Failures here never fail the sync; the video merge already succeeded.
func (o *Orchestrator) refreshChannels(ctx context.Context, scope domain.Scope, log *slog.Logger) {
	channels, err := o.api.FetchUserChannels(ctx, scope.String())
	if err != nil {
		log.Warn("channel refresh failed", "error", err)
		return
	}

	existing := make(map[string]domain.ChannelRecord)
	for _, ch := range o.repo.Channels(ctx, scope) {
		existing[ch.ChannelID] = ch
	}
	for i := range channels {
		if channels[i].Thumbnail == "" {
			continue
		}
		// Reuse the placeholder when the thumbnail has not changed.
		if prev, ok := existing[channels[i].ChannelID]; ok &&
			prev.Thumbnail == channels[i].Thumbnail && prev.ThumbBlurHash != "" {
			channels[i].ThumbBlurHash = prev.ThumbBlurHash
			continue
		}
		if o.thumbs == nil {
			continue
		}
		hash, err := o.thumbs.BlurHash(ctx, channels[i].Thumbnail)
		if err != nil {
			log.Debug("blurhash generation failed",
				"channel_id", channels[i].ChannelID, "error", err)
			continue
		}
		channels[i].ThumbBlurHash = hash
	}

	if err := o.repo.SaveChannels(ctx, scope, channels); err != nil {
		log.Warn("failed to save refreshed channels", "error", err)
	}
}

// prepare normalizes remote summaries before they enter the cache: summaries
// arrive as HTML fragments and are stored as Markdown.
func prepare(videos []domain.VideoRecord) []domain.VideoRecord {
	out := make([]domain.VideoRecord, len(videos))
	copy(out, videos)
	for i := range out {
		out[i].Summary = normalize.Markdown(out[i].Summary)
	}
	return out
}

// nextCursor prefers the backend's token; without one it derives a cursor
// from the working set so pagination stays possible offline.
func nextCursor(remoteCursor string, videos []domain.VideoRecord) string {
	if remoteCursor != "" {
		return remoteCursor
	}
	c, ok := domain.CursorFor(videos)
	if !ok {
		return ""
	}
	return c.Encode()
}
