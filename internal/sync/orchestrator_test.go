package sync_test

import (
	"context"
	"log/slog"
	"path/filepath"
	stdsync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelbriefapp/channelbrief-engine/internal/cache"
	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	"github.com/channelbriefapp/channelbrief-engine/internal/errors"
	"github.com/channelbriefapp/channelbrief-engine/internal/remote"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
	enginesync "github.com/channelbriefapp/channelbrief-engine/internal/sync"
	"github.com/channelbriefapp/channelbrief-engine/internal/txn"
)

const testUser = "42"

// fakeAPI lets each test script the backend's behavior per call.
type fakeAPI struct {
	fetchSummaries func(ctx context.Context, q remote.SummariesQuery) (*remote.SummariesPage, error)
	fetchChannels  func(ctx context.Context, userID string) ([]domain.ChannelRecord, error)
}

func (f *fakeAPI) FetchVideoSummaries(ctx context.Context, q remote.SummariesQuery) (*remote.SummariesPage, error) {
	if f.fetchSummaries == nil {
		return &remote.SummariesPage{}, nil
	}
	return f.fetchSummaries(ctx, q)
}

func (f *fakeAPI) FetchUserChannels(ctx context.Context, userID string) ([]domain.ChannelRecord, error) {
	if f.fetchChannels == nil {
		return nil, nil
	}
	return f.fetchChannels(ctx, userID)
}

func setupOrchestrator(t *testing.T, api remote.API) (*enginesync.Orchestrator, *cache.Repository) {
	t.Helper()

	kv, err := store.OpenBadger(filepath.Join(t.TempDir(), "sync-db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	logger := slog.New(slog.DiscardHandler)
	repo := cache.NewRepository(kv, txn.NewManager(kv, logger), cache.RetentionPolicy{}, logger, store.NewNoopEmitter())
	return enginesync.New(repo, api, 0, nil, logger), repo
}

func summary(id, channelID string, createdAt time.Time, processed bool) domain.VideoRecord {
	v := domain.VideoRecord{
		VideoID:   id,
		ChannelID: channelID,
		Title:     "video " + id,
		CreatedAt: createdAt,
		Processed: processed,
		Status:    domain.StatusPending,
	}
	if processed {
		v.Summary = "summary of " + id
		v.Status = domain.StatusDone
	}
	return v
}

func TestSyncFirstRunFetchesFullPage(t *testing.T) {
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	var gotQuery remote.SummariesQuery
	api := &fakeAPI{
		fetchSummaries: func(_ context.Context, q remote.SummariesQuery) (*remote.SummariesPage, error) {
			gotQuery = q
			return &remote.SummariesPage{Videos: []domain.VideoRecord{
				summary("v1", "chan-a", base, true),
				summary("v2", "chan-a", base.Add(time.Hour), false),
			}}, nil
		},
	}
	orch, repo := setupOrchestrator(t, api)

	result, err := orch.Sync(context.Background(), testUser)
	require.NoError(t, err)

	assert.True(t, gotQuery.Since.IsZero(), "first run must request the full window")
	assert.Equal(t, enginesync.DefaultPageSize, gotQuery.Limit)
	assert.False(t, result.FromCache)
	assert.Len(t, result.Videos, 2)
	assert.Equal(t, "v2", result.Videos[0].VideoID, "newest first")

	persisted := repo.Videos(context.Background(), domain.Scope(testUser))
	assert.Len(t, persisted, 2, "full sync persists the fetched page")
	assert.False(t, repo.LastSyncAt(context.Background(), domain.Scope(testUser)).IsZero())
}

func TestSyncIncrementalUsesLastSyncTimestamp(t *testing.T) {
	ctx := context.Background()
	scope := domain.Scope(testUser)
	lastSync := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	var gotQuery remote.SummariesQuery
	api := &fakeAPI{
		fetchSummaries: func(_ context.Context, q remote.SummariesQuery) (*remote.SummariesPage, error) {
			gotQuery = q
			return &remote.SummariesPage{}, nil
		},
	}
	orch, repo := setupOrchestrator(t, api)
	require.NoError(t, repo.SaveVideos(ctx, scope, []domain.VideoRecord{
		summary("v1", "chan-a", lastSync.Add(-time.Hour), true),
	}))
	require.NoError(t, repo.SetLastSyncAt(ctx, scope, lastSync))

	result, err := orch.Sync(ctx, testUser)
	require.NoError(t, err)

	assert.Equal(t, lastSync, gotQuery.Since.UTC())
	assert.Len(t, result.Videos, 1)
}

func TestSyncEmptyDeltaLeavesTimestampAlone(t *testing.T) {
	ctx := context.Background()
	scope := domain.Scope(testUser)
	lastSync := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	api := &fakeAPI{
		fetchSummaries: func(_ context.Context, _ remote.SummariesQuery) (*remote.SummariesPage, error) {
			return &remote.SummariesPage{}, nil
		},
	}
	orch, repo := setupOrchestrator(t, api)
	require.NoError(t, repo.SaveVideos(ctx, scope, []domain.VideoRecord{
		summary("v1", "chan-a", lastSync.Add(-time.Hour), true),
	}))
	require.NoError(t, repo.SetLastSyncAt(ctx, scope, lastSync))

	first, err := orch.Sync(ctx, testUser)
	require.NoError(t, err)
	second, err := orch.Sync(ctx, testUser)
	require.NoError(t, err)

	assert.Equal(t, lastSync, repo.LastSyncAt(ctx, scope), "no-op page must not widen the next window")
	assert.Equal(t, first.Videos, second.Videos)
}

func TestSyncChannelChangeForcesFullSync(t *testing.T) {
	ctx := context.Background()
	scope := domain.Scope(testUser)
	lastSync := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	var gotQuery remote.SummariesQuery
	api := &fakeAPI{
		fetchSummaries: func(_ context.Context, q remote.SummariesQuery) (*remote.SummariesPage, error) {
			gotQuery = q
			return &remote.SummariesPage{Videos: []domain.VideoRecord{
				summary("v9", "chan-new", lastSync.Add(time.Hour), false),
			}}, nil
		},
	}
	orch, repo := setupOrchestrator(t, api)
	require.NoError(t, repo.SetLastSyncAt(ctx, scope, lastSync))
	require.NoError(t, repo.SignalChannelListChanged(ctx, scope))

	_, err := orch.Sync(ctx, testUser)
	require.NoError(t, err)

	assert.True(t, gotQuery.Since.IsZero(), "channel change must override the incremental window")
	assert.False(t, repo.ChannelListChanged(ctx, scope), "signal cleared after successful full sync")
}

func TestSyncChannelChangeSignalSurvivesFailedFetch(t *testing.T) {
	ctx := context.Background()
	scope := domain.Scope(testUser)

	api := &fakeAPI{
		fetchSummaries: func(_ context.Context, _ remote.SummariesQuery) (*remote.SummariesPage, error) {
			return nil, errors.RemoteFetchFailed("backend down")
		},
	}
	orch, repo := setupOrchestrator(t, api)
	require.NoError(t, repo.SaveVideos(ctx, scope, []domain.VideoRecord{
		summary("v1", "chan-a", time.Now().UTC(), true),
	}))
	require.NoError(t, repo.SetLastSyncAt(ctx, scope, time.Now().UTC()))
	require.NoError(t, repo.SignalChannelListChanged(ctx, scope))

	result, err := orch.Sync(ctx, testUser)
	require.NoError(t, err)

	assert.True(t, result.FromCache)
	assert.True(t, repo.ChannelListChanged(ctx, scope), "next attempt must still do a full sync")
}

func TestSyncFallsBackToCacheOnRemoteFailure(t *testing.T) {
	ctx := context.Background()
	scope := domain.Scope(testUser)

	api := &fakeAPI{
		fetchSummaries: func(_ context.Context, _ remote.SummariesQuery) (*remote.SummariesPage, error) {
			return nil, errors.RemoteFetchFailed("timeout")
		},
	}
	orch, repo := setupOrchestrator(t, api)
	require.NoError(t, repo.SaveVideos(ctx, scope, []domain.VideoRecord{
		summary("v1", "chan-a", time.Now().UTC(), true),
		summary("v2", "chan-b", time.Now().UTC(), false),
	}))
	require.NoError(t, repo.SetLastSyncAt(ctx, scope, time.Now().UTC()))

	result, err := orch.Sync(ctx, testUser)
	require.NoError(t, err, "remote failure with a warm cache must not surface")

	assert.True(t, result.FromCache)
	assert.Len(t, result.Videos, 2)
}

func TestSyncRemoteFailureWithEmptyCacheSurfaces(t *testing.T) {
	api := &fakeAPI{
		fetchSummaries: func(_ context.Context, _ remote.SummariesQuery) (*remote.SummariesPage, error) {
			return nil, errors.RemoteFetchFailed("timeout")
		},
	}
	orch, _ := setupOrchestrator(t, api)

	_, err := orch.Sync(context.Background(), testUser)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRemoteFetchFailed))
}

func TestSyncRejectsMalformedUserID(t *testing.T) {
	orch, _ := setupOrchestrator(t, &fakeAPI{})

	_, err := orch.Sync(context.Background(), "user:with:colons")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidScope))
}

func TestSyncAnonymousCallerGetsOwnerCache(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	api := &fakeAPI{
		fetchSummaries: func(_ context.Context, _ remote.SummariesQuery) (*remote.SummariesPage, error) {
			return &remote.SummariesPage{Videos: []domain.VideoRecord{
				summary("v1", "chan-a", base, true),
			}}, nil
		},
	}
	orch, _ := setupOrchestrator(t, api)

	_, err := orch.Sync(ctx, testUser)
	require.NoError(t, err)

	result, err := orch.Sync(ctx, "")
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Len(t, result.Videos, 1)
}

func TestSyncNormalizesSummariesToMarkdown(t *testing.T) {
	ctx := context.Background()

	incoming := summary("v1", "chan-a", time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC), true)
	incoming.Summary = "<p>The host covers <b>three</b> topics.</p>"
	api := &fakeAPI{
		fetchSummaries: func(_ context.Context, _ remote.SummariesQuery) (*remote.SummariesPage, error) {
			return &remote.SummariesPage{Videos: []domain.VideoRecord{incoming}}, nil
		},
	}
	orch, _ := setupOrchestrator(t, api)

	result, err := orch.Sync(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, result.Videos, 1)
	assert.Equal(t, "The host covers **three** topics.", result.Videos[0].Summary)
}

func TestSyncRefreshesChannelsOnFullSync(t *testing.T) {
	ctx := context.Background()
	scope := domain.Scope(testUser)

	api := &fakeAPI{
		fetchSummaries: func(_ context.Context, _ remote.SummariesQuery) (*remote.SummariesPage, error) {
			return &remote.SummariesPage{}, nil
		},
		fetchChannels: func(_ context.Context, userID string) ([]domain.ChannelRecord, error) {
			assert.Equal(t, testUser, userID)
			return []domain.ChannelRecord{
				{ChannelID: "chan-a", Title: "Alpha"},
				{ChannelID: "chan-b", Title: "Beta"},
			}, nil
		},
	}
	orch, repo := setupOrchestrator(t, api)

	_, err := orch.Sync(ctx, testUser)
	require.NoError(t, err)

	channels := repo.Channels(ctx, scope)
	require.Len(t, channels, 2)
	assert.Equal(t, "Alpha", channels[0].Title)
}

func TestSyncCoalescesConcurrentCalls(t *testing.T) {
	var fetches atomic.Int32
	release := make(chan struct{})
	api := &fakeAPI{
		fetchSummaries: func(_ context.Context, _ remote.SummariesQuery) (*remote.SummariesPage, error) {
			fetches.Add(1)
			<-release
			return &remote.SummariesPage{}, nil
		},
	}
	orch, _ := setupOrchestrator(t, api)

	var wg stdsync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orch.Sync(context.Background(), testUser)
			assert.NoError(t, err)
		}()
	}

	// Give the goroutines time to pile up on the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load(), "concurrent calls must share one fetch")
}
