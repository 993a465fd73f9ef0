package search_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	"github.com/channelbriefapp/channelbrief-engine/internal/search"
)

func setupIndex(t *testing.T) *search.Index {
	t.Helper()

	idx, err := search.New(search.Options{
		DataPath: t.TempDir(),
		Logger:   slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func fixtureVideos() []domain.VideoRecord {
	created := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	return []domain.VideoRecord{
		{
			VideoID:   "v1",
			ChannelID: "chan-space",
			Title:     "Starship launch recap",
			Summary:   "The booster landed on the first attempt and the crew reviewed telemetry.",
			Processed: true,
			CreatedAt: created,
		},
		{
			VideoID:   "v2",
			ChannelID: "chan-space",
			Title:     "Engine test preview",
			Summary:   "",
			Processed: false,
			CreatedAt: created.Add(time.Hour),
		},
		{
			VideoID:   "v3",
			ChannelID: "chan-cooking",
			Title:     "Sourdough basics",
			Summary:   "Starter maintenance and a simple weekday loaf with telemetry jokes.",
			Processed: true,
			CreatedAt: created.Add(2 * time.Hour),
		},
	}
}

func TestSearchFindsTitleMatch(t *testing.T) {
	idx := setupIndex(t)
	require.NoError(t, idx.IndexVideos(context.Background(), fixtureVideos()))

	params := search.DefaultParams()
	params.Query = "starship"

	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "v1", result.Hits[0].VideoID)
	assert.Equal(t, "chan-space", result.Hits[0].ChannelID)
}

func TestSearchTitleOutranksSummaryMention(t *testing.T) {
	idx := setupIndex(t)
	require.NoError(t, idx.IndexVideos(context.Background(), fixtureVideos()))

	params := search.DefaultParams()
	params.Query = "telemetry"

	// Both v1 and v3 mention telemetry in the summary only; both should
	// match, neither via a boosted title hit.
	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)
}

func TestSearchChannelFilter(t *testing.T) {
	idx := setupIndex(t)
	require.NoError(t, idx.IndexVideos(context.Background(), fixtureVideos()))

	params := search.DefaultParams()
	params.Query = "telemetry"
	params.ChannelID = "chan-cooking"

	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "v3", result.Hits[0].VideoID)
}

func TestSearchProcessedOnly(t *testing.T) {
	idx := setupIndex(t)
	require.NoError(t, idx.IndexVideos(context.Background(), fixtureVideos()))

	params := search.DefaultParams()
	params.ProcessedOnly = true

	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)
	for _, hit := range result.Hits {
		assert.True(t, hit.Processed)
	}
}

func TestSearchMatchAllSortedByRecency(t *testing.T) {
	idx := setupIndex(t)
	require.NoError(t, idx.IndexVideos(context.Background(), fixtureVideos()))

	params := search.DefaultParams()
	params.SortBy = "recent"

	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 3)
	assert.Equal(t, "v3", result.Hits[0].VideoID)
	assert.Equal(t, "v1", result.Hits[2].VideoID)
}

func TestSearchChannelFacets(t *testing.T) {
	idx := setupIndex(t)
	require.NoError(t, idx.IndexVideos(context.Background(), fixtureVideos()))

	result, err := idx.Search(context.Background(), search.DefaultParams())
	require.NoError(t, err)
	require.Len(t, result.Channels, 2)
	assert.Equal(t, "chan-space", result.Channels[0].Value)
	assert.Equal(t, 2, result.Channels[0].Count)
}

func TestDeleteVideosRemovesFromIndex(t *testing.T) {
	idx := setupIndex(t)
	require.NoError(t, idx.IndexVideos(context.Background(), fixtureVideos()))

	require.NoError(t, idx.DeleteVideos(context.Background(), []string{"v1", "v2"}))

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestIndexVideosSkipsRecordsWithoutID(t *testing.T) {
	idx := setupIndex(t)

	err := idx.IndexVideos(context.Background(), []domain.VideoRecord{
		{ChannelID: "chan-a", Title: "no identity"},
		{VideoID: "v1", ChannelID: "chan-a", Title: "fine"},
	})
	require.NoError(t, err)

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestRebuildEmptiesIndex(t *testing.T) {
	idx := setupIndex(t)
	require.NoError(t, idx.IndexVideos(context.Background(), fixtureVideos()))

	require.NoError(t, idx.Rebuild())

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestReindexOverwritesExistingDocument(t *testing.T) {
	idx := setupIndex(t)
	videos := fixtureVideos()
	require.NoError(t, idx.IndexVideos(context.Background(), videos))

	videos[1].Processed = true
	videos[1].Summary = "Static fire complete, launch window confirmed."
	require.NoError(t, idx.IndexVideos(context.Background(), videos[1:2]))

	params := search.DefaultParams()
	params.Query = "static fire"
	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "v2", result.Hits[0].VideoID)

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}
