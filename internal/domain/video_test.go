package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessingStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status ProcessingStatus
		want   bool
	}{
		{name: "pending", status: StatusPending, want: true},
		{name: "processing", status: StatusProcessing, want: true},
		{name: "done", status: StatusDone, want: true},
		{name: "failed", status: StatusFailed, want: true},
		{name: "empty", status: ProcessingStatus(""), want: false},
		{name: "unknown", status: ProcessingStatus("archived"), want: false},
		{name: "wrong case", status: ProcessingStatus("Done"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Valid())
		})
	}
}

func TestProcessingStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from ProcessingStatus
		to   ProcessingStatus
		want bool
	}{
		{name: "pending to processing", from: StatusPending, to: StatusProcessing, want: true},
		{name: "pending to done", from: StatusPending, to: StatusDone, want: true},
		{name: "pending to failed", from: StatusPending, to: StatusFailed, want: true},
		{name: "processing to done", from: StatusProcessing, to: StatusDone, want: true},
		{name: "processing to failed", from: StatusProcessing, to: StatusFailed, want: true},
		{name: "processing to pending", from: StatusProcessing, to: StatusPending, want: false},
		{name: "done is terminal", from: StatusDone, to: StatusPending, want: false},
		{name: "done to processing", from: StatusDone, to: StatusProcessing, want: false},
		{name: "failed retries to pending", from: StatusFailed, to: StatusPending, want: true},
		{name: "failed retries to processing", from: StatusFailed, to: StatusProcessing, want: true},
		{name: "failed to done", from: StatusFailed, to: StatusDone, want: false},
		{name: "same status is a no-op", from: StatusDone, to: StatusDone, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestVideoRecord_Validate(t *testing.T) {
	base := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)

	valid := VideoRecord{
		VideoID:     "vid-001",
		ChannelID:   "chan-001",
		Title:       "Weekly Update",
		PublishedAt: base,
		CreatedAt:   base.Add(time.Hour),
		Processed:   true,
		Summary:     "Covers the week's releases.",
		Status:      StatusDone,
	}

	t.Run("accepts a complete record", func(t *testing.T) {
		require.NoError(t, valid.Validate())
	})

	t.Run("rejects missing video id", func(t *testing.T) {
		rec := valid
		rec.VideoID = ""
		err := rec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "videoId")
	})

	t.Run("rejects missing channel id", func(t *testing.T) {
		rec := valid
		rec.ChannelID = ""
		err := rec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "channelId")
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		rec := valid
		rec.Status = "queued"
		err := rec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "queued")
	})

	t.Run("allows empty status", func(t *testing.T) {
		rec := valid
		rec.Status = ""
		rec.Processed = false
		rec.Summary = ""
		require.NoError(t, rec.Validate())
	})

	t.Run("rejects processed without summary", func(t *testing.T) {
		rec := valid
		rec.Summary = ""
		err := rec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "processed")
	})

	t.Run("rejects processed with whitespace summary", func(t *testing.T) {
		rec := valid
		rec.Summary = "   \n\t"
		assert.Error(t, rec.Validate())
	})

	t.Run("allows unprocessed without summary", func(t *testing.T) {
		rec := valid
		rec.Processed = false
		rec.Summary = ""
		rec.Status = StatusPending
		require.NoError(t, rec.Validate())
	})
}

func TestVideoRecord_MoreCompleteThan(t *testing.T) {
	processed := VideoRecord{VideoID: "v1", Processed: true, Summary: "done"}
	unprocessed := VideoRecord{VideoID: "v1", Processed: false}

	assert.True(t, processed.MoreCompleteThan(unprocessed))
	assert.False(t, unprocessed.MoreCompleteThan(processed))
	assert.False(t, processed.MoreCompleteThan(processed))
	assert.False(t, unprocessed.MoreCompleteThan(unprocessed))
}

func TestVideoRecord_CreatedAtMillis(t *testing.T) {
	t.Run("zero time maps to zero", func(t *testing.T) {
		assert.Equal(t, int64(0), VideoRecord{}.CreatedAtMillis())
	})

	t.Run("round trips unix millis", func(t *testing.T) {
		at := time.UnixMilli(1772064000123).UTC()
		rec := VideoRecord{CreatedAt: at}
		assert.Equal(t, int64(1772064000123), rec.CreatedAtMillis())
	})
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	t.Run("orders by created at descending", func(t *testing.T) {
		videos := []VideoRecord{
			{VideoID: "a", CreatedAt: base},
			{VideoID: "b", CreatedAt: base.Add(2 * time.Hour)},
			{VideoID: "c", CreatedAt: base.Add(time.Hour)},
		}

		SortNewestFirst(videos)

		assert.Equal(t, "b", videos[0].VideoID)
		assert.Equal(t, "c", videos[1].VideoID)
		assert.Equal(t, "a", videos[2].VideoID)
	})

	t.Run("breaks timestamp ties by video id descending", func(t *testing.T) {
		videos := []VideoRecord{
			{VideoID: "aaa", CreatedAt: base},
			{VideoID: "zzz", CreatedAt: base},
			{VideoID: "mmm", CreatedAt: base},
		}

		SortNewestFirst(videos)

		assert.Equal(t, "zzz", videos[0].VideoID)
		assert.Equal(t, "mmm", videos[1].VideoID)
		assert.Equal(t, "aaa", videos[2].VideoID)
	})

	t.Run("is stable for repeated calls", func(t *testing.T) {
		videos := []VideoRecord{
			{VideoID: "x", CreatedAt: base.Add(time.Minute)},
			{VideoID: "y", CreatedAt: base},
		}

		SortNewestFirst(videos)
		first := make([]VideoRecord, len(videos))
		copy(first, videos)

		SortNewestFirst(videos)
		assert.Equal(t, first, videos)
	})

	t.Run("handles empty slice", func(t *testing.T) {
		var videos []VideoRecord
		assert.NotPanics(t, func() { SortNewestFirst(videos) })
	})
}
