// Package domain contains the core entities and domain logic for the
// ChannelBrief cache engine.
package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ProcessingStatus tracks where a video sits in the summarization pipeline.
type ProcessingStatus string

// Processing statuses reported by the remote service.
const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusDone       ProcessingStatus = "done"
	StatusFailed     ProcessingStatus = "failed"
)

// validStatusTransitions defines which status changes the pipeline can report.
// Terminal states may be re-announced by the remote but never regress locally.
var validStatusTransitions = map[ProcessingStatus][]ProcessingStatus{
	StatusPending:    {StatusProcessing, StatusDone, StatusFailed},
	StatusProcessing: {StatusDone, StatusFailed},
	StatusDone:       {},
	StatusFailed:     {StatusPending, StatusProcessing},
}

// Valid reports whether s is a known processing status.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the pipeline may move from s to target.
func (s ProcessingStatus) CanTransitionTo(target ProcessingStatus) bool {
	if s == target {
		return true
	}
	return slices.Contains(validStatusTransitions[s], target)
}

// VideoRecord is one cached video summary. Identity is VideoID; records are
// mutated in place when a later sync reports newer pipeline output for the
// same video.
//
// Invariant: Processed is true only when Summary is non-empty.
type VideoRecord struct {
	VideoID     string           `json:"videoId" validate:"required"`
	ChannelID   string           `json:"channelId" validate:"required"`
	Title       string           `json:"title"`
	PublishedAt time.Time        `json:"publishedAt"`
	CreatedAt   time.Time        `json:"createdAt"`
	Processed   bool             `json:"processed"`
	Summary     string           `json:"summary,omitempty"`
	Status      ProcessingStatus `json:"processingStatus" validate:"omitempty,oneof=pending processing done failed"`
}

// Validate checks the record's identity fields and the processed/summary
// invariant.
func (v VideoRecord) Validate() error {
	if v.VideoID == "" {
		return fmt.Errorf("video record missing videoId")
	}
	if v.ChannelID == "" {
		return fmt.Errorf("video record %s missing channelId", v.VideoID)
	}
	if v.Status != "" && !v.Status.Valid() {
		return fmt.Errorf("video record %s has unknown processing status %q", v.VideoID, v.Status)
	}
	if v.Processed && strings.TrimSpace(v.Summary) == "" {
		return fmt.Errorf("video record %s marked processed without a summary", v.VideoID)
	}
	return nil
}

// MoreCompleteThan reports whether v carries pipeline output that incoming
// would regress. A completed summary is never overwritten by a stale
// unprocessed copy of the same video.
func (v VideoRecord) MoreCompleteThan(incoming VideoRecord) bool {
	return v.Processed && !incoming.Processed
}

// CreatedAtMillis returns CreatedAt as Unix milliseconds, the unit the sync
// cursor is encoded in.
func (v VideoRecord) CreatedAtMillis() int64 {
	if v.CreatedAt.IsZero() {
		return 0
	}
	return v.CreatedAt.UnixMilli()
}

// SortNewestFirst orders records descending by CreatedAt, breaking ties by
// VideoID descending. Every place that needs an "oldest" or "newest" record
// uses this ordering so cursors are deterministic.
func SortNewestFirst(videos []VideoRecord) {
	slices.SortFunc(videos, func(a, b VideoRecord) int {
		if c := cmp.Compare(b.CreatedAtMillis(), a.CreatedAtMillis()); c != 0 {
			return c
		}
		return cmp.Compare(b.VideoID, a.VideoID)
	})
}
