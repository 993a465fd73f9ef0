package domain

import (
	"encoding/base64"
	"encoding/json/v2"
	"fmt"
)

// SyncCursor is the opaque pagination token handed back to callers. It
// identifies the oldest record of the most recent page so the next page can
// be requested from there.
type SyncCursor struct {
	LastCreatedAtMillis int64  `json:"lastCreatedAtMillis"`
	LastVideoID         string `json:"lastVideoId"`
}

// CursorFor derives the cursor from a working set: the set is ordered
// newest-first and the cursor points at the last (oldest) element. Returns
// false for an empty set.
func CursorFor(videos []VideoRecord) (SyncCursor, bool) {
	if len(videos) == 0 {
		return SyncCursor{}, false
	}
	sorted := make([]VideoRecord, len(videos))
	copy(sorted, videos)
	SortNewestFirst(sorted)

	oldest := sorted[len(sorted)-1]
	return SyncCursor{
		LastCreatedAtMillis: oldest.CreatedAtMillis(),
		LastVideoID:         oldest.VideoID,
	}, true
}

// Encode serializes the cursor as a URL-safe opaque token.
func (c SyncCursor) Encode() string {
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token produced by Encode.
func DecodeCursor(token string) (SyncCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return SyncCursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	var c SyncCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return SyncCursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	return c, nil
}
