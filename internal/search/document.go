// Package search provides offline full-text search over cached video
// summaries using Bleve. Summaries are read without connectivity, so the
// index lives on device next to the cache and is refreshed after every merge.
package search

import (
	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	"github.com/channelbriefapp/channelbrief-engine/internal/normalize"
)

// Document is the indexed form of one cached video. Summaries are stored as
// Markdown in the cache; the index carries the stripped plain text so markup
// never matches a query.
type Document struct {
	ID          string `json:"id"`
	ChannelID   string `json:"channel_id"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Processed   bool   `json:"processed"`
	PublishedAt int64  `json:"published_at"` // Unix millis
	CreatedAt   int64  `json:"created_at"`   // Unix millis
}

// ToMap converts the document to a map with lowercase field names.
// Bleve by default uses Go struct field names (capitalized), but the
// mapping uses lowercase names, so we convert explicitly.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"channel_id": d.ChannelID,
		"title":      d.Title,
		"processed":  d.Processed,
		"created_at": d.CreatedAt,
	}
	if d.Summary != "" {
		m["summary"] = d.Summary
	}
	if d.PublishedAt > 0 {
		m["published_at"] = d.PublishedAt
	}
	return m
}

// DocumentFor converts a cached video record to its indexed form.
func DocumentFor(v domain.VideoRecord) *Document {
	doc := &Document{
		ID:        v.VideoID,
		ChannelID: v.ChannelID,
		Title:     v.Title,
		Summary:   normalize.PlainText(v.Summary),
		Processed: v.Processed,
		CreatedAt: v.CreatedAtMillis(),
	}
	if !v.PublishedAt.IsZero() {
		doc.PublishedAt = v.PublishedAt.UnixMilli()
	}
	return doc
}
