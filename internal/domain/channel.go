package domain

import (
	"fmt"
	"time"
)

// ChannelRecord is one subscribed channel. Identity is ChannelID; the set of
// channels is unique per user scope and bounded by a quota the backend
// enforces, not the cache.
type ChannelRecord struct {
	ChannelID       string    `json:"channelId" validate:"required"`
	Title           string    `json:"title"`
	Thumbnail       string    `json:"thumbnail,omitempty"`
	ThumbBlurHash   string    `json:"thumbBlurHash,omitempty"`
	SubscriberCount int64     `json:"subscriberCount"`
	VideoCount      int64     `json:"videoCount"`
	SubscribedAt    time.Time `json:"subscribedAt"`
}

// Validate checks the record's identity field.
func (c ChannelRecord) Validate() error {
	if c.ChannelID == "" {
		return fmt.Errorf("channel record missing channelId")
	}
	return nil
}
