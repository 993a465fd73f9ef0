// Package sse implements Server-Sent Events for pushing cache engine state
// changes to the UI shell. The UI renders from its own copy of the cached
// data; events tell it when that copy went stale.
package sse

import "time"

// EventType represents the type of SSE event.
type EventType string

const (
	// EventSyncStarted signals a sync run began for a scope.
	EventSyncStarted EventType = "sync.started"
	// EventSyncCompleted signals a sync run finished (including the
	// fallback-to-cache path).
	EventSyncCompleted EventType = "sync.completed"

	// EventVideosMerged signals that merged records were persisted and the
	// UI should re-read the video list.
	EventVideosMerged EventType = "videos.merged"
	// EventChannelRemoved signals a channel's videos were dropped.
	EventChannelRemoved EventType = "channel.removed"
	// EventChannelsUpdated signals the channel list was replaced.
	EventChannelsUpdated EventType = "channels.updated"

	// EventCacheCleared signals a whole scope was wiped (user switch,
	// corruption reset, explicit clear).
	EventCacheCleared EventType = "cache.cleared"
	// EventRepairCompleted signals an integrity repair pass finished.
	EventRepairCompleted EventType = "repair.completed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// SyncStartedEventData is the data payload for sync start events.
type SyncStartedEventData struct {
	Scope     string    `json:"scope"`
	StartedAt time.Time `json:"started_at"`
}

// SyncCompletedEventData is the data payload for sync completion events.
type SyncCompletedEventData struct {
	Scope       string    `json:"scope"`
	CompletedAt time.Time `json:"completed_at"`
	FromCache   bool      `json:"from_cache"`
	VideoCount  int       `json:"video_count"`
}

// VideosMergedEventData is the data payload for merge events.
type VideosMergedEventData struct {
	Scope   string `json:"scope"`
	Changed int    `json:"changed"`
}

// ChannelRemovedEventData is the data payload for channel removal events.
type ChannelRemovedEventData struct {
	Scope         string `json:"scope"`
	ChannelID     string `json:"channel_id"`
	VideosRemoved int    `json:"videos_removed"`
}

// ChannelsUpdatedEventData is the data payload for channel list replacement events.
type ChannelsUpdatedEventData struct {
	Scope        string `json:"scope"`
	ChannelCount int    `json:"channel_count"`
}

// CacheClearedEventData is the data payload for cache clear events.
type CacheClearedEventData struct {
	Scope     string    `json:"scope"`
	ClearedAt time.Time `json:"cleared_at"`
}

// RepairCompletedEventData is the data payload for repair events.
type RepairCompletedEventData struct {
	Scope    string `json:"scope"`
	Deleted  int    `json:"deleted"`
	Repaired int    `json:"repaired"`
	Success  bool   `json:"success"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewSyncStartedEvent creates a sync started event.
func NewSyncStartedEvent(scope string) Event {
	now := time.Now()
	return Event{
		Type:      EventSyncStarted,
		Timestamp: now,
		Data:      SyncStartedEventData{Scope: scope, StartedAt: now},
	}
}

// NewSyncCompletedEvent creates a sync completed event.
func NewSyncCompletedEvent(scope string, fromCache bool, videoCount int) Event {
	now := time.Now()
	return Event{
		Type:      EventSyncCompleted,
		Timestamp: now,
		Data: SyncCompletedEventData{
			Scope:       scope,
			CompletedAt: now,
			FromCache:   fromCache,
			VideoCount:  videoCount,
		},
	}
}

// NewVideosMergedEvent creates a videos merged event.
func NewVideosMergedEvent(scope string, changed int) Event {
	return Event{
		Type:      EventVideosMerged,
		Timestamp: time.Now(),
		Data:      VideosMergedEventData{Scope: scope, Changed: changed},
	}
}

// NewChannelRemovedEvent creates a channel removed event.
func NewChannelRemovedEvent(scope, channelID string, videosRemoved int) Event {
	return Event{
		Type:      EventChannelRemoved,
		Timestamp: time.Now(),
		Data: ChannelRemovedEventData{
			Scope:         scope,
			ChannelID:     channelID,
			VideosRemoved: videosRemoved,
		},
	}
}

// NewChannelsUpdatedEvent creates a channels updated event.
func NewChannelsUpdatedEvent(scope string, channelCount int) Event {
	return Event{
		Type:      EventChannelsUpdated,
		Timestamp: time.Now(),
		Data:      ChannelsUpdatedEventData{Scope: scope, ChannelCount: channelCount},
	}
}

// NewCacheClearedEvent creates a cache cleared event.
func NewCacheClearedEvent(scope string) Event {
	now := time.Now()
	return Event{
		Type:      EventCacheCleared,
		Timestamp: now,
		Data:      CacheClearedEventData{Scope: scope, ClearedAt: now},
	}
}

// NewRepairCompletedEvent creates a repair completed event.
func NewRepairCompletedEvent(scope string, deleted, repaired int, success bool) Event {
	return Event{
		Type:      EventRepairCompleted,
		Timestamp: time.Now(),
		Data: RepairCompletedEventData{
			Scope:    scope,
			Deleted:  deleted,
			Repaired: repaired,
			Success:  success,
		},
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Timestamp: now,
		Data:      HeartbeatEventData{ServerTime: now},
	}
}
