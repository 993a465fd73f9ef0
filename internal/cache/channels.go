package cache

import (
	"context"
	"encoding/json/v2"
	"slices"
	"strings"

	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	"github.com/channelbriefapp/channelbrief-engine/internal/sse"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
	"github.com/channelbriefapp/channelbrief-engine/internal/txn"
)

// Channels returns every cached channel for the scope, sorted by title.
// Same degradation rule as Videos: failures log and serve empty.
func (r *Repository) Channels(ctx context.Context, scope domain.Scope) []domain.ChannelRecord {
	keys, err := r.kv.ListKeys(ctx, store.ChannelScopePrefix(scope))
	if err != nil {
		r.logger.Error("failed to list cached channels, serving empty", "scope", scope, "error", err)
		return []domain.ChannelRecord{}
	}

	channels := make([]domain.ChannelRecord, 0, len(keys))
	for _, key := range keys {
		raw, err := r.kv.Get(ctx, key)
		if err != nil {
			if !store.IsNotFound(err) {
				r.logger.Warn("failed to read cached channel", "key", key, "error", err)
			}
			continue
		}
		var c domain.ChannelRecord
		if err := json.Unmarshal(raw, &c); err != nil {
			r.logger.Warn("skipping undecodable cached channel", "key", key, "error", err)
			continue
		}
		channels = append(channels, c)
	}

	slices.SortFunc(channels, func(a, b domain.ChannelRecord) int {
		return strings.Compare(a.Title, b.Title)
	})
	return channels
}

// SaveChannels atomically replaces the scope's channel list. Channels
// removed by the replacement also lose their cached videos, so an
// unsubscribe observed through a sync behaves like an explicit removal.
func (r *Repository) SaveChannels(ctx context.Context, scope domain.Scope, channels []domain.ChannelRecord) error {
	existing, err := r.kv.ListKeys(ctx, store.ChannelScopePrefix(scope))
	if err != nil {
		return err
	}

	keep := make(map[string]bool, len(channels))
	err = r.txns.Run(ctx, txn.KindSaveChannels, func(tx *txn.Tx) error {
		for _, c := range channels {
			key := store.ChannelKey(scope, c.ChannelID)
			keep[key] = true
			raw, err := json.Marshal(c)
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

	// Cascade: drop videos of channels that disappeared from the list.
	for _, key := range existing {
		if keep[key] {
			continue
		}
		if _, channelID, ok := store.ParseChannelKey(key); ok {
			if _, err := r.RemoveChannelVideos(ctx, scope, channelID); err != nil {
				r.logger.Warn("failed to remove videos of unsubscribed channel",
					"scope", scope, "channel", channelID, "error", err)
			}
		}
	}

	r.emitter.Emit(sse.NewChannelsUpdatedEvent(scope.String(), len(channels)))
	return nil
}
