package store

import (
	"strings"

	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
)

// Key layout. Every record lives under a typed prefix with the user scope
// embedded, so clearing a scope is a prefix scan and switching accounts can
// never read across users. ParseScope guarantees scopes contain no ':'.
//
//	video:<scope>:<videoId>     one cached video summary
//	channel:<scope>:<channelId> one subscribed channel
//	sync:last:<scope>           last successful sync, unix millis
//	sync:chchanged:<scope>      channel list changed marker
//	tx:log:<txId>               pending transaction log entry
//	scope:lastUser              scope of the last signed-in user
const (
	videoKeyPrefix       = "video:"
	channelKeyPrefix     = "channel:"
	syncLastPrefix       = "sync:last:"
	channelChangedPrefix = "sync:chchanged:"
	txLogPrefix          = "tx:log:"

	// LastUserKey holds the scope the cache currently belongs to.
	LastUserKey = "scope:lastUser"
)

// VideoKey returns the storage key for one video record.
func VideoKey(scope domain.Scope, videoID string) string {
	return videoKeyPrefix + scope.String() + ":" + videoID
}

// VideoScopePrefix returns the prefix covering every video in a scope.
func VideoScopePrefix(scope domain.Scope) string {
	return videoKeyPrefix + scope.String() + ":"
}

// ChannelKey returns the storage key for one channel record.
func ChannelKey(scope domain.Scope, channelID string) string {
	return channelKeyPrefix + scope.String() + ":" + channelID
}

// ChannelScopePrefix returns the prefix covering every channel in a scope.
func ChannelScopePrefix(scope domain.Scope) string {
	return channelKeyPrefix + scope.String() + ":"
}

// LastSyncKey returns the key holding a scope's last successful sync time.
func LastSyncKey(scope domain.Scope) string {
	return syncLastPrefix + scope.String()
}

// ChannelChangedKey returns the key for a scope's sticky channel-change flag.
func ChannelChangedKey(scope domain.Scope) string {
	return channelChangedPrefix + scope.String()
}

// TxLogKey returns the key for a transaction log entry.
func TxLogKey(txID string) string {
	return txLogPrefix + txID
}

// TxLogPrefix returns the prefix covering every pending transaction entry.
func TxLogPrefix() string {
	return txLogPrefix
}

// ScopePrefixes returns every prefix that belongs to a scope. Clearing a
// scope deletes all keys under each of these plus the flag keys.
func ScopePrefixes(scope domain.Scope) []string {
	return []string{
		VideoScopePrefix(scope),
		ChannelScopePrefix(scope),
	}
}

// DataPrefixes returns every prefix holding cached data, across all scopes.
// The transaction log is not data and is excluded.
func DataPrefixes() []string {
	return []string{
		videoKeyPrefix,
		channelKeyPrefix,
		syncLastPrefix,
		channelChangedPrefix,
	}
}

// ScopeFlagKeys returns the single-value keys that belong to a scope.
func ScopeFlagKeys(scope domain.Scope) []string {
	return []string{
		LastSyncKey(scope),
		ChannelChangedKey(scope),
	}
}

// ParseVideoKey splits a video key into its scope and video id.
func ParseVideoKey(key string) (scope domain.Scope, videoID string, ok bool) {
	rest, found := strings.CutPrefix(key, videoKeyPrefix)
	if !found {
		return "", "", false
	}
	s, id, found := strings.Cut(rest, ":")
	if !found || s == "" || id == "" {
		return "", "", false
	}
	return domain.Scope(s), id, true
}

// ParseChannelKey splits a channel key into its scope and channel id.
func ParseChannelKey(key string) (scope domain.Scope, channelID string, ok bool) {
	rest, found := strings.CutPrefix(key, channelKeyPrefix)
	if !found {
		return "", "", false
	}
	s, id, found := strings.Cut(rest, ":")
	if !found || s == "" || id == "" {
		return "", "", false
	}
	return domain.Scope(s), id, true
}

// ParseTxLogKey extracts the transaction id from a log entry key.
func ParseTxLogKey(key string) (txID string, ok bool) {
	rest, found := strings.CutPrefix(key, txLogPrefix)
	if !found || rest == "" {
		return "", false
	}
	return rest, true
}
