package domain

import "time"

// ValidationStatus summarizes the most recent integrity verdict over the cache.
type ValidationStatus string

// Validation statuses surfaced through CacheStats.
const (
	ValidationHealthy   ValidationStatus = "healthy"
	ValidationWarning   ValidationStatus = "warning"
	ValidationCorrupted ValidationStatus = "corrupted"
)

// CacheStats is computed on demand from the current collection; it is never
// stored.
type CacheStats struct {
	TotalEntries         int              `json:"totalEntries"`
	ApproximateSizeBytes int64            `json:"approximateSizeBytes"`
	LastSyncTimestamp    time.Time        `json:"lastSyncTimestamp"`
	ValidationStatus     ValidationStatus `json:"validationStatus"`
	OldestEntryTimestamp time.Time        `json:"oldestEntryTimestamp"`
	NewestEntryTimestamp time.Time        `json:"newestEntryTimestamp"`
}
