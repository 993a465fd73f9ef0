// Package integrity scans the stored cache for corruption and repairs what
// it can. The validator classifies issues by severity; the recovery engine
// deletes what is unrecoverable, downgrades what is refetchable, and clears
// the whole scope when damage crosses the configured fraction.
package integrity

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	"github.com/channelbriefapp/channelbrief-engine/internal/metrics"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
	"github.com/channelbriefapp/channelbrief-engine/internal/validation"
)

// Severity classifies how bad an issue is. Only critical issues make the
// cache invalid; warnings and infos are surfaced but never block reads.
type Severity string

// Issue severities.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// IssueKind is the closed set of problems the validator detects. Each kind
// carries a fixed severity; there are no free-form issue payloads.
type IssueKind string

// Issue kinds, in the order the checks run.
const (
	KindUndecodable      IssueKind = "undecodable"       // critical
	KindMissingIdentity  IssueKind = "missing-identity"  // critical
	KindMissingDisplay   IssueKind = "missing-display"   // warning
	KindSummaryInvariant IssueKind = "summary-invariant" // warning
	KindDuplicateID      IssueKind = "duplicate-id"      // warning
	KindClockSkew        IssueKind = "clock-skew"        // info
)

// Issue is one problem found in the stored cache.
type Issue struct {
	Kind        IssueKind `json:"kind"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	AffectedKey string    `json:"affectedKey,omitempty"`
}

// Metrics describes the scan itself.
type Metrics struct {
	EntriesChecked int           `json:"entriesChecked"`
	Duration       time.Duration `json:"duration"`
}

// Report is the result of a full cache validation.
type Report struct {
	IsValid bool    `json:"isValid"`
	Issues  []Issue `json:"issues"`
	Metrics Metrics `json:"metrics"`
}

// CriticalKeys returns the distinct affected keys of critical issues.
func (r Report) CriticalKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, issue := range r.Issues {
		if issue.Severity == SeverityCritical && issue.AffectedKey != "" && !seen[issue.AffectedKey] {
			seen[issue.AffectedKey] = true
			keys = append(keys, issue.AffectedKey)
		}
	}
	return keys
}

// Validator scans the raw key-space. It deliberately reads below the
// repository so that records the repository would silently skip are still
// reported.
type Validator struct {
	kv     store.KV
	vals   *validation.Validator
	logger *slog.Logger

	// now is swappable for the clock skew check in tests.
	now func() time.Time
}

// NewValidator creates a validator over the given store.
func NewValidator(kv store.KV, logger *slog.Logger) *Validator {
	return &Validator{
		kv:     kv,
		vals:   validation.New(),
		logger: logger,
		now:    time.Now,
	}
}

// ValidateCache runs every check over the scope's stored records, in order:
// decodability, identity fields, the processed/summary invariant, duplicate
// ids, and sync timestamp sanity. IsValid is true iff no critical issue was
// found.
func (v *Validator) ValidateCache(ctx context.Context, scope domain.Scope) Report {
	start := v.now()
	var report Report

	videoIDs := make(map[string][]string) // videoId -> keys carrying it

	videoKeys, err := v.kv.ListKeys(ctx, store.VideoScopePrefix(scope))
	if err != nil {
		// Cannot enumerate at all: report the store itself as broken.
		report.Issues = append(report.Issues, Issue{
			Kind:     KindUndecodable,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("cannot list video records: %v", err),
		})
	}
	for _, key := range videoKeys {
		report.Metrics.EntriesChecked++
		report.Issues = append(report.Issues, v.checkVideo(ctx, key, videoIDs)...)
	}

	for id, keys := range videoIDs {
		if len(keys) > 1 {
			report.Issues = append(report.Issues, Issue{
				Kind:        KindDuplicateID,
				Severity:    SeverityWarning,
				Message:     fmt.Sprintf("video id %s stored under %d keys", id, len(keys)),
				AffectedKey: keys[1],
			})
		}
	}

	channelKeys, err := v.kv.ListKeys(ctx, store.ChannelScopePrefix(scope))
	if err != nil {
		report.Issues = append(report.Issues, Issue{
			Kind:     KindUndecodable,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("cannot list channel records: %v", err),
		})
	}
	for _, key := range channelKeys {
		report.Metrics.EntriesChecked++
		report.Issues = append(report.Issues, v.checkChannel(ctx, key)...)
	}

	report.Issues = append(report.Issues, v.checkSyncTimestamp(ctx, scope)...)

	report.IsValid = true
	for _, issue := range report.Issues {
		if issue.Severity == SeverityCritical {
			report.IsValid = false
			break
		}
	}
	report.Metrics.Duration = v.now().Sub(start)

	bySeverity := map[Severity]int{SeverityInfo: 0, SeverityWarning: 0, SeverityCritical: 0}
	for _, issue := range report.Issues {
		bySeverity[issue.Severity]++
	}
	for severity, count := range bySeverity {
		metrics.IntegrityIssues.WithLabelValues(string(severity)).Set(float64(count))
	}

	v.logger.Info("cache validation complete",
		"scope", scope,
		"entries", report.Metrics.EntriesChecked,
		"issues", len(report.Issues),
		"valid", report.IsValid)
	return report
}

func (v *Validator) checkVideo(ctx context.Context, key string, videoIDs map[string][]string) []Issue {
	raw, err := v.kv.Get(ctx, key)
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return []Issue{{
			Kind:        KindUndecodable,
			Severity:    SeverityCritical,
			Message:     fmt.Sprintf("unreadable record: %v", err),
			AffectedKey: key,
		}}
	}

	var rec domain.VideoRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return []Issue{{
			Kind:        KindUndecodable,
			Severity:    SeverityCritical,
			Message:     fmt.Sprintf("record does not decode: %v", err),
			AffectedKey: key,
		}}
	}

	var issues []Issue
	if err := v.vals.Validate(rec); err != nil {
		issues = append(issues, Issue{
			Kind:        KindMissingIdentity,
			Severity:    SeverityCritical,
			Message:     fmt.Sprintf("identity fields invalid: %v", err),
			AffectedKey: key,
		})
	} else {
		if rec.VideoID != "" {
			videoIDs[rec.VideoID] = append(videoIDs[rec.VideoID], key)
		}
		if rec.Title == "" {
			issues = append(issues, Issue{
				Kind:        KindMissingDisplay,
				Severity:    SeverityWarning,
				Message:     fmt.Sprintf("video %s has no title", rec.VideoID),
				AffectedKey: key,
			})
		}
		if rec.Processed && strings.TrimSpace(rec.Summary) == "" {
			issues = append(issues, Issue{
				Kind:        KindSummaryInvariant,
				Severity:    SeverityWarning,
				Message:     fmt.Sprintf("video %s marked processed without a summary", rec.VideoID),
				AffectedKey: key,
			})
		}
	}
	return issues
}

func (v *Validator) checkChannel(ctx context.Context, key string) []Issue {
	raw, err := v.kv.Get(ctx, key)
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return []Issue{{
			Kind:        KindUndecodable,
			Severity:    SeverityCritical,
			Message:     fmt.Sprintf("unreadable record: %v", err),
			AffectedKey: key,
		}}
	}

	var rec domain.ChannelRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return []Issue{{
			Kind:        KindUndecodable,
			Severity:    SeverityCritical,
			Message:     fmt.Sprintf("record does not decode: %v", err),
			AffectedKey: key,
		}}
	}

	var issues []Issue
	if err := v.vals.Validate(rec); err != nil {
		issues = append(issues, Issue{
			Kind:        KindMissingIdentity,
			Severity:    SeverityCritical,
			Message:     fmt.Sprintf("identity fields invalid: %v", err),
			AffectedKey: key,
		})
	} else if rec.Title == "" {
		issues = append(issues, Issue{
			Kind:        KindMissingDisplay,
			Severity:    SeverityWarning,
			Message:     fmt.Sprintf("channel %s has no title", rec.ChannelID),
			AffectedKey: key,
		})
	}
	return issues
}

func (v *Validator) checkSyncTimestamp(ctx context.Context, scope domain.Scope) []Issue {
	raw, err := v.kv.Get(ctx, store.LastSyncKey(scope))
	if err != nil {
		return nil // absent or unreadable: nothing to judge
	}

	var millis int64
	if _, err := fmt.Sscanf(string(raw), "%d", &millis); err != nil || millis <= 0 {
		return nil // repository already degrades this to zero
	}

	if time.UnixMilli(millis).After(v.now()) {
		return []Issue{{
			Kind:        KindClockSkew,
			Severity:    SeverityInfo,
			Message:     "last sync timestamp is in the future relative to the device clock",
			AffectedKey: store.LastSyncKey(scope),
		}}
	}
	return nil
}
