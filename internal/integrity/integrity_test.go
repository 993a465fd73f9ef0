package integrity

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/channelbriefapp/channelbrief-engine/internal/cache"
	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
	"github.com/channelbriefapp/channelbrief-engine/internal/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScope = domain.Scope("42")

type fixture struct {
	kv        store.KV
	repo      *cache.Repository
	validator *Validator
	recovery  *Recovery
}

func setup(t *testing.T) *fixture {
	return setupWithFraction(t, 0.5)
}

func setupWithFraction(t *testing.T, resetFraction float64) *fixture {
	t.Helper()

	kv, err := store.OpenBadger(filepath.Join(t.TempDir(), "integrity-db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	logger := slog.New(slog.DiscardHandler)
	repo := cache.NewRepository(kv, txn.NewManager(kv, logger), cache.RetentionPolicy{}, logger, store.NewNoopEmitter())
	validator := NewValidator(kv, logger)
	recovery := NewRecovery(kv, validator, repo, resetFraction, logger, store.NewNoopEmitter())

	return &fixture{kv: kv, repo: repo, validator: validator, recovery: recovery}
}

func storeVideo(t *testing.T, kv store.KV, v domain.VideoRecord) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), store.VideoKey(testScope, v.VideoID), raw))
}

func validVideo(id string) domain.VideoRecord {
	return domain.VideoRecord{
		VideoID:   id,
		ChannelID: "chan-1",
		Title:     "Video " + id,
		CreatedAt: time.Now().UTC(),
		Status:    domain.StatusPending,
	}
}

func issuesOf(report Report, kind IssueKind) []Issue {
	var out []Issue
	for _, issue := range report.Issues {
		if issue.Kind == kind {
			out = append(out, issue)
		}
	}
	return out
}

func TestValidateCleanCache(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	storeVideo(t, f.kv, validVideo("a"))
	storeVideo(t, f.kv, validVideo("b"))

	report := f.validator.ValidateCache(ctx, testScope)
	assert.True(t, report.IsValid)
	assert.Empty(t, report.Issues)
	assert.Equal(t, 2, report.Metrics.EntriesChecked)
}

func TestValidateDetectsMissingVideoID(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// Stored under a key but the payload carries no videoId.
	bad := map[string]any{"channelId": "chan-1", "title": "No identity"}
	raw, err := json.Marshal(bad)
	require.NoError(t, err)
	key := store.VideoKey(testScope, "phantom")
	require.NoError(t, f.kv.Set(ctx, key, raw))

	report := f.validator.ValidateCache(ctx, testScope)
	assert.False(t, report.IsValid)

	criticals := issuesOf(report, KindMissingIdentity)
	require.Len(t, criticals, 1)
	assert.Equal(t, SeverityCritical, criticals[0].Severity)
	assert.Equal(t, key, criticals[0].AffectedKey)
	assert.Equal(t, []string{key}, report.CriticalKeys())
}

func TestValidateDetectsUndecodablePayload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	key := store.VideoKey(testScope, "torn")
	require.NoError(t, f.kv.Set(ctx, key, []byte("{\"videoId\":")))

	report := f.validator.ValidateCache(ctx, testScope)
	assert.False(t, report.IsValid)

	criticals := issuesOf(report, KindUndecodable)
	require.Len(t, criticals, 1)
	assert.Equal(t, key, criticals[0].AffectedKey)
}

func TestValidateSummaryInvariantIsWarning(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	v := validVideo("incomplete")
	v.Processed = true
	v.Summary = "   "
	storeVideo(t, f.kv, v)

	report := f.validator.ValidateCache(ctx, testScope)
	// Warnings never make the cache invalid.
	assert.True(t, report.IsValid)

	warnings := issuesOf(report, KindSummaryInvariant)
	require.Len(t, warnings, 1)
	assert.Equal(t, SeverityWarning, warnings[0].Severity)
}

func TestValidateDetectsDuplicateID(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// Same payload id stored under two different keys.
	v := validVideo("dup")
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, f.kv.Set(ctx, store.VideoKey(testScope, "dup"), raw))
	require.NoError(t, f.kv.Set(ctx, store.VideoKey(testScope, "dup-copy"), raw))

	report := f.validator.ValidateCache(ctx, testScope)
	assert.True(t, report.IsValid)
	assert.Len(t, issuesOf(report, KindDuplicateID), 1)
}

func TestValidateFutureSyncTimestampIsInfo(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.validator.now = func() time.Time { return fixed }

	require.NoError(t, f.repo.SetLastSyncAt(ctx, testScope, fixed.Add(time.Hour)))

	report := f.validator.ValidateCache(ctx, testScope)
	assert.True(t, report.IsValid)

	infos := issuesOf(report, KindClockSkew)
	require.Len(t, infos, 1)
	assert.Equal(t, SeverityInfo, infos[0].Severity)
}

func TestRepairDeletesBadRecordKeepsGoodOnes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := range 5 {
		storeVideo(t, f.kv, validVideo(fmt.Sprintf("good-%d", i)))
	}
	require.NoError(t, f.kv.Set(ctx, store.VideoKey(testScope, "bad"), []byte("not json at all")))

	ok := f.recovery.ValidateAndRepair(ctx, testScope)
	assert.True(t, ok)

	videos := f.repo.Videos(ctx, testScope)
	assert.Len(t, videos, 5)

	_, err := f.kv.Get(ctx, store.VideoKey(testScope, "bad"))
	assert.True(t, store.IsNotFound(err))
}

func TestRepairClearsProcessedOnSummaryViolation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	v := validVideo("broken-summary")
	v.Processed = true
	v.Summary = ""
	v.Status = domain.StatusDone
	storeVideo(t, f.kv, v)

	ok := f.recovery.ValidateAndRepair(ctx, testScope)
	assert.True(t, ok)

	videos := f.repo.Videos(ctx, testScope)
	require.Len(t, videos, 1)
	assert.False(t, videos[0].Processed)
	assert.Equal(t, domain.StatusPending, videos[0].Status)
}

func TestRepairFullResetWhenMajorityBroken(t *testing.T) {
	f := setupWithFraction(t, 0.5)
	ctx := context.Background()

	storeVideo(t, f.kv, validVideo("lonely-survivor"))
	for i := range 3 {
		key := store.VideoKey(testScope, fmt.Sprintf("wreck-%d", i))
		require.NoError(t, f.kv.Set(ctx, key, []byte("####")))
	}

	ok := f.recovery.ValidateAndRepair(ctx, testScope)
	assert.True(t, ok)

	// Majority broken: the whole scope is gone, not just the bad records.
	assert.Empty(t, f.repo.Videos(ctx, testScope))
	// And the next sync is forced to be a full one.
	assert.True(t, f.repo.ChannelListChanged(ctx, testScope))
}

func TestRepairHealthyCacheSetsStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	storeVideo(t, f.kv, validVideo("fine"))

	ok := f.recovery.ValidateAndRepair(ctx, testScope)
	assert.True(t, ok)
	assert.Equal(t, domain.ValidationHealthy, f.repo.ValidationStatus())
}
