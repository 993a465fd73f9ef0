// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "channelbrief"

var (
	// SyncRunsTotal tracks sync passes.
	// Labels:
	//   - strategy: full, incremental, cached_only
	//   - result: ok, fallback, error
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of sync passes",
		},
		[]string{"strategy", "result"},
	)

	// SyncDurationSeconds tracks end-to-end sync latency.
	SyncDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "End-to-end sync pass duration",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// VideosMergedTotal counts records changed by merge passes.
	VideosMergedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "videos_merged_total",
			Help:      "Total number of video records changed by merges",
		},
	)

	// RecoveredKeysTotal tracks crash-recovery verdicts per staged key.
	// Labels:
	//   - verdict: kept_old, kept_new, discarded
	RecoveredKeysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovered_keys_total",
			Help:      "Total number of keys classified during transaction recovery",
		},
		[]string{"verdict"},
	)

	// IntegrityIssues reports the last validation pass's issue counts.
	// Labels:
	//   - severity: info, warning, critical
	IntegrityIssues = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "integrity_issues",
			Help:      "Issues found by the most recent cache validation pass",
		},
		[]string{"severity"},
	)

	// RetentionRemovedTotal counts records expired by retention cleanup.
	RetentionRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_removed_total",
			Help:      "Total number of video records removed by retention",
		},
	)

	// SSEClients reports currently connected event stream clients.
	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sse_clients",
			Help:      "Currently connected SSE clients",
		},
	)

	// SearchQueriesTotal tracks summary index queries.
	// Labels:
	//   - status: success, error
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_queries_total",
			Help:      "Total number of summary search queries",
		},
		[]string{"status"},
	)
)

// Sync strategy constants.
const (
	SyncStrategyFull        = "full"
	SyncStrategyIncremental = "incremental"
	SyncStrategyCachedOnly  = "cached_only"
)

// Sync result constants.
const (
	SyncResultOK       = "ok"
	SyncResultFallback = "fallback"
	SyncResultError    = "error"
)

// Recovery verdict constants.
const (
	VerdictKeptOld   = "kept_old"
	VerdictKeptNew   = "kept_new"
	VerdictDiscarded = "discarded"
)

// Search status constants.
const (
	SearchStatusSuccess = "success"
	SearchStatusError   = "error"
)
