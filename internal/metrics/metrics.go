// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

// Package metrics declares the Prometheus instrumentation for the sync
// engine. Collectors register on the default registry via promauto and are
// exposed on the daemon-mode /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync engine metrics
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stravasync_runs_total",
			Help: "Total sync runs by result",
		},
		[]string{"result"}, // "success", "partial", "error"
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stravasync_run_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 10), // 0.1s .. ~7h, covers cooldown-heavy runs
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stravasync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last fully successful sync run",
		},
	)

	PagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stravasync_pages_fetched_total",
			Help: "Total activity summary pages fetched",
		},
	)

	ActivitiesMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stravasync_activities_merged_total",
			Help: "Total new activity records merged into the dataset",
		},
	)

	DetailFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stravasync_detail_fetches_total",
			Help: "Total activity detail fetches by source",
		},
		[]string{"source"}, // "api", "checkpoint"
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stravasync_rate_limit_hits_total",
			Help: "Provider rate-limit responses by kind",
		},
		[]string{"kind"}, // "window", "daily"
	)

	// Provider client metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stravasync_provider_requests_total",
			Help: "Provider API requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"}, // outcome: "ok", "error", "rejected"
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stravasync_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Auth metrics
	TokenRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stravasync_token_refreshes_total",
			Help: "Total OAuth token refresh exchanges performed",
		},
	)
)

// RecordRun observes one finished sync run.
func RecordRun(result string, duration time.Duration) {
	SyncRuns.WithLabelValues(result).Inc()
	SyncDuration.Observe(duration.Seconds())
	if result == "success" {
		SyncLastSuccess.SetToCurrentTime()
	}
}
