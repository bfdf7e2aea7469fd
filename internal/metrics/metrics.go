// Watchpost - Security Event Risk Scoring and Threat Monitoring
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package metrics provides Prometheus instrumentation for the scoring
// pipeline, the threat monitor, the rate limiter, and the ingest queue.
// All collectors are registered with the default registry via promauto and
// exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scoring pipeline metrics
	EventsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchpost_events_scored_total",
			Help: "Total number of events run through the risk scoring engine",
		},
		[]string{"action", "risk_level"},
	)

	AnomaliesFlagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchpost_anomalies_flagged_total",
			Help: "Total number of events classified as anomalous",
		},
	)

	RiskScoreDistribution = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watchpost_risk_score",
			Help:    "Distribution of computed risk scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	HistoryLookupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchpost_history_lookup_failures_total",
			Help: "Total number of event store lookups that failed and were scored fail-open",
		},
	)

	// Threat monitor metrics
	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchpost_alerts_raised_total",
			Help: "Total number of security alerts raised",
		},
		[]string{"alert_type", "severity"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchpost_alerts_suppressed_total",
			Help: "Total number of alerts suppressed by the cooldown window",
		},
		[]string{"alert_type"},
	)

	ActiveThreatKeys = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watchpost_active_threat_keys",
			Help: "Current number of tracked per-key offense counters",
		},
		[]string{"kind"}, // "ip", "user"
	)

	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchpost_sweep_runs_total",
			Help: "Total number of periodic sweep executions",
		},
		[]string{"sweep", "outcome"}, // sweep: "trend", "cleanup"; outcome: "ok", "error"
	)

	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchpost_sweep_duration_seconds",
			Help:    "Duration of periodic sweep executions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sweep"},
	)

	// Rate limiter metrics
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchpost_ratelimit_decisions_total",
			Help: "Total number of rate-limit admission decisions",
		},
		[]string{"category", "decision"}, // decision: "allow", "deny"
	)

	RateLimitBuckets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchpost_ratelimit_buckets",
			Help: "Current number of live token buckets",
		},
	)

	// Ingest queue metrics
	IngestQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchpost_ingest_queue_depth",
			Help: "Current depth of the asynchronous ingest queue",
		},
	)

	IngestDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchpost_ingest_dropped_total",
			Help: "Total number of events dropped because the ingest queue was full",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchpost_notifications_sent_total",
			Help: "Total number of alert notifications handed to channels",
		},
		[]string{"channel", "outcome"}, // outcome: "ok", "error", "dropped"
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchpost_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchpost_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)
)

// ObserveSweep records one sweep execution.
func ObserveSweep(sweep string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SweepRuns.WithLabelValues(sweep, outcome).Inc()
	SweepDuration.WithLabelValues(sweep).Observe(time.Since(start).Seconds())
}
