// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package metrics exposes Prometheus instrumentation for the engine:
// session lifecycle, answer flow, item selection, DuckDB queries, the
// event bus, the live feed, and item imports. All collectors are
// registered on the default registry via promauto and served by the
// /metrics endpoint.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session Metrics
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caliper_sessions_started_total",
			Help: "Total number of test sessions started",
		},
		[]string{"mode"}, // "CAT", "FIXED"
	)

	SessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caliper_sessions_finished_total",
			Help: "Total number of test sessions finished",
		},
		[]string{"reason"}, // "se_threshold", "target_reached", "item_pool_exhausted", "submitted"
	)

	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caliper_answers_total",
			Help: "Total number of graded answers",
		},
		[]string{"correct"}, // "true", "false"
	)

	AbilityUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caliper_ability_updates_total",
			Help: "Total number of per-topic ability profile updates",
		},
	)

	// Selector Metrics
	SelectorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caliper_selector_duration_seconds",
			Help:    "Duration of item selection passes in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	SelectorFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caliper_selector_fallbacks_total",
			Help: "Total number of selections that fell back to an uncalibrated random pick",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duckdb_retries_total",
			Help: "Total number of transient-error retries against DuckDB",
		},
	)

	// Catalogue Cache Metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caliper_catalog_cache_hits_total",
			Help: "Total number of catalogue snapshot cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caliper_catalog_cache_misses_total",
			Help: "Total number of catalogue snapshot cache misses (rebuild required)",
		},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caliper_events_published_total",
			Help: "Total number of session events published on the bus",
		},
		[]string{"type"}, // "session_started", "item_served", "item_answered", "session_finished"
	)

	JournalAppends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caliper_journal_appends_total",
			Help: "Total number of events appended to the session journal",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	// Import Metrics
	ImportRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caliper_import_records_total",
			Help: "Total number of item bank records processed by the importer",
		},
		[]string{"outcome"}, // "imported", "skipped"
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_requests_in_flight",
			Help: "Current number of API requests being served",
		},
	)
)

// ObserveDBQuery records the elapsed time of a database operation.
// Call it with defer at the top of the operation:
//
//	defer metrics.ObserveDBQuery("load_catalog", time.Now())
func ObserveDBQuery(operation string, start time.Time) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveSelection records one selector pass.
func ObserveSelection(start time.Time, fallback bool) {
	SelectorDuration.Observe(time.Since(start).Seconds())
	if fallback {
		SelectorFallbacks.Inc()
	}
}

// RecordAnswer counts a graded answer by correctness.
func RecordAnswer(correct bool) {
	AnswersTotal.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest moves the in-flight request gauge. Call with true
// on entry and defer the false call.
func TrackActiveRequest(active bool) {
	if active {
		APIRequestsInFlight.Inc()
	} else {
		APIRequestsInFlight.Dec()
	}
}
