// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Location ingestion throughput and latency
// - Geofence transition detection
// - WebSocket push channels
// - Database query performance (DuckDB)
// - API endpoint latency and throughput

var (
	// Ingestion Metrics
	IngestSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_samples_total",
			Help: "Total number of location samples processed by the ingestion pipeline",
		},
		[]string{"result"}, // "ok", "storage_error"
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "End-to-end duration of one ingestion pass (append, fan-out, fence evaluation)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// Geofence Metrics
	GeofenceTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geofence_transitions_total",
			Help: "Total number of detected geofence transitions",
		},
		[]string{"kind"}, // "ENTER", "EXIT"
	)

	GeofenceLookupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geofence_lookup_failures_total",
			Help: "Total number of fence snapshot queries that failed (evaluation skipped)",
		},
	)

	// WebSocket Metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WebSocketMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_published_total",
			Help: "Total number of messages delivered to subscriber buffers",
		},
		[]string{"type"}, // "location_update", "geofence_alert", "command"
	)

	WebSocketMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Total number of messages dropped because a subscriber buffer was full",
		},
		[]string{"type"},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
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

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordIngest records one completed ingestion pass.
func RecordIngest(result string, duration time.Duration) {
	IngestSamplesTotal.WithLabelValues(result).Inc()
	IngestDuration.Observe(duration.Seconds())
}

// RecordTransition records one detected geofence transition.
func RecordTransition(kind string) {
	GeofenceTransitionsTotal.WithLabelValues(kind).Inc()
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
