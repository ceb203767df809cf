/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics and request instrumentation.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP requests by method, endpoint and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shuttlehub_api_requests_total",
		Help: "Total number of HTTP API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes request latency by method, endpoint and status.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shuttlehub_api_request_duration_seconds",
		Help:    "HTTP API request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shuttlehub_api_active_connections",
		Help: "Number of in-flight HTTP requests.",
	})

	// WebSocketConnections gauges connected live-update clients.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shuttlehub_websocket_connections",
		Help: "Number of connected WebSocket clients.",
	})

	// DatabaseQueryDuration observes gorm operation latency by operation and table.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shuttlehub_db_query_duration_seconds",
		Help:    "Database query latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts database errors by operation and kind.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shuttlehub_db_errors_total",
		Help: "Total number of database errors.",
	}, []string{"operation", "kind"})

	// DatabaseConnectionsActive gauges open connections in the pool.
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shuttlehub_db_connections_active",
		Help: "Open database connections.",
	})

	// TimetableImportsTotal counts timetable imports by outcome.
	TimetableImportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shuttlehub_timetable_imports_total",
		Help: "Total number of timetable import attempts by outcome.",
	}, []string{"status"})

	// TimetableImportDuration observes end-to-end import latency.
	TimetableImportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shuttlehub_timetable_import_duration_seconds",
		Help:    "Timetable import latency in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// RegistrationsTotal counts passenger registrations by outcome.
	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shuttlehub_registrations_total",
		Help: "Total number of registration attempts by outcome.",
	}, []string{"outcome"})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
