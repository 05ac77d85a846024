// Package observability provides Prometheus metrics, OpenTelemetry tracing
// setup, and HTTP middleware for monitoring the watchtracker service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// StoreBuckets defines histogram buckets suited for single-key database
// round trips, ranging from 0.5ms to 5s.
var StoreBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchtracker_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchtracker_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// EntriesAddedTotal counts entries created by add_entry.
	EntriesAddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watchtracker_entries_added_total",
			Help: "Entries created",
		},
	)

	// AddConflictsTotal counts inserts that lost a race and were resolved
	// by re-reading the winner.
	AddConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watchtracker_add_conflicts_total",
			Help: "Concurrent add_entry conflicts",
		},
	)

	// StoreOperationDuration records entry store latency by backend and operation.
	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchtracker_store_operation_duration_seconds",
			Help:    "Entry store operation duration",
			Buckets: StoreBuckets,
		},
		[]string{"backend", "operation"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		EntriesAddedTotal,
		AddConflictsTotal,
		StoreOperationDuration,
	)
}
