// Package metrics registers the Prometheus series named in spec.md §6,
// following the teacher's internal/staging/stage/metrics.go idiom of one
// package-level promauto block per concern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LatencyBuckets is shared across every histogram in this package.
var LatencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// DestinationTableLabels label events processed by destination and table.
var DestinationTableLabels = []string{"destination", "table"}

var (
	// EventsProcessed implements cdc_events_processed_total.
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdc_events_processed_total",
		Help: "events committed to a destination, by destination and table",
	}, DestinationTableLabels)

	// ReplicationLagSeconds implements cdc_replication_lag_seconds.
	ReplicationLagSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cdc_replication_lag_seconds",
		Help: "now minus the committed source timestamp, by destination",
	}, []string{"destination"})

	// EventsPerSecond implements cdc_events_per_second.
	EventsPerSecond = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cdc_events_per_second",
		Help: "moving-average throughput, by destination",
	}, []string{"destination"})

	// ErrorsTotal implements cdc_errors_total.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdc_errors_total",
		Help: "errors by destination and category",
	}, []string{"destination", "error_category"})

	// BacklogDepth implements cdc_backlog_depth.
	BacklogDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cdc_backlog_depth",
		Help: "queued events awaiting a destination, by destination",
	}, []string{"destination"})

	// RetryAttemptsTotal implements cdc_retry_attempts_total.
	RetryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdc_retry_attempts_total",
		Help: "retry attempts by destination",
	}, []string{"destination"})

	// DLQEventsTotal implements cdc_dlq_events_total.
	DLQEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdc_dlq_events_total",
		Help: "events routed to the DLQ, by destination and reason",
	}, []string{"destination", "reason"})
)
