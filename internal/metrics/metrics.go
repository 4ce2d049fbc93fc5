// Package metrics is the observability sink for the signature pipeline.
// Pipeline stages emit dotted event names (e.g. "signatures.created")
// which land in a single labeled Prometheus counter, plus timers for batch
// invocations. Scraped via /metrics on the service API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dotted event names emitted by the pipeline.
const (
	EventMatched      = "signatures.matched"
	EventCaughtUp     = "signatures.caught_up"
	EventCreated      = "signatures.created"
	EventDuplicate    = "signatures.duplicate"
	EventIllegitimate = "signatures.illegitimate"
	EventAborted      = "signatures.aborted"
	EventArchived     = "signatures.archived"
	EventArchiveError = "signatures.archive_error"
	EventOptIn        = "signatures.opt_in"
	EventAlertSent    = "fraud.alert_sent"
	EventAlertFailed  = "fraud.alert_failed"
	EventAlertCrossed = "fraud.threshold_crossed"
	EventBatchError   = "batch.error"
)

var (
	PipelineEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petitions_pipeline_events_total",
			Help: "Pipeline events keyed by dotted event name",
		},
		[]string{"event"},
	)

	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "petitions_batch_duration_seconds",
			Help:    "Duration of one batch invocation",
			Buckets: prometheus.DefBuckets,
		},
	)

	BatchRecordsProcessed = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "petitions_batch_records",
			Help:    "Matched records handled per batch invocation",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)
)

// Register registers all Prometheus collectors. Call once at startup.
func Register() {
	prometheus.MustRegister(PipelineEventsTotal)
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(BatchRecordsProcessed)
}

// Event increments the counter for a dotted event name.
func Event(name string) {
	PipelineEventsTotal.WithLabelValues(name).Inc()
}

// EventAdd increments the counter for a dotted event name by n.
func EventAdd(name string, n float64) {
	PipelineEventsTotal.WithLabelValues(name).Add(n)
}

// ObserveBatch records the duration and size of one batch invocation.
func ObserveBatch(start time.Time, records int) {
	BatchDuration.Observe(time.Since(start).Seconds())
	BatchRecordsProcessed.Observe(float64(records))
}
