// Package metrics exposes Prometheus instruments for the enrichment pipeline.
// All methods are nil-safe so components can run without metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the webhook, workers and directory calls.
type Metrics struct {
	// Enrichment requests published by the webhook, by result
	RequestsPublished *prometheus.CounterVec

	// Terminal outcomes per consumed message: stored, dead_lettered
	MessageOutcomes *prometheus.CounterVec

	// Attempts by result: success, transient, terminal
	EnrichmentAttempts *prometheus.CounterVec

	// Time from dispatch to terminal outcome
	ProcessingLatency prometheus.Histogram

	// Directory API latency by call and outcome
	DirectoryLatency *prometheus.HistogramVec

	// Queued messages per partition lane
	LaneBacklog *prometheus.GaugeVec

	// Partition pauses caused by a full lane
	PartitionPauses prometheus.Counter

	// Dead-letter publish attempts by result
	DeadLetterPublishes *prometheus.CounterVec
}

// NewWithRegistry registers the instruments with reg; tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "user_onboarding_requests_published_total",
			Help: "Enrichment requests published to the broker by result",
		}, []string{"result"}), // result: "published", "unavailable"

		MessageOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "user_onboarding_message_outcomes_total",
			Help: "Terminal outcomes of consumed enrichment requests",
		}, []string{"outcome"}),

		EnrichmentAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "user_onboarding_enrichment_attempts_total",
			Help: "Enrichment attempts by result and error kind",
		}, []string{"result", "kind"}),

		ProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "user_onboarding_processing_duration_seconds",
			Help:    "Duration from dispatch to terminal outcome, including backoff",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		DirectoryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "user_onboarding_directory_request_duration_seconds",
			Help:    "Duration of directory API calls",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10},
		}, []string{"call", "outcome"}), // call: "search", "groups", "app_links"

		LaneBacklog: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "user_onboarding_lane_backlog",
			Help: "Messages queued per partition lane",
		}, []string{"partition"}),

		PartitionPauses: factory.NewCounter(prometheus.CounterOpts{
			Name: "user_onboarding_partition_pauses_total",
			Help: "Number of times a partition was paused for backpressure",
		}),

		DeadLetterPublishes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "user_onboarding_dead_letter_publishes_total",
			Help: "Dead-letter publish attempts by result",
		}, []string{"result"}),
	}
}

// IncPublished records a webhook publish result.
func (m *Metrics) IncPublished(result string) {
	if m != nil {
		m.RequestsPublished.WithLabelValues(result).Inc()
	}
}

// IncOutcome records a terminal message outcome.
func (m *Metrics) IncOutcome(outcome string) {
	if m != nil {
		m.MessageOutcomes.WithLabelValues(outcome).Inc()
	}
}

// IncAttempt records one enrichment attempt.
func (m *Metrics) IncAttempt(result, kind string) {
	if m != nil {
		m.EnrichmentAttempts.WithLabelValues(result, kind).Inc()
	}
}

// ObserveProcessing records the time a message spent in processing.
func (m *Metrics) ObserveProcessing(d time.Duration) {
	if m != nil {
		m.ProcessingLatency.Observe(d.Seconds())
	}
}

// ObserveDirectoryCall records the duration of one directory request.
func (m *Metrics) ObserveDirectoryCall(call, outcome string, d time.Duration) {
	if m != nil {
		m.DirectoryLatency.WithLabelValues(call, outcome).Observe(d.Seconds())
	}
}

// SetLaneBacklog records the queue depth of a partition lane.
func (m *Metrics) SetLaneBacklog(partition int32, n int) {
	if m != nil {
		m.LaneBacklog.WithLabelValues(strconv.Itoa(int(partition))).Set(float64(n))
	}
}

// IncPartitionPause records a backpressure pause.
func (m *Metrics) IncPartitionPause() {
	if m != nil {
		m.PartitionPauses.Inc()
	}
}

// IncDeadLetterPublish records a dead-letter publish attempt.
func (m *Metrics) IncDeadLetterPublish(result string) {
	if m != nil {
		m.DeadLetterPublishes.WithLabelValues(result).Inc()
	}
}
