package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncPublished("published")
	m.IncPublished("published")
	m.IncOutcome("stored")
	m.IncAttempt("transient", "API")
	m.SetLaneBacklog(3, 7)
	m.IncPartitionPause()
	m.IncDeadLetterPublish("failed")
	m.ObserveProcessing(time.Second)
	m.ObserveDirectoryCall("search", "ok", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsPublished.WithLabelValues("published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessageOutcomes.WithLabelValues("stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnrichmentAttempts.WithLabelValues("transient", "API")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.LaneBacklog.WithLabelValues("3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PartitionPauses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeadLetterPublishes.WithLabelValues("failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ProcessingLatency))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncPublished("published")
		m.IncOutcome("stored")
		m.IncAttempt("success", "")
		m.ObserveProcessing(time.Second)
		m.ObserveDirectoryCall("groups", "ok", time.Millisecond)
		m.SetLaneBacklog(0, 1)
		m.IncPartitionPause()
		m.IncDeadLetterPublish("published")
	})
}
