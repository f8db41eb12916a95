package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

// MetricsTestSuite tests the collectors.
type MetricsTestSuite struct {
	suite.Suite
	registry *prometheus.Registry
	metrics  *Metrics
}

// SetupTest runs before each test.
func (s *MetricsTestSuite) SetupTest() {
	s.registry = prometheus.NewRegistry()
	s.metrics = New(s.registry)
}

// TestCounters tests that events are recorded.
func (s *MetricsTestSuite) TestCounters() {
	s.metrics.CacheHit()
	s.metrics.CacheHit()
	s.metrics.CacheMiss()
	s.metrics.Coalesced()
	s.metrics.Rendered(ResultOK, 20*time.Millisecond)
	s.metrics.Rendered(ResultFailure, time.Second)
	s.metrics.Pruned(3)
	s.metrics.Pruned(0)

	s.Equal(2.0, testutil.ToFloat64(s.metrics.cacheHits))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.cacheMisses))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.coalesced))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.renders.WithLabelValues(ResultOK)))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.renders.WithLabelValues(ResultFailure)))
	s.Equal(3.0, testutil.ToFloat64(s.metrics.pruned))

	families, err := s.registry.Gather()
	s.Require().NoError(err)
	var observations uint64
	for _, family := range families {
		if family.GetName() == "dfchart_render_duration_seconds" {
			observations = family.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	s.Equal(uint64(2), observations)
}

// TestNilMetrics tests that a nil receiver is safe.
func (s *MetricsTestSuite) TestNilMetrics() {
	var m *Metrics
	s.NotPanics(func() {
		m.CacheHit()
		m.CacheMiss()
		m.Coalesced()
		m.Rendered(ResultNoData, time.Millisecond)
		m.Pruned(1)
	})
}

// TestUnregistered tests construction without a registry.
func (s *MetricsTestSuite) TestUnregistered() {
	m := New(nil)
	m.CacheHit()
	s.Equal(1.0, testutil.ToFloat64(m.cacheHits))
}

func TestMetricsTestSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}
