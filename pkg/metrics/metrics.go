// Package metrics exposes render cache counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dfchart"

// Render results used as the "result" label.
const (
	ResultOK      = "ok"
	ResultNoData  = "no_data"
	ResultFailure = "failure"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	coalesced      prometheus.Counter
	renders        *prometheus.CounterVec
	renderDuration prometheus.Histogram
	pruned         prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Chart requests served from an existing artifact.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Chart requests that had to render an artifact.",
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "coalesced_total",
			Help:      "Cache misses whose render was shared between concurrent callers.",
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "total",
			Help:      "Render attempts by result.",
		}, []string{"result"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "duration_seconds",
			Help:      "Time spent producing an artifact, including store reads.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "pruned_total",
			Help:      "Artifacts removed by expiry.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.cacheHits, m.cacheMisses, m.coalesced, m.renders, m.renderDuration, m.pruned)
	}
	return m
}

// CacheHit counts an artifact served from disk.
func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

// CacheMiss counts a request that needs a render.
func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

// Coalesced counts a miss whose render was shared.
func (m *Metrics) Coalesced() {
	if m != nil {
		m.coalesced.Inc()
	}
}

// Rendered records one render attempt.
func (m *Metrics) Rendered(result string, elapsed time.Duration) {
	if m != nil {
		m.renders.WithLabelValues(result).Inc()
		m.renderDuration.Observe(elapsed.Seconds())
	}
}

// Pruned counts expired artifacts removed.
func (m *Metrics) Pruned(count int) {
	if m != nil && count > 0 {
		m.pruned.Add(float64(count))
	}
}
