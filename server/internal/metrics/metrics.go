package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fridgekeep/fridgekeep/server/internal/store"
)

const namespace = "fridgekeep"

// Metrics holds the server's Prometheus collectors on a private registry.
// It implements store.Observer, sweeper.Recorder and analysis.Listener.
type Metrics struct {
	registry *prometheus.Registry

	registered    prometheus.Counter
	removed       *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	sweepEvicted  prometheus.Counter
	analyses      *prometheus.CounterVec
}

// New creates the collectors. live reports the current number of store
// entries; it is sampled at scrape time.
func New(live func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		registered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_registered_total",
			Help:      "Resources registered with the store, including overwrites.",
		}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_removed_total",
			Help:      "Resources removed from the store by reason.",
		}, []string{"reason"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Time spent in one eviction sweep, including file removal.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		sweepEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_evicted_total",
			Help:      "Resources evicted by age-based sweeps.",
		}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_total",
			Help:      "Captures handed to the analyzer by outcome.",
		}, []string{"outcome"}),
	}

	// Pre-create label values so they are exported as 0 before the first removal.
	for _, r := range []store.Reason{store.ReasonDeleted, store.ReasonEvicted, store.ReasonReplaced} {
		m.removed.WithLabelValues(string(r))
	}
	for _, o := range []string{"analyzed", "failed"} {
		m.analyses.WithLabelValues(o)
	}

	m.registry.MustRegister(
		m.registered,
		m.removed,
		m.sweepDuration,
		m.sweepEvicted,
		m.analyses,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resources_live",
			Help:      "Resources currently tracked by the store.",
		}, func() float64 { return float64(live()) }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ResourceRegistered implements store.Observer.
func (m *Metrics) ResourceRegistered(store.Metadata) {
	m.registered.Inc()
}

// ResourceRemoved implements store.Observer.
func (m *Metrics) ResourceRemoved(_ store.Metadata, reason store.Reason) {
	m.removed.WithLabelValues(string(reason)).Inc()
}

// ObserveSweep implements sweeper.Recorder.
func (m *Metrics) ObserveSweep(evicted int, took time.Duration) {
	m.sweepDuration.Observe(took.Seconds())
	m.sweepEvicted.Add(float64(evicted))
}

// AnalysisFinished implements analysis.Listener.
func (m *Metrics) AnalysisFinished(_ store.Metadata, _ int, err error) {
	outcome := "analyzed"
	if err != nil {
		outcome = "failed"
	}
	m.analyses.WithLabelValues(outcome).Inc()
}
