package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "buscluster"

// Detection outcomes used as the "outcome" label.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid_input"
	OutcomeFailed  = "computation_failure"
)

// Metrics records detection runs on a private registry so that tests and
// multiple servers in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	clusters prometheus.Histogram
	noise    prometheus.Histogram
	levels   *prometheus.CounterVec
}

// NewMetrics creates and registers the detection metrics together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Detection requests by transport and outcome.",
		}, []string{"transport", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "Time spent clustering and scoring one snapshot.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"transport"}),
		clusters: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "clusters_per_snapshot",
			Help:      "Number of clusters found per snapshot.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		noise: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "noise_points_per_snapshot",
			Help:      "Number of buses assigned to no cluster per snapshot.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		}),
		levels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cluster_risk_total",
			Help:      "Analysed clusters by risk level.",
		}, []string{"level"}),
	}
	reg.MustRegister(
		m.requests, m.duration, m.clusters, m.noise, m.levels,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest counts one detection request and its latency.
func (m *Metrics) ObserveRequest(transport, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(transport, outcome).Inc()
	m.duration.WithLabelValues(transport).Observe(elapsed.Seconds())
}

// ObserveResult records the shape of a successful detection.
func (m *Metrics) ObserveResult(clusters, noise int, levels []string) {
	if m == nil {
		return
	}
	m.clusters.Observe(float64(clusters))
	m.noise.Observe(float64(noise))
	for _, l := range levels {
		m.levels.WithLabelValues(l).Inc()
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
