// Package metrics exposes staging and drain counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pdurable"

// Stage outcome labels.
const (
	StageOK       = "ok"
	StageReserved = "already_reserved"
	StageError    = "error"
)

// Metrics holds the collectors for one process. All methods are safe on a nil
// receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	staged        *prometheus.CounterVec
	confirmed     prometheus.Counter
	retained      prometheus.Counter
	stale         prometheus.Counter
	drainRuns     *prometheus.CounterVec
	drainDuration prometheus.Histogram
	queueDepth    prometheus.Gauge
}

// New creates Metrics on a private registry together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		staged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_total",
			Help:      "Stage attempts by outcome.",
		}, []string{"outcome"}),
		confirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drain_confirmed_total",
			Help:      "Staged transactions confirmed and removed from the queue.",
		}),
		retained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drain_retained_total",
			Help:      "Staged transactions kept in the queue after a failed broadcast.",
		}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drain_stale_total",
			Help:      "Retained transactions whose nonce has moved past their anchor.",
		}),
		drainRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drain_runs_total",
			Help:      "Drain passes by result.",
		}, []string{"result"}),
		drainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "drain_duration_seconds",
			Help:      "Wall time of a drain pass.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Records currently in the staging queue.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.staged,
		m.confirmed,
		m.retained,
		m.stale,
		m.drainRuns,
		m.drainDuration,
		m.queueDepth,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStage counts one stage attempt.
func (m *Metrics) ObserveStage(outcome string) {
	if m == nil {
		return
	}
	m.staged.WithLabelValues(outcome).Inc()
}

// ObserveDrain records a completed drain pass.
func (m *Metrics) ObserveDrain(confirmed, retained, stale int, took time.Duration) {
	if m == nil {
		return
	}
	m.drainRuns.WithLabelValues("ok").Inc()
	m.confirmed.Add(float64(confirmed))
	m.retained.Add(float64(retained))
	m.stale.Add(float64(stale))
	m.drainDuration.Observe(took.Seconds())
}

// ObserveDrainError records a drain pass that did not rewrite the queue.
func (m *Metrics) ObserveDrainError() {
	if m == nil {
		return
	}
	m.drainRuns.WithLabelValues("error").Inc()
}

// SetQueueDepth sets the queue depth gauge.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
