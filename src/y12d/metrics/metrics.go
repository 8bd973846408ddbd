// Package metrics collects Prometheus counters and histograms for y12d.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can create as many as they like
type Metrics struct {
	registry            *prometheus.Registry
	jobsCreatedTotal    *prometheus.CounterVec
	jobStatusTotal      *prometheus.CounterVec
	phaseSeconds        *prometheus.HistogramVec
	kernelConfigTotal   *prometheus.CounterVec
	dispatchTotal       *prometheus.CounterVec
	imageUploadBytes    prometheus.Histogram
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New constructs a metrics registry and registers all collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()

	jobsCreatedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "y12",
			Subsystem: "job",
			Name:      "created_total",
			Help:      "Total number of build jobs created.",
		},
		[]string{"distro", "mode"},
	)
	jobStatusTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "y12",
			Subsystem: "job",
			Name:      "status_total",
			Help:      "Total job status transitions.",
		},
		[]string{"status"},
	)
	phaseSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "y12",
			Subsystem: "job",
			Name:      "phase_duration_seconds",
			Help:      "Time spent in each orchestrator phase.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"phase"},
	)
	kernelConfigTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "y12",
			Subsystem: "kernel_config",
			Name:      "generated_total",
			Help:      "Kernel config fragments by source (ai, fallback, fallback_error).",
		},
		[]string{"source"},
	)
	dispatchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "y12",
			Subsystem: "dispatch",
			Name:      "total",
			Help:      "External build dispatch attempts by result.",
		},
		[]string{"result"},
	)
	imageUploadBytes := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "y12",
			Subsystem: "image",
			Name:      "upload_bytes",
			Help:      "Size of uploaded final images.",
			Buckets:   prometheus.ExponentialBuckets(64<<20, 2, 8),
		},
	)
	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "y12",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"method", "route", "code"},
	)
	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "y12",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	registry.MustRegister(
		jobsCreatedTotal,
		jobStatusTotal,
		phaseSeconds,
		kernelConfigTotal,
		dispatchTotal,
		imageUploadBytes,
		httpRequestsTotal,
		httpRequestDuration,
	)

	return &Metrics{
		registry:            registry,
		jobsCreatedTotal:    jobsCreatedTotal,
		jobStatusTotal:      jobStatusTotal,
		phaseSeconds:        phaseSeconds,
		kernelConfigTotal:   kernelConfigTotal,
		dispatchTotal:       dispatchTotal,
		imageUploadBytes:    imageUploadBytes,
		httpRequestsTotal:   httpRequestsTotal,
		httpRequestDuration: httpRequestDuration,
	}
}

// Handler returns an HTTP handler that serves the metrics registry
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) IncJobCreated(distro, mode string) {
	if m == nil {
		return
	}
	m.jobsCreatedTotal.WithLabelValues(distro, mode).Inc()
}

func (m *Metrics) IncJobStatus(status string) {
	if m == nil {
		return
	}
	m.jobStatusTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObservePhase(phase string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		return
	}
	m.phaseSeconds.WithLabelValues(phase).Observe(seconds)
}

func (m *Metrics) IncKernelConfig(source string) {
	if m == nil {
		return
	}
	m.kernelConfigTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) IncDispatch(result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.dispatchTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveImageUpload(size int64) {
	if m == nil || size < 0 {
		return
	}
	m.imageUploadBytes.Observe(float64(size))
}

func (m *Metrics) ObserveHTTPRequest(method, route, code string, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
