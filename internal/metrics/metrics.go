// Package metrics records credential-resolution and health-check counters on
// a private Prometheus registry. The CLI is short-lived, so the registry is
// flushed to a node-exporter textfile at exit instead of being scraped.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is nil-safe: every method on a nil *Recorder is a no-op.
type Recorder struct {
	registry *prometheus.Registry

	resolutions        *prometheus.CounterVec
	healthCheckRuns    *prometheus.CounterVec
	healthCheckSeconds *prometheus.HistogramVec
	storeRequests      *prometheus.CounterVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coredev_resolutions_total",
				Help: "Credential resolutions by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		healthCheckRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coredev_healthcheck_runs_total",
				Help: "Health-check runs by option and final status",
			},
			[]string{"option", "status"},
		),
		healthCheckSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coredev_healthcheck_duration_seconds",
				Help:    "Duration of health-check runs in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"option"},
		),
		storeRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coredev_secretstore_requests_total",
				Help: "Secret-store requests by backend, stage and HTTP status (0 for transport errors)",
			},
			[]string{"backend", "stage", "code"},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Resolution records one resolver outcome.
func (r *Recorder) Resolution(source, outcome string) {
	if r == nil {
		return
	}
	if source == "" {
		source = "none"
	}
	r.resolutions.WithLabelValues(source, outcome).Inc()
}

// HealthCheckRun records a finished run.
func (r *Recorder) HealthCheckRun(option, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.healthCheckRuns.WithLabelValues(option, status).Inc()
	r.healthCheckSeconds.WithLabelValues(option).Observe(elapsed.Seconds())
}

// SecretStoreRequest records one request against a secret store.
func (r *Recorder) SecretStoreRequest(backend, stage string, code int) {
	if r == nil {
		return
	}
	r.storeRequests.WithLabelValues(backend, stage, strconv.Itoa(code)).Inc()
}

// WriteTextfile writes the registry in text exposition format to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
