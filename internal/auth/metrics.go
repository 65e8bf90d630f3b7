package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for credential operations.
type Metrics struct {
	resolutionTotal    *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec
	denialsTotal       *prometheus.CounterVec
	registry           *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "accesscore"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.resolutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "resolution_total",
			Help:      "Total number of credential resolution attempts",
		},
		[]string{"status", "reason"},
	)

	m.resolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "resolution_duration_seconds",
			Help:      "Duration of credential resolution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status", "reason"},
	)

	m.denialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "denials_total",
			Help:      "Total number of authorization denials",
		},
		[]string{"reason"},
	)

	m.registry.MustRegister(m.resolutionTotal, m.resolutionDuration, m.denialsTotal)
	return m
}

// RecordResolution records a credential resolution attempt.
func (m *Metrics) RecordResolution(status, reason string, duration time.Duration) {
	m.resolutionTotal.WithLabelValues(status, reason).Inc()
	m.resolutionDuration.WithLabelValues(status, reason).Observe(duration.Seconds())
}

// RecordDenial records an authorization denial.
func (m *Metrics) RecordDenial(reason string) {
	m.denialsTotal.WithLabelValues(reason).Inc()
}

// Registry returns the metrics registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
