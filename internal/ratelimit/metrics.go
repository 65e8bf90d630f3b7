package ratelimit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for admission decisions.
type Metrics struct {
	decisionsTotal *prometheus.CounterVec
	trackedGauge   prometheus.Gauge
	registry       *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "accesscore"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Total number of rate limit admission decisions",
		},
		[]string{"decision"},
	)

	m.trackedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "tracked_identities",
			Help:      "Number of identities currently tracked by the limiter",
		},
	)

	m.registry.MustRegister(m.decisionsTotal, m.trackedGauge)
	return m
}

// RecordDecision records an admission decision.
func (m *Metrics) RecordDecision(allowed bool) {
	if allowed {
		m.decisionsTotal.WithLabelValues("allowed").Inc()
	} else {
		m.decisionsTotal.WithLabelValues("rejected").Inc()
	}
}

// SetTracked records the current tracked-identity count.
func (m *Metrics) SetTracked(n int) {
	m.trackedGauge.Set(float64(n))
}

// Registry returns the metrics registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// tracker is implemented by the in-process limiters, which can report how
// many identities they currently hold.
type tracker interface {
	Len() int
}

// InstrumentedLimiter decorates a Limiter with admission metrics.
type InstrumentedLimiter struct {
	inner   Limiter
	metrics *Metrics
}

// Instrument wraps a limiter so every decision is recorded. When the
// wrapped limiter tracks identities in process, the tracked-identity
// gauge follows its size.
func Instrument(inner Limiter, metrics *Metrics) *InstrumentedLimiter {
	if metrics == nil {
		metrics = NewMetrics("")
	}
	return &InstrumentedLimiter{inner: inner, metrics: metrics}
}

// Allow implements Limiter.
func (l *InstrumentedLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	result, err := l.inner.Allow(ctx, key)
	if err != nil {
		return nil, err
	}
	l.metrics.RecordDecision(result.Allowed)
	if t, ok := l.inner.(tracker); ok {
		l.metrics.SetTracked(t.Len())
	}
	return result, nil
}

// Reset implements Limiter.
func (l *InstrumentedLimiter) Reset(ctx context.Context, key string) error {
	return l.inner.Reset(ctx, key)
}

// Ensure InstrumentedLimiter implements Limiter.
var _ Limiter = (*InstrumentedLimiter)(nil)
