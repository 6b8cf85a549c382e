// Package metrics provides Prometheus metrics for LearnHub client operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for client operations.
// A nil *Metrics is a valid no-op.
type Metrics struct {
	enabled bool

	// Session metrics
	sessionOpsTotal *prometheus.CounterVec

	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Read retry metrics
	readAttemptsTotal *prometheus.CounterVec
	mutationsTotal    *prometheus.CounterVec

	// Cache metrics
	cacheEntries   prometheus.Gauge
	cacheHitsTotal *prometheus.CounterVec
	cacheMissTotal prometheus.Counter
}

// New creates and registers Prometheus metrics with reg, or the default
// registerer when reg is nil. If enabled is false, returns a no-op Metrics instance.
func New(enabled bool, reg prometheus.Registerer) *Metrics {
	m := &Metrics{enabled: enabled}

	if !enabled {
		return m
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m.sessionOpsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "learnhub_session_operations_total",
		Help: "Total session manager operations",
	}, []string{"operation", "result"})

	m.requestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "learnhub_requests_total",
		Help: "Total backend requests by method and outcome",
	}, []string{"method", "outcome"})

	m.requestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "learnhub_request_duration_seconds",
		Help:    "Backend request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	m.readAttemptsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "learnhub_read_attempts_total",
		Help: "Total read attempts, including retries",
	}, []string{"resource", "result"})

	m.mutationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "learnhub_mutations_total",
		Help: "Total mutations by result",
	}, []string{"result"})

	m.cacheEntries = factory.NewGauge(prometheus.GaugeOpts{
		Name: "learnhub_cache_entries",
		Help: "Current number of entries in the query cache",
	})

	m.cacheHitsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "learnhub_cache_hits_total",
		Help: "Total query cache hits by freshness",
	}, []string{"freshness"})

	m.cacheMissTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "learnhub_cache_misses_total",
		Help: "Total query cache misses",
	})

	return m
}

func (m *Metrics) on() bool { return m != nil && m.enabled }

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordSessionOp records the outcome of a session manager operation.
func (m *Metrics) RecordSessionOp(op string, err error) {
	if !m.on() {
		return
	}
	m.sessionOpsTotal.WithLabelValues(op, result(err)).Inc()
}

// RecordRequest records a backend request. outcome is an HTTP status class
// ("2xx", "4xx", ...) or "transport" when no response was received.
func (m *Metrics) RecordRequest(method, outcome string, durationSeconds float64) {
	if !m.on() {
		return
	}
	m.requestsTotal.WithLabelValues(method, outcome).Inc()
	m.requestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordReadAttempt records one attempt of a cached read.
func (m *Metrics) RecordReadAttempt(resource string, err error) {
	if !m.on() {
		return
	}
	m.readAttemptsTotal.WithLabelValues(resource, result(err)).Inc()
}

// RecordMutation records a mutation outcome.
func (m *Metrics) RecordMutation(err error) {
	if !m.on() {
		return
	}
	m.mutationsTotal.WithLabelValues(result(err)).Inc()
}

// RecordCacheHit records a cache hit; stale reports whether the value was past its freshness window.
func (m *Metrics) RecordCacheHit(stale bool) {
	if !m.on() {
		return
	}
	freshness := "fresh"
	if stale {
		freshness = "stale"
	}
	m.cacheHitsTotal.WithLabelValues(freshness).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	if !m.on() {
		return
	}
	m.cacheMissTotal.Inc()
}

// SetCacheSize sets the current cache size.
func (m *Metrics) SetCacheSize(size int) {
	if !m.on() {
		return
	}
	m.cacheEntries.Set(float64(size))
}
