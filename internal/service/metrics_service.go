package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot is a lightweight view of process counters for the readiness endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	AssignmentsTotal         uint64    `json:"assignmentsTotal"`
	RuleEvaluationErrors     uint64    `json:"ruleEvaluationErrors"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	assignments       *prometheus.CounterVec
	transferDecisions *prometheus.CounterVec
	ruleErrors        *prometheus.CounterVec
	recalcDuration    prometheus.Histogram
	recalcFailures    prometheus.Counter
	txRetries         prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	assignmentCount      uint64
	ruleErrorCount       uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignments_total",
		Help: "Assignment attempts by assignment type and outcome",
	}, []string{"type", "outcome"})

	transferDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_decisions_total",
		Help: "Processed transfer requests by decision",
	}, []string{"decision"})

	ruleErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_rule_evaluation_errors_total",
		Help: "Rules skipped because their conditions or actions could not be evaluated",
	}, []string{"rule_id"})

	recalcDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "workload_recalculation_duration_seconds",
		Help:    "Duration of organization workload recalculation passes",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	recalcFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workload_recalculation_failures_total",
		Help: "Attorneys whose workload snapshot could not be recalculated",
	})

	txRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assignment_transaction_failures_total",
		Help: "Assignment transactions that failed after exhausting retries",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		assignments, transferDecisions, ruleErrors, recalcDuration, recalcFailures, txRetries, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		assignments:       assignments,
		transferDecisions: transferDecisions,
		ruleErrors:        ruleErrors,
		recalcDuration:    recalcDuration,
		recalcFailures:    recalcFailures,
		txRetries:         txRetries,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordAssignment counts an assignment attempt. Outcome is assigned, unassigned or failed.
func (m *MetricsService) RecordAssignment(assignmentType, outcome string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(assignmentType, outcome).Inc()
	atomic.AddUint64(&m.assignmentCount, 1)
}

// RecordTransferDecision counts a processed transfer request.
func (m *MetricsService) RecordTransferDecision(decision string) {
	if m == nil {
		return
	}
	m.transferDecisions.WithLabelValues(decision).Inc()
}

// RecordRuleEvaluationError counts a rule skipped during selection.
func (m *MetricsService) RecordRuleEvaluationError(ruleID string) {
	if m == nil {
		return
	}
	m.ruleErrors.WithLabelValues(ruleID).Inc()
	atomic.AddUint64(&m.ruleErrorCount, 1)
}

// ObserveRecalculation records one organization pass and its per-attorney failures.
func (m *MetricsService) ObserveRecalculation(duration time.Duration, failures int) {
	if m == nil {
		return
	}
	m.recalcDuration.Observe(duration.Seconds())
	if failures > 0 {
		m.recalcFailures.Add(float64(failures))
	}
}

// RecordTransactionFailure counts a transition that gave up after retrying.
func (m *MetricsService) RecordTransactionFailure() {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            cacheRatio,
		AssignmentsTotal:         atomic.LoadUint64(&m.assignmentCount),
		RuleEvaluationErrors:     atomic.LoadUint64(&m.ruleErrorCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
