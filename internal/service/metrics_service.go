package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orbitcal/orbitcal-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface
// and the scheduling engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	slotsMaterialized   prometheus.Counter
	occurrencesExpanded prometheus.Counter
	dstResolutions      *prometheus.CounterVec
	queriesTruncated    prometheus.Counter
	lockContention      prometheus.Counter

	cacheHitRatio prometheus.Gauge
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
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

	slotsMaterialized := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slots_materialized_total",
		Help: "Occurrence slots written by materialization",
	})

	occurrencesExpanded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "occurrences_expanded_total",
		Help: "Candidate occurrence dates produced by recurrence expansion",
	})

	dstResolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dst_policy_resolutions_total",
		Help: "Wall-clock times resolved through a DST gap or overlap policy",
	}, []string{"classification"})

	queriesTruncated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "range_queries_truncated_total",
		Help: "Range queries answered short of the requested end because of the materialization horizon",
	})

	lockContention := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "event_lock_contention_total",
		Help: "Writer operations rejected because the event was locked",
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

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, slotsMaterialized, occurrencesExpanded,
		dstResolutions, queriesTruncated, lockContention, cacheHitRatio, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		slotsMaterialized:   slotsMaterialized,
		occurrencesExpanded: occurrencesExpanded,
		dstResolutions:      dstResolutions,
		queriesTruncated:    queriesTruncated,
		lockContention:      lockContention,
		cacheHitRatio:       cacheHitRatio,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordMaterialization accumulates expansion and slot-write counts for one
// materialize call.
func (m *MetricsService) RecordMaterialization(expanded, written int) {
	if m == nil {
		return
	}
	m.occurrencesExpanded.Add(float64(expanded))
	m.slotsMaterialized.Add(float64(written))
}

// RecordDSTResolution counts a wall-clock time resolved through a DST policy.
func (m *MetricsService) RecordDSTResolution(cls models.TZClassification) {
	if m == nil {
		return
	}
	m.dstResolutions.WithLabelValues(string(cls)).Inc()
}

// RecordTruncatedQuery counts a horizon-truncated range query.
func (m *MetricsService) RecordTruncatedQuery() {
	if m == nil {
		return
	}
	m.queriesTruncated.Inc()
}

// RecordLockContention counts a writer rejected by the per-event lock.
func (m *MetricsService) RecordLockContention() {
	if m == nil {
		return
	}
	m.lockContention.Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
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
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}
