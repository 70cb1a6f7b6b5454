package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and the collectors of the permit workflow.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec

	permitsSubmitted  prometheus.Counter
	permitDecisions   *prometheus.CounterVec
	resubmissionLinks *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	suggestions       *prometheus.CounterVec
	uploadBytes       prometheus.Histogram
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
		permitsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "permits_submitted_total",
			Help: "Permits accepted and persisted",
		}),
		permitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permit_decisions_total",
			Help: "Approver decisions applied",
		}, []string{"status"}),
		resubmissionLinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permit_resubmission_links_total",
			Help: "Resubmission back-link attempts by outcome",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification deliveries by kind and outcome",
		}, []string{"kind", "outcome"}),
		suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suggestions_total",
			Help: "Suggestion service calls by outcome",
		}, []string{"outcome"}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "permit_upload_bytes",
			Help:    "Size of uploaded evidence files",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 6),
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite,
		m.cacheLookups, m.dbQueryDuration, m.permitsSubmitted, m.permitDecisions, m.resubmissionLinks,
		m.notifications, m.suggestions, m.uploadBytes, goroutines)

	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// RegisterGauge exposes a value sampled at scrape time, e.g. a queue depth.
func (m *MetricsService) RegisterGauge(name, help string, sample func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, sample))
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// PermitSubmitted counts a persisted submission.
func (m *MetricsService) PermitSubmitted() {
	if m == nil {
		return
	}
	m.permitsSubmitted.Inc()
}

// PermitDecided counts an applied decision.
func (m *MetricsService) PermitDecided(status string) {
	if m == nil {
		return
	}
	m.permitDecisions.WithLabelValues(status).Inc()
}

// ResubmissionLinked records the outcome of linking an original permit: linked, missing or superseded.
func (m *MetricsService) ResubmissionLinked(outcome string) {
	if m == nil {
		return
	}
	m.resubmissionLinks.WithLabelValues(outcome).Inc()
}

// NotificationSent records a delivery attempt.
func (m *MetricsService) NotificationSent(kind string, ok bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcomeLabel(ok)).Inc()
}

// SuggestionRequested records a suggestion call.
func (m *MetricsService) SuggestionRequested(ok bool) {
	if m == nil {
		return
	}
	m.suggestions.WithLabelValues(outcomeLabel(ok)).Inc()
}

// ObserveUpload records the size of a stored upload.
func (m *MetricsService) ObserveUpload(size int64) {
	if m == nil {
		return
	}
	m.uploadBytes.Observe(float64(size))
}

func outcomeLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
