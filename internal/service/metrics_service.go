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

// Bill outcomes reported by ObserveBill.
const (
	BillOutcomeCreated = "created"
	BillOutcomeSkipped = "skipped"
	BillOutcomeFailed  = "failed"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the billing pipeline.
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
	bills           *prometheus.CounterVec
	billRuns        *prometheus.CounterVec
	payments        *prometheus.CounterVec
	paymentAmount   *prometheus.CounterVec
	mailFailures    *prometheus.CounterVec
	storeDuration   *prometheus.HistogramVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the collectors on a private registry.
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
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
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

	bills := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hostel_bills_total",
		Help: "Bills processed by generation runs, by outcome",
	}, []string{"outcome"})

	billRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hostel_bill_runs_total",
		Help: "Bill generation runs, by trigger",
	}, []string{"trigger"})

	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hostel_payments_total",
		Help: "Payments recorded, by method",
	}, []string{"method"})

	paymentAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hostel_payment_amount_total",
		Help: "Sum of recorded payment totals, by method",
	}, []string{"method"})

	mailFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hostel_mail_failures_total",
		Help: "Transactional emails that could not be delivered, by template",
	}, []string{"template"})

	storeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_call_duration_seconds",
		Help:    "Duration of store calls made by the billing pipeline",
		Buckets: prometheus.DefBuckets,
	}, []string{"call"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		bills, billRuns, payments, paymentAmount, mailFailures, storeDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		bills:           bills,
		billRuns:        billRuns,
		payments:        payments,
		paymentAmount:   paymentAmount,
		mailFailures:    mailFailures,
		storeDuration:   storeDuration,
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveBill counts one student-month of a bill run.
func (m *MetricsService) ObserveBill(outcome string) {
	if m == nil {
		return
	}
	m.bills.WithLabelValues(outcome).Inc()
}

// ObserveBillRun counts a generation run by what triggered it.
func (m *MetricsService) ObserveBillRun(trigger string) {
	if m == nil {
		return
	}
	m.billRuns.WithLabelValues(trigger).Inc()
}

// ObservePayment counts a newly recorded payment.
func (m *MetricsService) ObservePayment(method string, amount int64) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(method).Inc()
	m.paymentAmount.WithLabelValues(method).Add(float64(amount))
}

// ObserveMailFailure counts an undelivered email.
func (m *MetricsService) ObserveMailFailure(template string) {
	if m == nil {
		return
	}
	m.mailFailures.WithLabelValues(template).Inc()
}

// ObserveStoreCall records the latency of a store call.
func (m *MetricsService) ObserveStoreCall(call string, duration time.Duration) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(call).Observe(duration.Seconds())
}
