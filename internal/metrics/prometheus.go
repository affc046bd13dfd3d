package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	lookupCache        *prometheus.CounterVec
	lookupResults      *prometheus.CounterVec
	lookupDuration     prometheus.Histogram
	petEvents          *prometheus.CounterVec
	allocationAttempts prometheus.Histogram
	allocationExhaust  prometheus.Counter
	scanPublished      *prometheus.CounterVec
	scanProcessed      *prometheus.CounterVec
	scanBatchSize      prometheus.Histogram
	scanQueueDepth     prometheus.Gauge
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// NewPrometheus registers the application metrics on reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	f := promauto.With(reg)

	return &PrometheusRecorder{
		lookupCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "petlink_lookup_cache_total",
			Help: "Pet lookups served from cache (hit) or the store (miss).",
		}, []string{"result"}),
		lookupResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "petlink_lookups_total",
			Help: "Public pet lookups by outcome.",
		}, []string{"result"}),
		lookupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "petlink_lookup_duration_seconds",
			Help:    "Time to resolve a pet code into a contact view.",
			Buckets: prometheus.DefBuckets,
		}),
		petEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "petlink_pet_changes_total",
			Help: "Pet registry changes by kind.",
		}, []string{"kind"}),
		allocationAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "petlink_code_allocation_attempts",
			Help:    "Candidates drawn per pet code allocation.",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 50},
		}),
		allocationExhaust: f.NewCounter(prometheus.CounterOpts{
			Name: "petlink_code_allocation_exhausted_total",
			Help: "Allocations that failed after the attempt limit.",
		}),
		scanPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "petlink_scan_events_published_total",
			Help: "Scan events published to the stream.",
		}, []string{"status"}),
		scanProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "petlink_scan_events_processed_total",
			Help: "Scan events handled by the worker.",
		}, []string{"status"}),
		scanBatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "petlink_scan_batch_size",
			Help:    "Scan events per worker batch.",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		}),
		scanQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "petlink_scan_queue_depth",
			Help: "Pending scan events in the stream.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "petlink_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "petlink_http_request_duration_seconds",
			Help:    "HTTP request duration by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (p *PrometheusRecorder) IncLookupCacheHit() { p.lookupCache.WithLabelValues("hit").Inc() }
func (p *PrometheusRecorder) IncLookupCacheMiss() { p.lookupCache.WithLabelValues("miss").Inc() }

func (p *PrometheusRecorder) IncLookupResult(result string) {
	p.lookupResults.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) ObserveLookupDuration(d time.Duration) {
	p.lookupDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPetRegistered() { p.petEvents.WithLabelValues("registered").Inc() }
func (p *PrometheusRecorder) IncPetUpdated() { p.petEvents.WithLabelValues("updated").Inc() }
func (p *PrometheusRecorder) IncPetDeleted() { p.petEvents.WithLabelValues("deleted").Inc() }

func (p *PrometheusRecorder) ObserveAllocationAttempts(attempts int) {
	p.allocationAttempts.Observe(float64(attempts))
}

func (p *PrometheusRecorder) IncAllocationExhausted() { p.allocationExhaust.Inc() }

func (p *PrometheusRecorder) IncScanEventPublished(status string) {
	p.scanPublished.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncScanEventProcessed(status string) {
	p.scanProcessed.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) ObserveScanBatchSize(size int) { p.scanBatchSize.Observe(float64(size)) }
func (p *PrometheusRecorder) SetScanQueueDepth(depth int64) { p.scanQueueDepth.Set(float64(depth)) }

// ObserveHTTPRequest records one served request. route is the matched
// router pattern, not the raw path, to keep label cardinality bounded.
func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	p.httpRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
