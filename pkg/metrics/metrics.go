// Package metrics provides Prometheus metrics for the price fetcher.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheHitsTotal is a counter of price cache hits.
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_cache_hits_total",
			Help: "Total number of price cache hits",
		},
		[]string{"source"},
	)

	// CacheMissesTotal is a counter of price cache misses.
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_cache_misses_total",
			Help: "Total number of price cache misses",
		},
		[]string{"source"},
	)

	// UpstreamFetchesTotal is a counter of upstream fetch attempts by outcome.
	UpstreamFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_fetches_total",
			Help: "Total number of upstream price fetches",
		},
		[]string{"source", "status"},
	)

	// UpstreamFetchDuration is a histogram of upstream fetch latencies.
	UpstreamFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_fetch_duration_seconds",
			Help:    "Duration of upstream price fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// ResolutionsTotal is a counter of price resolutions by terminal path.
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_resolutions_total",
			Help: "Total number of price resolutions by outcome path",
		},
		[]string{"path"},
	)

	// ResolutionDuration is a histogram of full resolution latencies.
	ResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "price_resolution_duration_seconds",
			Help:    "Duration of full price resolutions",
			Buckets: prometheus.DefBuckets,
		},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"endpoint"},
	)

	// WebSocketClients is a gauge of connected WebSocket clients.
	WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Number of connected WebSocket clients",
		},
	)
)

// Init registers all metrics with the default Prometheus registry.
func Init() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		UpstreamFetchesTotal,
		UpstreamFetchDuration,
		ResolutionsTotal,
		ResolutionDuration,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		WebSocketClients,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordCacheHit records a cache hit for a source.
func RecordCacheHit(source string) {
	CacheHitsTotal.WithLabelValues(source).Inc()
}

// RecordCacheMiss records a cache miss for a source.
func RecordCacheMiss(source string) {
	CacheMissesTotal.WithLabelValues(source).Inc()
}

// RecordUpstreamFetch records an upstream fetch attempt.
func RecordUpstreamFetch(source, status string, duration time.Duration) {
	UpstreamFetchesTotal.WithLabelValues(source, status).Inc()
	UpstreamFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordResolution records a completed price resolution.
func RecordResolution(path string, duration time.Duration) {
	ResolutionsTotal.WithLabelValues(path).Inc()
	ResolutionDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
