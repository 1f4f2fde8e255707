// Package telemetry provides Prometheus metrics and OpenTelemetry tracing for trendfeed.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trendfeed"

var (
	// FetchAttemptsTotal counts upstream fetch attempts by outcome.
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Total number of upstream feed fetch attempts",
		},
		[]string{"source", "result"},
	)

	// FetchDuration measures a full fetch including retries.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of feed fetches including retries, in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source", "status"},
	)

	// CacheRequestsTotal counts result cache lookups.
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Total number of result cache lookups",
		},
		[]string{"result"},
	)

	// CacheEntries tracks the number of cached title lists.
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Number of entries in the result cache",
		},
	)

	// HTTPRequestsTotal counts API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "route", "code"},
	)

	// HTTPRequestDuration measures API request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
	)
)

// RecordFetchAttempt records one upstream attempt.
func RecordFetchAttempt(source, result string) {
	FetchAttemptsTotal.WithLabelValues(source, result).Inc()
}

// RecordFetch records a completed fetch.
func RecordFetch(source, status string, duration float64) {
	FetchDuration.WithLabelValues(source, status).Observe(duration)
}

// RecordCacheHit records a cache hit.
func RecordCacheHit() {
	CacheRequestsTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a cache miss.
func RecordCacheMiss() {
	CacheRequestsTotal.WithLabelValues("miss").Inc()
}

// SetCacheEntries publishes the current cache size.
func SetCacheEntries(n int) {
	CacheEntries.Set(float64(n))
}

// RecordHTTPRequest records a served API request.
func RecordHTTPRequest(method, route, code string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// RecordRateLimited records a rejected request.
func RecordRateLimited() {
	RateLimitedTotal.Inc()
}
