package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// Upstream call rate per provider (forecast, air_quality, geocoding, reverse_geocode, ip_geolocation).
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per provider. Watch for: p95 > 2s (provider degradation).
	UpstreamDuration *prometheus.HistogramVec

	// Retry attempts per provider. Watch for: high retries = unstable upstream.
	UpstreamRetriesTotal *prometheus.CounterVec

	// Upstream errors by stable category label (see client.CategorizeError).
	UpstreamErrorsTotal *prometheus.CounterVec

	// Cache hits/misses per cache (forecast, search). Hit rate = hits/(hits+misses).
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Cache backend errors per cache and operation (get, set).
	CacheErrorsTotal *prometheus.CounterVec

	// Concurrent misses for the same key. Values > 1 are the accepted duplicate-fetch race.
	CacheConcurrentMisses prometheus.Histogram

	// Coalesced forecast fetches (only when coalescing is enabled).
	CoalescedFetchesTotal prometheus.Counter

	// Forecast fetches served without air quality because the secondary request failed.
	AirQualityDegradedTotal prometheus.Counter

	// Saturn sentinel snapshots served without network access.
	SyntheticSnapshotsTotal prometheus.Counter

	// Favorite warm-up runs, failures, and duration.
	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	// Background refresh outcomes (success, error).
	RefreshTotal *prometheus.CounterVec

	// Geolocation tier that produced the location (device, ip, default).
	GeolocationTierTotal *prometheus.CounterVec

	// Circuit breaker state per provider: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState *prometheus.GaugeVec

	// HTTP requests served by the local watch listener.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream API calls",
		},
		[]string{"provider", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "status"},
	)
	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamRetriesTotal",
			Help: "Total number of retry attempts for upstream API calls",
		},
		[]string{"provider"},
	)
	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamErrorsTotal",
			Help: "Upstream API errors by category",
		},
		[]string{"provider", "category"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of fresh cache hits",
		},
		[]string{"cache"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of cache misses (absent or stale)",
		},
		[]string{"cache"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors",
		},
		[]string{"cache", "operation"},
	)
	CacheConcurrentMisses = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheConcurrentMisses",
			Help:    "Concurrent in-flight misses for the same key when a miss starts",
			Buckets: []float64{1, 2, 3, 5, 10},
		},
	)
	CoalescedFetchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coalescedFetchesTotal",
			Help: "Forecast fetches that joined an in-flight request",
		},
	)
	AirQualityDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "airQualityDegradedTotal",
			Help: "Forecasts served without air quality after a secondary request failure",
		},
	)
	SyntheticSnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syntheticSnapshotsTotal",
			Help: "Saturn snapshots synthesized locally",
		},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Cache warm-up runs over saved favorites",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warm-up runs with at least one failed location",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warm-up duration in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10},
		},
	)
	RefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refreshTotal",
			Help: "Background refresh runs by result",
		},
		[]string{"result"},
	)
	GeolocationTierTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geolocationTierTotal",
			Help: "Location resolutions by the tier that answered",
		},
		[]string{"tier"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
		},
		[]string{"provider"},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests to the local listener",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	registry.MustRegister(
		UpstreamCallsTotal, UpstreamDuration, UpstreamRetriesTotal, UpstreamErrorsTotal,
		CacheHitsTotal, CacheMissesTotal, CacheErrorsTotal, CacheConcurrentMisses,
		CoalescedFetchesTotal, AirQualityDegradedTotal, SyntheticSnapshotsTotal,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
		RefreshTotal, GeolocationTierTotal, CircuitBreakerState,
		HTTPRequestsTotal, HTTPRequestDuration,
	)
}

// StatusLabel maps an HTTP status code to a low-cardinality label.
func StatusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
