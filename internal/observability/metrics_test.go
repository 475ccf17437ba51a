package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetrics_Usable verifies label dimensions match their use in client, service, cache,
// refresh and geolocate packages.
func TestMetrics_Usable(t *testing.T) {
	UpstreamCallsTotal.WithLabelValues("forecast", "success").Inc()
	UpstreamDuration.WithLabelValues("forecast", "success").Observe(0.1)
	UpstreamRetriesTotal.WithLabelValues("air_quality").Inc()
	UpstreamErrorsTotal.WithLabelValues("geocoding", "timeout").Inc()
	CacheHitsTotal.WithLabelValues("forecast").Inc()
	CacheMissesTotal.WithLabelValues("search").Inc()
	CacheErrorsTotal.WithLabelValues("forecast", "get").Inc()
	CacheConcurrentMisses.Observe(2)
	CoalescedFetchesTotal.Inc()
	AirQualityDegradedTotal.Inc()
	SyntheticSnapshotsTotal.Inc()
	CacheWarmingTotal.Inc()
	CacheWarmingDurationSeconds.Observe(0.2)
	RefreshTotal.WithLabelValues("error").Inc()
	GeolocationTierTotal.WithLabelValues("ip").Inc()
	CircuitBreakerState.WithLabelValues("forecast").Set(0)
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/health").Observe(0.01)
}

// TestStatusLabel verifies HTTP status codes map to stable labels.
func TestStatusLabel(t *testing.T) {
	tests := map[int]string{
		200: "success",
		204: "success",
		429: "rate_limited",
		400: "client_error",
		404: "client_error",
		500: "server_error",
		503: "server_error",
		302: "error",
	}
	for code, want := range tests {
		if got := StatusLabel(code); got != want {
			t.Errorf("StatusLabel(%d) = %q, want %q", code, got, want)
		}
	}
}

// TestMetricsHandler_ServesPrometheusFormat verifies MetricsHandler serves the text
// exposition format.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	UpstreamCallsTotal.WithLabelValues("forecast", "success").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "upstreamCallsTotal") {
		t.Error("MetricsHandler response should contain upstreamCallsTotal")
	}
}
