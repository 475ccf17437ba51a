package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var health map[string]any
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	return health
}

// TestHandler_GetHealth verifies the healthy response schema with no recorded traffic.
func TestHandler_GetHealth(t *testing.T) {
	handler := NewHandler(traffic.NewTracker(), &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, zap.NewNop())

	w := httptest.NewRecorder()
	handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("GetHealth() status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	health := decodeHealth(t, w)
	if health["status"] != StatusHealthy || health["service"] != "weather-dashboard" || health["version"] != "dev" {
		t.Errorf("health = %+v", health)
	}
	checks, ok := health["checks"].(map[string]any)
	if !ok {
		t.Fatal("Health checks missing")
	}
	if checks["forecastApi"] != "healthy" || checks["airQuality"] != "healthy" {
		t.Errorf("checks = %+v", checks)
	}
	if _, ok := checks["cache"]; ok {
		t.Error("cache check should be absent without CachePing")
	}
}

// TestHandler_GetHealth_NilConfig verifies a handler without thresholds reports healthy.
func TestHandler_GetHealth_NilConfig(t *testing.T) {
	handler := NewHandler(nil, nil, nil)
	w := httptest.NewRecorder()
	handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GetHealth() status = %d, want 200", w.Code)
	}
}

// TestHandler_GetHealth_ShuttingDown verifies the drain flag wins over every other state.
func TestHandler_GetHealth_ShuttingDown(t *testing.T) {
	tracker := traffic.NewTracker()
	tracker.RecordError()
	handler := NewHandler(tracker, &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, zap.NewNop())
	handler.SetShuttingDown(true)

	w := httptest.NewRecorder()
	handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("GetHealth() status = %d, want 503", w.Code)
	}
	if got := decodeHealth(t, w)["status"]; got != StatusShuttingDown {
		t.Errorf("status = %v, want shutting-down", got)
	}
	if !handler.IsShuttingDown() {
		t.Error("IsShuttingDown() = false")
	}
}

// TestHandler_GetHealth_DegradedErrorRate covers the error-rate threshold boundaries.
func TestHandler_GetHealth_DegradedErrorRate(t *testing.T) {
	tests := []struct {
		name      string
		successes int
		errors    int
		wantCode  int
		want      string
	}{
		{"no traffic", 0, 0, http.StatusOK, StatusHealthy},
		{"below threshold", 3, 1, http.StatusOK, StatusHealthy},
		{"at threshold", 1, 1, http.StatusServiceUnavailable, StatusDegraded},
		{"all errors", 0, 4, http.StatusServiceUnavailable, StatusDegraded},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tracker := traffic.NewTracker()
			for i := 0; i < tc.successes; i++ {
				tracker.RecordSuccess()
			}
			for i := 0; i < tc.errors; i++ {
				tracker.RecordError()
			}
			handler := NewHandler(tracker, &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, zap.NewNop())

			w := httptest.NewRecorder()
			handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))

			if w.Code != tc.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tc.wantCode)
			}
			health := decodeHealth(t, w)
			if health["status"] != tc.want {
				t.Errorf("status = %v, want %s", health["status"], tc.want)
			}
			checks := health["checks"].(map[string]any)
			wantAPI := "healthy"
			if tc.want == StatusDegraded {
				wantAPI = "unhealthy"
			}
			if checks["forecastApi"] != wantAPI {
				t.Errorf("forecastApi = %v, want %s", checks["forecastApi"], wantAPI)
			}
		})
	}
}

// TestHandler_GetHealth_ErrorsOutsideWindowIgnored verifies old failures age out.
func TestHandler_GetHealth_ErrorsOutsideWindowIgnored(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker := traffic.NewTrackerWithClock(func() time.Time { return now })
	tracker.RecordError()
	tracker.RecordError()
	now = now.Add(2 * time.Minute)
	tracker.RecordSuccess()

	handler := NewHandler(tracker, &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, zap.NewNop())
	w := httptest.NewRecorder()
	handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GetHealth() status = %d, want 200 once errors leave the window", w.Code)
	}
}

// TestHandler_GetHealth_PartialAirQuality verifies forecasts served without air quality
// are reported without degrading overall health.
func TestHandler_GetHealth_PartialAirQuality(t *testing.T) {
	tracker := traffic.NewTracker()
	tracker.RecordPartial()
	handler := NewHandler(tracker, &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, zap.NewNop())

	w := httptest.NewRecorder()
	handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("GetHealth() status = %d, want 200", w.Code)
	}
	checks := decodeHealth(t, w)["checks"].(map[string]any)
	if checks["airQuality"] != "partial" {
		t.Errorf("airQuality = %v, want partial", checks["airQuality"])
	}
}

// TestHandler_GetHealth_CachePing verifies the cache check mirrors the ping result.
func TestHandler_GetHealth_CachePing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"reachable", nil, "healthy"},
		{"unreachable", errors.New("connection refused"), "unhealthy"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &HealthConfig{CachePing: func() error { return tc.err }, Version: "1.2.3"}
			handler := NewHandler(traffic.NewTracker(), cfg, zap.NewNop())

			w := httptest.NewRecorder()
			handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))

			health := decodeHealth(t, w)
			if got := health["checks"].(map[string]any)["cache"]; got != tc.want {
				t.Errorf("cache check = %v, want %s", got, tc.want)
			}
			if health["version"] != "1.2.3" {
				t.Errorf("version = %v", health["version"])
			}
		})
	}
}

// TestHandler_GetHealth_LogsTransition verifies a status change is logged once.
func TestHandler_GetHealth_LogsTransition(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tracker := traffic.NewTracker()
	handler := NewHandler(tracker, &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, zap.New(core))
	req := httptest.NewRequest("GET", "/health", nil)

	tracker.RecordSuccess()
	tracker.RecordSuccess()
	handler.GetHealth(httptest.NewRecorder(), req)
	if logs.Len() != 0 {
		t.Fatalf("first call should not log transition; got %d logs", logs.Len())
	}

	tracker.RecordError()
	tracker.RecordError()
	w := httptest.NewRecorder()
	handler.GetHealth(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("second GetHealth status = %d, want 503", w.Code)
	}

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("want 1 transition log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != StatusHealthy || fields["current_status"] != StatusDegraded || fields["reason"] != "error_rate_breach" {
		t.Errorf("transition fields = %+v", fields)
	}

	handler.GetHealth(httptest.NewRecorder(), req)
	if logs.Len() != 1 {
		t.Errorf("unchanged status should not log; total logs = %d, want 1", logs.Len())
	}
}
