package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

// Health statuses reported by GET /health.
const (
	StatusHealthy      = "healthy"
	StatusDegraded     = "degraded"
	StatusShuttingDown = "shutting-down"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
	Version   string
}

// Handler serves the watch command's local health endpoint.
type Handler struct {
	tracker          *traffic.Tracker
	healthConfig     *HealthConfig
	logger           *zap.Logger
	shuttingDown     atomic.Bool
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a Handler reading forecast outcomes from tracker. healthConfig may be nil.
func NewHandler(tracker *traffic.Tracker, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{tracker: tracker, healthConfig: healthConfig, logger: logger}
}

// SetShuttingDown sets the drain flag. Call when SIGTERM/SIGINT is received.
// GetHealth returns 503 with status shutting-down while true.
func (h *Handler) SetShuttingDown(v bool) {
	h.shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func (h *Handler) IsShuttingDown() bool {
	return h.shuttingDown.Load()
}

type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"forecastApi": "healthy"}
	if result.reason == "error_rate_breach" {
		checks["forecastApi"] = "unhealthy"
	}
	if h.tracker != nil && h.window() > 0 && h.tracker.PartialCount(h.window()) > 0 {
		checks["airQuality"] = "partial"
	} else {
		checks["airQuality"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	version := "dev"
	if h.healthConfig != nil && h.healthConfig.Version != "" {
		version = h.healthConfig.Version
	}
	writeJSON(w, result.statusCode, map[string]any{
		"status":    result.status,
		"service":   "weather-dashboard",
		"version":   version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > degraded (forecast error rate) > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if h.IsShuttingDown() {
		return healthResult{StatusShuttingDown, http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil || h.tracker == nil {
		return healthResult{StatusHealthy, http.StatusOK, ""}
	}
	if ctx.Err() != nil {
		return healthResult{StatusDegraded, http.StatusServiceUnavailable, "timeout"}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errors, total := h.tracker.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errors) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{StatusDegraded, http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{StatusHealthy, http.StatusOK, ""}
}

func (h *Handler) window() time.Duration {
	if h.healthConfig == nil {
		return 0
	}
	return h.healthConfig.DegradedWindow
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
