//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/service"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	Endpoints     client.Endpoints
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test unless DASHBOARD_LIVE_TESTS is set, since it calls the public provider.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	if os.Getenv("DASHBOARD_LIVE_TESTS") == "" {
		t.Skip("DASHBOARD_LIVE_TESTS not set, skipping live integration test")
	}

	endpoints := client.DefaultEndpoints()
	if u := os.Getenv("OPEN_METEO_FORECAST_URL"); u != "" {
		endpoints.Forecast = u
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}
	return IntegrationTestConfig{
		Endpoints:     endpoints,
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// IntegrationServices bundles the services under test with the tracker they report to.
type IntegrationServices struct {
	Forecast *service.ForecastService
	Search   *service.SearchService
	Tracker  *traffic.Tracker
	Logger   *zap.Logger
	// CachePing is set when the memcached backend is in use.
	CachePing func() error
}

// SetupIntegrationServices creates live forecast and search services.
// Falls back to in-memory caches when memcached is requested but unreachable.
func SetupIntegrationServices(t *testing.T, cfg IntegrationTestConfig) IntegrationServices {
	t.Helper()
	logger, err := observability.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	upstream := SetupIntegrationClient(t, cfg)

	var (
		forecasts cache.Cache[models.WeatherSnapshot] = cache.NewInMemoryCache[models.WeatherSnapshot]()
		places    cache.Cache[[]models.GeoLocation]   = cache.NewInMemoryCache[[]models.GeoLocation]()
		ping      func() error
	)
	if cfg.CacheBackend == "memcached" {
		fc, err := cache.NewMemcachedCache[models.WeatherSnapshot](cfg.MemcachedAddr, "it-forecast:", 500*time.Millisecond, 2)
		if err == nil && fc.Ping() == nil {
			sc, _ := cache.NewMemcachedCache[[]models.GeoLocation](cfg.MemcachedAddr, "it-search:", 500*time.Millisecond, 2)
			forecasts, places, ping = fc, sc, fc.Ping
			t.Cleanup(func() { _ = fc.Close(); _ = sc.Close() })
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("Memcached not available, using in-memory cache")
		}
	}

	tracker := traffic.NewTracker()
	return IntegrationServices{
		Forecast:  service.NewForecastService(upstream, forecasts, time.Minute, 0, logger, tracker),
		Search:    service.NewSearchService(upstream, places, time.Minute, service.DefaultSearchSettings(), logger),
		Tracker:   tracker,
		Logger:    logger,
		CachePing: ping,
	}
}

// SetupIntegrationClient creates a live Open-Meteo client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.OpenMeteoClient {
	t.Helper()
	c, err := client.NewOpenMeteoClient(cfg.Endpoints, client.Options{Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}
	return c
}
