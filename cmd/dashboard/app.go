package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/dashboard"
	"github.com/kjstillabower/weather-dashboard/internal/geolocate"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/prefs"
	"github.com/kjstillabower/weather-dashboard/internal/service"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	prefs     *prefs.Store
	forecasts *service.ForecastService
	search    *service.SearchService
	resolver  *geolocate.Resolver
	names     *geolocate.ReverseGeocoder
	tracker   *traffic.Tracker
	cachePing func() error
	closers   []func() error
}

// newApp loads configuration and builds the clients, caches and services.
// Nothing here touches the network.
func newApp(opts *rootOptions) (*app, error) {
	logger, err := observability.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	store, err := prefs.Open(cfg.PrefsPath, logger)
	if err != nil {
		return nil, err
	}

	upstream, err := client.NewOpenMeteoClient(client.Endpoints{
		Forecast:   cfg.ForecastURL,
		AirQuality: cfg.AirQualityURL,
		Geocoding:  cfg.GeocodingURL,
	}, client.Options{
		Timeout:         cfg.UpstreamTimeout,
		RetryAttempts:   cfg.RetryAttempts,
		RetryBaseDelay:  cfg.RetryBaseDelay,
		RetryMaxDelay:   cfg.RetryMaxDelay,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
		BreakerFailures: uint32(cfg.BreakerFailures),
		BreakerTimeout:  cfg.BreakerTimeout,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, prefs: store, tracker: traffic.NewTracker()}

	var (
		forecastCache cache.Cache[models.WeatherSnapshot]
		searchCache   cache.Cache[[]models.GeoLocation]
	)
	switch cfg.CacheBackend {
	case "memcached":
		fc, err := cache.NewMemcachedCache[models.WeatherSnapshot](cfg.MemcachedAddrs, "forecast:", cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("memcached cache: %w", err)
		}
		sc, err := cache.NewMemcachedCache[[]models.GeoLocation](cfg.MemcachedAddrs, "search:", cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			_ = fc.Close()
			return nil, fmt.Errorf("memcached cache: %w", err)
		}
		forecastCache, searchCache = fc, sc
		a.cachePing = fc.Ping
		a.closers = append(a.closers, fc.Close, sc.Close)
		logger.Debug("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		forecastCache = cache.NewInMemoryCache[models.WeatherSnapshot]()
		searchCache = cache.NewInMemoryCache[[]models.GeoLocation]()
		logger.Debug("cache backend: in_memory")
	}

	coalesceTimeout := cfg.CoalesceTimeout
	if !cfg.CoalesceRequests {
		coalesceTimeout = 0
	}
	a.forecasts = service.NewForecastService(upstream, forecastCache, cfg.ForecastCacheTTL, coalesceTimeout, logger, a.tracker)
	a.search = service.NewSearchService(upstream, searchCache, cfg.SearchCacheTTL, service.SearchSettings{
		MinLength: cfg.SearchMinLength,
		Count:     cfg.SearchCount,
		Language:  cfg.SearchLanguage,
	}, logger)

	geoOpts := geolocate.DefaultOptions()
	geoOpts.IPBaseURL = cfg.IPGeolocationURL
	geoOpts.ReverseBaseURL = cfg.ReverseGeocodeURL
	geoOpts.Timeout = cfg.UpstreamTimeout
	geoOpts.DeviceTimeout = cfg.GPSTimeout
	geoOpts.NameCacheTTL = cfg.LocationNameTTL

	device, err := parseDevice(opts.device)
	if err != nil {
		return nil, err
	}
	a.resolver = geolocate.NewResolver(device, geoOpts, logger)
	a.names = geolocate.NewReverseGeocoder(geoOpts, logger)
	return a, nil
}

// controller returns a dashboard controller over the app's services.
func (a *app) controller() *dashboard.Controller {
	return dashboard.NewController(a.forecasts, a.names, a.logger)
}

// Close releases cache connections and flushes logs.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
	_ = observability.FlushTelemetry(context.Background(), a.logger)
}

// parseDevice reads a "lat,lon" device position. Empty means no device tier.
func parseDevice(s string) (geolocate.Positioner, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	lat, lon, err := parseLatLon(s)
	if err != nil {
		return nil, fmt.Errorf("--device: %w", err)
	}
	return geolocate.FixedPosition(models.Coordinate{Latitude: lat, Longitude: lon}), nil
}

func parseLatLon(s string) (float64, float64, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("want lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude: %w", err)
	}
	if err := validation.Coordinate(lat, lon); err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}
