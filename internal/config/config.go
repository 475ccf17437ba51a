package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds dashboard configuration loaded from YAML, .env and the environment.
type Config struct {
	TestingMode bool

	ForecastURL       string
	AirQualityURL     string
	GeocodingURL      string
	IPGeolocationURL  string
	ReverseGeocodeURL string

	UpstreamTimeout time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
	BreakerFailures int
	BreakerTimeout  time.Duration

	ForecastCacheTTL      time.Duration
	SearchCacheTTL        time.Duration
	CacheBackend          string // "in_memory" or "memcached"
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	CoalesceRequests      bool
	CoalesceTimeout       time.Duration

	SearchMinLength int
	SearchCount     int
	SearchLanguage  string
	DebounceDelay   time.Duration

	RefreshInterval time.Duration
	WarmFavorites   bool

	GPSTimeout      time.Duration
	LocationNameTTL time.Duration

	PrefsPath string

	MetricsAddr      string
	ShutdownTimeout  time.Duration
	DegradedWindow   time.Duration
	DegradedErrorPct int
}

type fileConfig struct {
	TestingMode *bool `yaml:"testing_mode"`

	Upstream struct {
		ForecastURL       string `yaml:"forecast_url"`
		AirQualityURL     string `yaml:"air_quality_url"`
		GeocodingURL      string `yaml:"geocoding_url"`
		IPGeolocationURL  string `yaml:"ip_geolocation_url"`
		ReverseGeocodeURL string `yaml:"reverse_geocode_url"`
		Timeout           string `yaml:"timeout"`
	} `yaml:"upstream"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		BreakerFailures  int    `yaml:"breaker_failures"`
		BreakerTimeout   string `yaml:"breaker_timeout"`
	} `yaml:"reliability"`

	Cache struct {
		Backend     string `yaml:"backend"`
		ForecastTTL string `yaml:"forecast_ttl"`
		SearchTTL   string `yaml:"search_ttl"`
		Coalesce    struct {
			Enabled bool   `yaml:"enabled"`
			Timeout string `yaml:"timeout"`
		} `yaml:"coalesce"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Search struct {
		MinLength int    `yaml:"min_length"`
		Count     int    `yaml:"count"`
		Language  string `yaml:"language"`
		Debounce  string `yaml:"debounce"`
	} `yaml:"search"`

	Refresh struct {
		Interval      string `yaml:"interval"`
		WarmFavorites *bool  `yaml:"warm_favorites"`
	} `yaml:"refresh"`

	Geolocation struct {
		GPSTimeout string `yaml:"gps_timeout"`
		NameTTL    string `yaml:"name_ttl"`
	} `yaml:"geolocation"`

	Prefs struct {
		Path string `yaml:"path"`
	} `yaml:"prefs"`

	Metrics struct {
		Addr             string `yaml:"addr"`
		ShutdownTimeout  string `yaml:"shutdown_timeout"`
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"metrics"`
}

// Load reads configuration. When path is empty it reads config/{ENV_NAME}.yaml
// (default dev) relative to the working directory and falls back to built-in
// defaults if that file does not exist. An explicit path must exist.
// A .env file in the working directory is loaded first; it never overrides
// variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		env := os.Getenv("ENV_NAME")
		if env == "" {
			env = "dev"
		}
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("config: get working directory: %w", err)
		}
		path = filepath.Join(cwd, "config", env+".yaml")
	}

	var fc fileConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// built-in defaults
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("config file not found: %s", path)
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := fromFile(fc)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	cfg, err := fromFile(fileConfig{})
	if err != nil {
		panic(err)
	}
	return cfg
}

func fromFile(fc fileConfig) (*Config, error) {
	cfg := &Config{}
	if fc.TestingMode != nil {
		cfg.TestingMode = *fc.TestingMode
	}

	cfg.ForecastURL = stringOr(fc.Upstream.ForecastURL, "https://api.open-meteo.com/v1")
	cfg.AirQualityURL = stringOr(fc.Upstream.AirQualityURL, "https://air-quality-api.open-meteo.com/v1")
	cfg.GeocodingURL = stringOr(fc.Upstream.GeocodingURL, "https://geocoding-api.open-meteo.com/v1")
	cfg.IPGeolocationURL = stringOr(fc.Upstream.IPGeolocationURL, "https://ipapi.co")
	cfg.ReverseGeocodeURL = stringOr(fc.Upstream.ReverseGeocodeURL, "https://api.bigdatacloud.net/data")
	cfg.UpstreamTimeout = parseDurationOrZero(fc.Upstream.Timeout, 5*time.Second)

	cfg.RetryAttempts = intOr(fc.Reliability.RetryMaxAttempts, 3)
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = intOr(fc.Reliability.RateLimitRPS, 10)
	cfg.RateLimitBurst = intOr(fc.Reliability.RateLimitBurst, 20)
	cfg.BreakerFailures = intOr(fc.Reliability.BreakerFailures, 5)
	cfg.BreakerTimeout = parseDuration(fc.Reliability.BreakerTimeout, 30*time.Second)

	cfg.ForecastCacheTTL = parseDuration(fc.Cache.ForecastTTL, 2*time.Minute)
	cfg.SearchCacheTTL = parseDuration(fc.Cache.SearchTTL, 2*time.Minute)
	cfg.CoalesceRequests = fc.Cache.Coalesce.Enabled
	cfg.CoalesceTimeout = parseDuration(fc.Cache.Coalesce.Timeout, 10*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = intOr(fc.Cache.Memcached.MaxIdleConns, 2)

	cfg.SearchMinLength = intOr(fc.Search.MinLength, 2)
	cfg.SearchCount = intOr(fc.Search.Count, 5)
	cfg.SearchLanguage = stringOr(fc.Search.Language, "en")
	cfg.DebounceDelay = parseDuration(fc.Search.Debounce, 500*time.Millisecond)

	cfg.RefreshInterval = parseDuration(fc.Refresh.Interval, 2*time.Minute)
	cfg.WarmFavorites = true
	if fc.Refresh.WarmFavorites != nil {
		cfg.WarmFavorites = *fc.Refresh.WarmFavorites
	}

	cfg.GPSTimeout = parseDuration(fc.Geolocation.GPSTimeout, 10*time.Second)
	cfg.LocationNameTTL = parseDuration(fc.Geolocation.NameTTL, 30*time.Minute)

	prefsPath := strings.TrimSpace(os.Getenv("DASHBOARD_PREFS_PATH"))
	if prefsPath == "" {
		prefsPath = strings.TrimSpace(fc.Prefs.Path)
	}
	if prefsPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		prefsPath = filepath.Join(dir, "weather-dashboard", "prefs.json")
	}
	expanded, err := expandHome(prefsPath)
	if err != nil {
		return nil, err
	}
	cfg.PrefsPath = expanded

	cfg.MetricsAddr = strings.TrimSpace(os.Getenv("METRICS_ADDR"))
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = stringOr(fc.Metrics.Addr, "127.0.0.1:9464")
	}
	cfg.ShutdownTimeout = parseDuration(fc.Metrics.ShutdownTimeout, 10*time.Second)
	cfg.DegradedWindow = parseDuration(fc.Metrics.DegradedWindow, 5*time.Minute)
	cfg.DegradedErrorPct = intOr(fc.Metrics.DegradedErrorPct, 50)
	return cfg, nil
}

func stringOr(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = cfg.RetryBaseDelay
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.SearchCount > 100 {
		return fmt.Errorf("search.count must be at most 100, got %d", cfg.SearchCount)
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("metrics.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	return nil
}
