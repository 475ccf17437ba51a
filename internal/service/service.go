// Package service implements the forecast and city search clients on top of the
// upstream transport and a per-instance cache.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

var (
	// ErrForecastUnavailable wraps any failure of the mandatory forecast request.
	ErrForecastUnavailable = errors.New("forecast unavailable")
	// ErrSearchFailed wraps any failure of the place search request.
	ErrSearchFailed = errors.New("search failed")
)

// Cache names used as metric labels.
const (
	cacheForecast = "forecast"
	cacheSearch   = "search"
)

// withCorrelation ensures ctx carries a correlation id and returns a logger tagged with it.
func withCorrelation(ctx context.Context, fallback *zap.Logger) (context.Context, *zap.Logger) {
	id := observability.CorrelationID(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = observability.WithCorrelationID(ctx, id)
	}
	logger := observability.LoggerFromContext(ctx, fallback).With(zap.String("correlation_id", id))
	return ctx, logger
}

// lookup reads key from c. Backend errors are logged and treated as a miss.
func lookup[V any](ctx context.Context, c cache.Cache[V], name, key string, logger *zap.Logger) (V, bool) {
	v, ok, err := c.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues(name, "get").Inc()
		logger.Warn("cache get failed", zap.String("cache", name), zap.String("key", key), zap.Error(err))
		var zero V
		return zero, false
	}
	if ok {
		observability.CacheHitsTotal.WithLabelValues(name).Inc()
		logger.Debug("cache hit", zap.String("cache", name), zap.String("key", key))
		return v, true
	}
	observability.CacheMissesTotal.WithLabelValues(name).Inc()
	logger.Debug("cache miss", zap.String("cache", name), zap.String("key", key))
	return v, false
}

// store writes v under key. A failed write does not fail the caller.
func store[V any](ctx context.Context, c cache.Cache[V], name, key string, v V, ttl time.Duration, logger *zap.Logger) {
	if err := c.Set(ctx, key, v, ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues(name, "set").Inc()
		logger.Warn("cache set failed", zap.String("cache", name), zap.String("key", key), zap.Error(err))
	}
}
