package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// ForecastFetcher is implemented by the service layer to fetch a forecast for a coordinate.
// Used by Warmer to avoid a circular dependency on the service package.
type ForecastFetcher interface {
	GetForecast(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error)
}

// Warmer prefetches forecasts so the first view of a saved place is a cache hit.
type Warmer struct {
	fetcher ForecastFetcher
	logger  *zap.Logger
}

// NewWarmer creates a Warmer that uses the given fetcher and logger.
func NewWarmer(fetcher ForecastFetcher, logger *zap.Logger) *Warmer {
	return &Warmer{fetcher: fetcher, logger: logger}
}

// Warm fetches a forecast for each coordinate concurrently; the fetcher fills the cache.
// Returns a joined error naming every coordinate that failed.
func (w *Warmer) Warm(ctx context.Context, coords []models.Coordinate) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming forecast cache", zap.Int("locations", len(coords)))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, c := range coords {
		wg.Add(1)
		go func(c models.Coordinate) {
			defer wg.Done()
			if _, err := w.fetcher.GetForecast(ctx, c.Latitude, c.Longitude); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s: %w", c.CacheKey(), err))
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("forecast cache warming complete",
			zap.Int("locations", len(coords)),
			zap.Int("errors", len(errs)),
			zap.Float64("duration_seconds", duration),
		)
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return errors.Join(errs...)
	}
	return nil
}
