package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

// ForecastUpstream is the subset of client.UpstreamClient the forecast service needs.
type ForecastUpstream interface {
	FetchForecast(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error)
	FetchAirQuality(ctx context.Context, lat, lon float64) (*models.AirQuality, error)
}

// ForecastService returns merged forecast snapshots, read through a short-lived cache
// keyed by the coordinate rounded to two decimals.
type ForecastService struct {
	upstream  ForecastUpstream
	cache     cache.Cache[models.WeatherSnapshot]
	ttl       time.Duration
	logger    *zap.Logger
	tracker   *traffic.Tracker
	misses    *missTracker
	coalescer *requestCoalescer[models.WeatherSnapshot] // nil unless enabled
	now       func() time.Time
}

// NewForecastService creates a ForecastService owning cache c. coalesceTimeout > 0 joins
// concurrent misses for the same key into one upstream fetch; 0 lets each miss fetch.
// tracker may be nil.
func NewForecastService(upstream ForecastUpstream, c cache.Cache[models.WeatherSnapshot], ttl, coalesceTimeout time.Duration, logger *zap.Logger, tracker *traffic.Tracker) *ForecastService {
	if logger == nil {
		logger = zap.NewNop()
	}
	var coalescer *requestCoalescer[models.WeatherSnapshot]
	if coalesceTimeout > 0 {
		coalescer = newRequestCoalescer[models.WeatherSnapshot](coalesceTimeout)
	}
	return &ForecastService{
		upstream:  upstream,
		cache:     c,
		ttl:       ttl,
		logger:    logger,
		tracker:   tracker,
		misses:    newMissTracker(),
		coalescer: coalescer,
		now:       time.Now,
	}
}

// GetForecast returns the snapshot for (lat, lon). The Saturn coordinate is answered
// locally. A fresh cache entry is returned without network access. Otherwise the
// forecast and air-quality requests run concurrently: a forecast failure returns
// ErrForecastUnavailable and leaves the cache untouched; an air-quality failure is
// logged and the snapshot is returned without it.
func (s *ForecastService) GetForecast(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error) {
	if models.IsSaturn(lat, lon) {
		observability.SyntheticSnapshotsTotal.Inc()
		return SaturnSnapshot(s.now()), nil
	}

	ctx, logger := withCorrelation(ctx, s.logger)
	key := models.Coordinate{Latitude: lat, Longitude: lon}.CacheKey()
	start := time.Now()

	if snap, ok := lookup(ctx, s.cache, cacheForecast, key, logger); ok {
		logger.Debug("forecast served", zap.String("key", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return snap, nil
	}

	inFlight := s.misses.Begin(key)
	defer s.misses.End(key)
	observability.CacheConcurrentMisses.Observe(float64(inFlight))

	// The snapshot is stored by whoever runs the fetch, so a coalesced fetch
	// fills the cache even after all of its waiters have given up.
	fetch := func(ctx context.Context) (models.WeatherSnapshot, error) {
		snap, err := s.fetch(ctx, lat, lon, logger)
		if err != nil {
			return models.WeatherSnapshot{}, err
		}
		store(ctx, s.cache, cacheForecast, key, snap, s.ttl, logger)
		return snap, nil
	}
	var (
		snap models.WeatherSnapshot
		err  error
	)
	if s.coalescer != nil {
		var shared bool
		snap, shared, err = s.coalescer.Do(ctx, key, fetch)
		if shared {
			observability.CoalescedFetchesTotal.Inc()
		}
	} else {
		snap, err = fetch(ctx)
	}
	if err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: %s: %w", ErrForecastUnavailable, key, err)
	}

	logger.Debug("forecast served", zap.String("key", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return snap, nil
}

// fetch issues both upstream requests and merges them. Both are awaited before merging.
func (s *ForecastService) fetch(ctx context.Context, lat, lon float64, logger *zap.Logger) (models.WeatherSnapshot, error) {
	var (
		wg    sync.WaitGroup
		aq    *models.AirQuality
		aqErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		aq, aqErr = s.upstream.FetchAirQuality(ctx, lat, lon)
	}()

	snap, err := s.upstream.FetchForecast(ctx, lat, lon)
	wg.Wait()

	if err != nil {
		s.record(func(t *traffic.Tracker) { t.RecordError() })
		logger.Warn("forecast fetch failed", zap.Float64("latitude", lat), zap.Float64("longitude", lon), zap.Error(err))
		return models.WeatherSnapshot{}, err
	}

	if aqErr != nil {
		observability.AirQualityDegradedTotal.Inc()
		s.record(func(t *traffic.Tracker) { t.RecordPartial() })
		logger.Warn("air quality unavailable, serving forecast without it", zap.Error(aqErr))
		return snap, nil
	}

	snap.AirQuality = aq
	s.record(func(t *traffic.Tracker) { t.RecordSuccess() })
	return snap, nil
}

func (s *ForecastService) record(fn func(*traffic.Tracker)) {
	if s.tracker != nil {
		fn(s.tracker)
	}
}
