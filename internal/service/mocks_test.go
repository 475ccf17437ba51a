package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// mockUpstream implements ForecastUpstream and PlaceSearcher with call counters.
type mockUpstream struct {
	forecastCalls   atomic.Int32
	airQualityCalls atomic.Int32
	searchCalls     atomic.Int32

	forecastFn   func(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error)
	airQualityFn func(ctx context.Context, lat, lon float64) (*models.AirQuality, error)
	searchFn     func(ctx context.Context, query string) ([]models.GeoLocation, error)

	mu             sync.Mutex
	correlationIDs []string
	searchArgs     []searchArgs
}

type searchArgs struct {
	query    string
	count    int
	language string
}

func (m *mockUpstream) FetchForecast(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error) {
	m.forecastCalls.Add(1)
	m.mu.Lock()
	m.correlationIDs = append(m.correlationIDs, observability.CorrelationID(ctx))
	m.mu.Unlock()
	if m.forecastFn != nil {
		return m.forecastFn(ctx, lat, lon)
	}
	return sampleSnapshot(lat), nil
}

func (m *mockUpstream) FetchAirQuality(ctx context.Context, lat, lon float64) (*models.AirQuality, error) {
	m.airQualityCalls.Add(1)
	if m.airQualityFn != nil {
		return m.airQualityFn(ctx, lat, lon)
	}
	return &models.AirQuality{USAQI: 35, PM25: 6.1, GrassPollen: models.Float(4)}, nil
}

func (m *mockUpstream) SearchPlaces(ctx context.Context, query string, count int, language string) ([]models.GeoLocation, error) {
	m.searchCalls.Add(1)
	m.mu.Lock()
	m.searchArgs = append(m.searchArgs, searchArgs{query, count, language})
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return []models.GeoLocation{
		{ID: 2643743, Name: "London", Latitude: 51.50853, Longitude: -0.12574, Country: "United Kingdom", Admin1: "England"},
	}, nil
}

func sampleSnapshot(temp float64) models.WeatherSnapshot {
	return models.WeatherSnapshot{
		Current: models.CurrentConditions{Temperature: temp, Time: "2024-01-01T11:00"},
		Hourly: models.HourlySeries{
			Time:        []string{"2024-01-01T10:00", "2024-01-01T11:00"},
			Temperature: []float64{temp - 1, temp},
		},
		FetchedAt: time.Date(2024, 1, 1, 11, 5, 0, 0, time.UTC),
	}
}

// failingCache fails every operation.
type failingCache[V any] struct{}

var errCacheDown = errors.New("memcache: connection refused")

func (failingCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	return zero, false, errCacheDown
}

func (failingCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	return errCacheDown
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
