package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

type mockForecastFetcher struct {
	mu    sync.Mutex
	calls []models.Coordinate
	err   error
}

func (m *mockForecastFetcher) GetForecast(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error) {
	m.mu.Lock()
	m.calls = append(m.calls, models.Coordinate{Latitude: lat, Longitude: lon})
	m.mu.Unlock()
	if m.err != nil {
		return models.WeatherSnapshot{}, m.err
	}
	return models.WeatherSnapshot{Current: models.CurrentConditions{Temperature: 10}}, nil
}

// TestWarmer_Warm_FetchesEveryCoordinate verifies one fetch per coordinate.
func TestWarmer_Warm_FetchesEveryCoordinate(t *testing.T) {
	fetcher := &mockForecastFetcher{}
	w := NewWarmer(fetcher, nil)

	coords := []models.Coordinate{{Latitude: 51.5, Longitude: -0.12}, {Latitude: 48.85, Longitude: 2.35}}
	if err := w.Warm(context.Background(), coords); err != nil {
		t.Fatalf("Warm() error = %v, want nil", err)
	}
	if len(fetcher.calls) != 2 {
		t.Errorf("fetch calls = %d, want 2", len(fetcher.calls))
	}
}

// TestWarmer_Warm_Empty verifies nil and empty inputs are no-ops.
func TestWarmer_Warm_Empty(t *testing.T) {
	w := NewWarmer(&mockForecastFetcher{}, nil)
	if err := w.Warm(context.Background(), nil); err != nil {
		t.Fatalf("Warm(nil) error = %v", err)
	}
	if err := w.Warm(context.Background(), []models.Coordinate{}); err != nil {
		t.Fatalf("Warm(empty) error = %v", err)
	}
}

// TestWarmer_Warm_FetcherError verifies failures are aggregated and name the coordinate.
func TestWarmer_Warm_FetcherError(t *testing.T) {
	apiErr := errors.New("api down")
	w := NewWarmer(&mockForecastFetcher{err: apiErr}, nil)

	err := w.Warm(context.Background(), []models.Coordinate{{Latitude: 51.5074, Longitude: -0.1278}})
	if err == nil {
		t.Fatal("Warm() error = nil, want non-nil")
	}
	if !errors.Is(err, apiErr) {
		t.Errorf("Warm() error = %v, want wrapping %v", err, apiErr)
	}
	if !strings.Contains(err.Error(), "51.51,-0.13") {
		t.Errorf("Warm() error = %q, want coordinate key in message", err.Error())
	}
}
