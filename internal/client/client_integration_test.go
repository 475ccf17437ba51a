//go:build integration
// +build integration

package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func liveClient(t *testing.T) *OpenMeteoClient {
	t.Helper()
	c, err := NewOpenMeteoClient(DefaultEndpoints(), Options{Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}
	return c
}

// TestFetchForecast_Integration verifies the live provider returns aligned series.
func TestFetchForecast_Integration(t *testing.T) {
	c := liveClient(t)
	got, err := c.FetchForecast(context.Background(), 51.5074, -0.1278)
	if err != nil {
		t.Fatalf("FetchForecast() error = %v", err)
	}
	if got.Hourly.Len() == 0 || got.Daily.Len() == 0 {
		t.Errorf("empty series: hourly=%d daily=%d", got.Hourly.Len(), got.Daily.Len())
	}
	if got.Current.ApparentTemperature == nil {
		t.Error("ApparentTemperature not resolved")
	}
}

// TestFetchAirQuality_Integration verifies a covered location yields a reading.
func TestFetchAirQuality_Integration(t *testing.T) {
	c := liveClient(t)
	got, err := c.FetchAirQuality(context.Background(), 48.8534, 2.3488)
	if err != nil {
		t.Fatalf("FetchAirQuality() error = %v", err)
	}
	if got == nil {
		t.Error("FetchAirQuality() = nil for Paris")
	}
}

// TestSearchPlaces_Integration verifies the geocoder finds a well-known city.
func TestSearchPlaces_Integration(t *testing.T) {
	c := liveClient(t)
	got, err := c.SearchPlaces(context.Background(), "London", 5, "en")
	if err != nil {
		t.Fatalf("SearchPlaces() error = %v", err)
	}
	if len(got) == 0 || len(got) > 5 {
		t.Errorf("SearchPlaces() returned %d results, want 1..5", len(got))
	}
}

// TestFetchForecast_OutOfRange_Integration verifies the provider rejects impossible coordinates.
func TestFetchForecast_OutOfRange_Integration(t *testing.T) {
	c := liveClient(t)
	_, err := c.FetchForecast(context.Background(), 999, 999)
	if !errors.Is(err, ErrBadRequest) {
		t.Errorf("FetchForecast(999, 999) error = %v, want ErrBadRequest", err)
	}
}
