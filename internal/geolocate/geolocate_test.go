package geolocate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

func testOptions(ipURL, reverseURL string) Options {
	opts := DefaultOptions()
	opts.IPBaseURL = ipURL
	opts.ReverseBaseURL = reverseURL
	opts.Timeout = time.Second
	opts.RetryCount = 0
	opts.RetryWait = time.Millisecond
	opts.RetryMaxWait = time.Millisecond
	opts.DeviceTimeout = 50 * time.Millisecond
	return opts
}

func jsonServer(t *testing.T, status int, body string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestResolve_DeviceTier verifies a device position short-circuits the chain.
func TestResolve_DeviceTier(t *testing.T) {
	var ipCalls atomic.Int32
	ip := jsonServer(t, http.StatusOK, `{"city":"Paris","latitude":48.85,"longitude":2.35}`, &ipCalls)

	want := models.Coordinate{Latitude: 40.7128, Longitude: -74.006}
	r := NewResolver(FixedPosition(want), testOptions(ip.URL, ""), nil)

	got := r.Resolve(context.Background())
	if got.Tier != TierDevice || got.Coordinate != want {
		t.Fatalf("Resolve() = %+v, want device tier at %v", got, want)
	}
	if got.Name != "" {
		t.Errorf("Name = %q, want empty for device tier", got.Name)
	}
	if n := ipCalls.Load(); n != 0 {
		t.Errorf("ip tier called %d times, want 0", n)
	}
}

// TestResolve_FallsBackToIP verifies a failing device tier falls through to IP geolocation.
func TestResolve_FallsBackToIP(t *testing.T) {
	ip := jsonServer(t, http.StatusOK, `{"city":"Paris","region":"Île-de-France","country_name":"France","latitude":48.85,"longitude":2.35}`, nil)

	denied := PositionerFunc(func(context.Context) (models.Coordinate, error) {
		return models.Coordinate{}, errors.New("permission denied")
	})
	r := NewResolver(denied, testOptions(ip.URL, ""), nil)

	got := r.Resolve(context.Background())
	want := Location{Coordinate: models.Coordinate{Latitude: 48.85, Longitude: 2.35}, Name: "Paris", Tier: TierIP}
	if got != want {
		t.Fatalf("Resolve() = %+v, want %+v", got, want)
	}
}

// TestResolve_DeviceTimeout verifies a hung positioner is abandoned after the device timeout.
func TestResolve_DeviceTimeout(t *testing.T) {
	ip := jsonServer(t, http.StatusOK, `{"city":"Oslo","latitude":59.91,"longitude":10.75}`, nil)

	release := make(chan struct{})
	defer close(release)
	hung := PositionerFunc(func(context.Context) (models.Coordinate, error) {
		<-release
		return models.Coordinate{}, nil
	})
	r := NewResolver(hung, testOptions(ip.URL, ""), nil)

	start := time.Now()
	got := r.Resolve(context.Background())
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Resolve() took %v, device timeout not enforced", elapsed)
	}
	if got.Tier != TierIP || got.Name != "Oslo" {
		t.Errorf("Resolve() = %+v, want ip tier Oslo", got)
	}
}

// TestResolve_DefaultWhenExhausted verifies every IP failure mode lands on the default location.
func TestResolve_DefaultWhenExhausted(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"provider error flag", http.StatusOK, `{"error":true,"reason":"RateLimited"}`},
		{"missing coordinate", http.StatusOK, `{"city":"Nowhere"}`},
		{"out of range", http.StatusOK, `{"latitude":123,"longitude":0}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ip := jsonServer(t, tc.status, tc.body, nil)
			r := NewResolver(nil, testOptions(ip.URL, ""), nil)
			if got := r.Resolve(context.Background()); got != DefaultLocation {
				t.Errorf("Resolve() = %+v, want default %+v", got, DefaultLocation)
			}
		})
	}
}

// TestResolve_UnreachableIPProvider verifies a transport error also falls back to the default.
func TestResolve_UnreachableIPProvider(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := NewResolver(nil, testOptions(url, ""), nil)
	if got := r.Resolve(context.Background()); got.Tier != TierDefault {
		t.Errorf("Tier = %q, want %q", got.Tier, TierDefault)
	}
}

// TestResolve_InvalidDevicePosition verifies an out-of-range device reading is not trusted.
func TestResolve_InvalidDevicePosition(t *testing.T) {
	ip := jsonServer(t, http.StatusInternalServerError, `{}`, nil)
	bogus := FixedPosition(models.Coordinate{Latitude: 200, Longitude: 0})
	r := NewResolver(bogus, testOptions(ip.URL, ""), nil)
	if got := r.Resolve(context.Background()); got.Tier != TierDefault {
		t.Errorf("Tier = %q, want %q", got.Tier, TierDefault)
	}
}

// TestReverseGeocoder_Name verifies the city, locality, placeholder and failure outcomes.
func TestReverseGeocoder_Name(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"city", http.StatusOK, `{"city":"Lyon","locality":"Vieux Lyon"}`, "Lyon"},
		{"locality only", http.StatusOK, `{"city":"","locality":"Vieux Lyon"}`, "Vieux Lyon"},
		{"neither", http.StatusOK, `{}`, NameFallback},
		{"non-success", http.StatusForbidden, `{"description":"quota"}`, NameUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := jsonServer(t, tc.status, tc.body, nil)
			g := NewReverseGeocoder(testOptions("", srv.URL), nil)
			if got := g.Name(context.Background(), 45.76, 4.83); got != tc.want {
				t.Errorf("Name() = %q, want %q", got, tc.want)
			}
		})
	}
}

// TestReverseGeocoder_RequestShape verifies the query parameters sent upstream.
func TestReverseGeocoder_RequestShape(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		q := r.URL.Query()
		gotQuery = map[string]string{
			"latitude":         q.Get("latitude"),
			"longitude":        q.Get("longitude"),
			"localityLanguage": q.Get("localityLanguage"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"city":"Lyon"}`))
	}))
	defer srv.Close()

	g := NewReverseGeocoder(testOptions("", srv.URL), nil)
	g.Name(context.Background(), 45.764, 4.8357)

	if gotPath != "/reverse-geocode-client" {
		t.Errorf("path = %q", gotPath)
	}
	want := map[string]string{"latitude": "45.764", "longitude": "4.8357", "localityLanguage": "en"}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

// TestReverseGeocoder_CachesByRoundedCoordinate verifies nearby lookups share one request
// and failures are not cached.
func TestReverseGeocoder_CachesByRoundedCoordinate(t *testing.T) {
	var calls atomic.Int32
	srv := jsonServer(t, http.StatusOK, `{"city":"Lyon"}`, &calls)
	g := NewReverseGeocoder(testOptions("", srv.URL), nil)

	g.Name(context.Background(), 45.7641, 4.8357)
	g.Name(context.Background(), 45.7599, 4.8351)
	if n := calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}

	var failCalls atomic.Int32
	failing := jsonServer(t, http.StatusBadGateway, `{}`, &failCalls)
	fg := NewReverseGeocoder(testOptions("", failing.URL), nil)
	fg.Name(context.Background(), 1, 1)
	fg.Name(context.Background(), 1, 1)
	if n := failCalls.Load(); n != 2 {
		t.Errorf("failing upstream calls = %d, want 2 (failures not cached)", n)
	}
	if _, found := fg.names.Get(models.Coordinate{Latitude: 1, Longitude: 1}.CacheKey()); found {
		t.Error("failure result should not be cached")
	}
}

// TestReverseGeocoder_Saturn verifies the sentinel coordinate is named without network access.
func TestReverseGeocoder_Saturn(t *testing.T) {
	var calls atomic.Int32
	srv := jsonServer(t, http.StatusOK, `{"city":"Lyon"}`, &calls)
	g := NewReverseGeocoder(testOptions("", srv.URL), nil)

	if got := g.Name(context.Background(), models.SaturnLatitude, models.SaturnLongitude); got != models.SaturnName {
		t.Errorf("Name() = %q, want %q", got, models.SaturnName)
	}
	if calls.Load() != 0 {
		t.Error("saturn lookup should not reach the network")
	}
}
