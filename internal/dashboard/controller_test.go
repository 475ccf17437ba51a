package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// stubForecasts returns queued results in order, then repeats the last one.
type stubForecasts struct {
	mu      sync.Mutex
	results []stubResult
	calls   atomic.Int32
	block   chan struct{}
}

type stubResult struct {
	snap models.WeatherSnapshot
	err  error
}

func (s *stubForecasts) GetForecast(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error) {
	n := int(s.calls.Add(1))
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.results[min(n, len(s.results))-1]
	return r.snap, r.err
}

type stubNamer struct {
	name  string
	calls atomic.Int32
}

func (n *stubNamer) Name(ctx context.Context, lat, lon float64) string {
	n.calls.Add(1)
	return n.name
}

func snapshotAt(temp float64) models.WeatherSnapshot {
	return models.WeatherSnapshot{Current: models.CurrentConditions{Temperature: temp, Time: "2024-01-01T10:00"}}
}

// TestLoad_SuccessWithGivenName verifies a named load stores the snapshot without reverse geocoding.
func TestLoad_SuccessWithGivenName(t *testing.T) {
	fc := &stubForecasts{results: []stubResult{{snap: snapshotAt(12)}}}
	namer := &stubNamer{name: "Somewhere"}
	c := NewController(fc, namer, nil)

	if err := c.Load(context.Background(), 51.5, -0.12, "London"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	st := c.State()
	if st.Snapshot == nil || st.Snapshot.Current.Temperature != 12 {
		t.Fatalf("Snapshot = %+v", st.Snapshot)
	}
	if st.LocationName != "London" || st.Err != nil || st.Loading {
		t.Errorf("State() = %+v", st)
	}
	if namer.calls.Load() != 0 {
		t.Error("namer should not be called when a name is given")
	}
}

// TestLoad_ResolvesNameWhenMissing verifies an unnamed load reverse geocodes after success.
func TestLoad_ResolvesNameWhenMissing(t *testing.T) {
	fc := &stubForecasts{results: []stubResult{{snap: snapshotAt(12)}}}
	c := NewController(fc, &stubNamer{name: "Paris"}, nil)

	if err := c.Load(context.Background(), 48.85, 2.35, ""); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := c.State().LocationName; got != "Paris" {
		t.Errorf("LocationName = %q, want Paris", got)
	}
}

// TestLoad_FailureShowsNoStaleData verifies a failed load clears the previous snapshot.
func TestLoad_FailureShowsNoStaleData(t *testing.T) {
	upstream := errors.New("boom")
	fc := &stubForecasts{results: []stubResult{{snap: snapshotAt(12)}, {err: upstream}}}
	namer := &stubNamer{name: "X"}
	c := NewController(fc, namer, nil)

	_ = c.Load(context.Background(), 1, 1, "First")
	err := c.Load(context.Background(), 2, 2, "")
	if !errors.Is(err, ErrLoadFailed) || !errors.Is(err, upstream) {
		t.Fatalf("Load() error = %v, want ErrLoadFailed wrapping cause", err)
	}

	st := c.State()
	if st.Snapshot != nil {
		t.Error("failed load should not keep the previous snapshot")
	}
	if !errors.Is(st.Err, ErrLoadFailed) {
		t.Errorf("State().Err = %v, want ErrLoadFailed", st.Err)
	}
	if st.Coordinate != (models.Coordinate{Latitude: 2, Longitude: 2}) {
		t.Errorf("Coordinate = %v, want the failed target for retry", st.Coordinate)
	}
	if namer.calls.Load() != 0 {
		t.Error("namer should not be called when the forecast fails")
	}
}

// TestRefresh_FailureKeepsLastGood verifies a background failure leaves state untouched.
func TestRefresh_FailureKeepsLastGood(t *testing.T) {
	fc := &stubForecasts{results: []stubResult{{snap: snapshotAt(12)}, {err: errors.New("down")}}}
	c := NewController(fc, nil, nil)
	_ = c.Load(context.Background(), 1, 1, "Home")
	before := c.State()

	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() error = nil, want failure")
	}
	after := c.State()
	if after.Snapshot != before.Snapshot || after.Err != nil || after.UpdatedAt != before.UpdatedAt {
		t.Errorf("state changed after failed refresh: before %+v after %+v", before, after)
	}
}

// TestRefresh_ReplacesSnapshot verifies a successful refresh swaps in new data.
func TestRefresh_ReplacesSnapshot(t *testing.T) {
	fc := &stubForecasts{results: []stubResult{{snap: snapshotAt(12)}, {snap: snapshotAt(14)}}}
	c := NewController(fc, nil, nil)
	_ = c.Load(context.Background(), 1, 1, "Home")

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	st := c.State()
	if st.Snapshot.Current.Temperature != 14 || st.LocationName != "Home" || st.Loading {
		t.Errorf("State() = %+v", st)
	}
}

// TestRefresh_RecoversFromFailedLoad verifies a refresh after a failed load retries the same coordinate.
func TestRefresh_RecoversFromFailedLoad(t *testing.T) {
	fc := &stubForecasts{results: []stubResult{{err: errors.New("down")}, {snap: snapshotAt(3)}}}
	c := NewController(fc, &stubNamer{name: "Oslo"}, nil)
	_ = c.Load(context.Background(), 59.9, 10.7, "")

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	st := c.State()
	if st.Err != nil || st.Snapshot == nil || st.LocationName != "Oslo" {
		t.Errorf("State() = %+v", st)
	}
}

// TestRefresh_NothingLoaded verifies refresh is a no-op before the first load.
func TestRefresh_NothingLoaded(t *testing.T) {
	fc := &stubForecasts{results: []stubResult{{snap: snapshotAt(1)}}}
	c := NewController(fc, nil, nil)
	if err := c.Refresh(context.Background()); !errors.Is(err, ErrNothingLoaded) {
		t.Errorf("Refresh() error = %v, want ErrNothingLoaded", err)
	}
	if fc.calls.Load() != 0 {
		t.Error("refresh before load should not fetch")
	}
}

// TestRefresh_DiscardedAfterLocationChange verifies a refresh that finishes after a newer
// Load does not overwrite the newer location.
func TestRefresh_DiscardedAfterLocationChange(t *testing.T) {
	fc := &stubForecasts{results: []stubResult{{snap: snapshotAt(1)}}}
	c := NewController(fc, nil, nil)
	_ = c.Load(context.Background(), 1, 1, "Old")

	fc.block = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- c.Refresh(context.Background()) }()
	for fc.calls.Load() < 2 {
	}

	fc.mu.Lock()
	fc.results = []stubResult{{snap: snapshotAt(1)}, {snap: snapshotAt(1)}, {snap: snapshotAt(99)}}
	fc.mu.Unlock()
	loadDone := make(chan error, 1)
	go func() { loadDone <- c.Load(context.Background(), 2, 2, "New") }()
	for fc.calls.Load() < 3 {
	}
	close(fc.block)

	if err := <-loadDone; err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := <-done; !errors.Is(err, ErrLocationChanged) {
		t.Errorf("Refresh() error = %v, want ErrLocationChanged", err)
	}
	st := c.State()
	if st.LocationName != "New" || st.Snapshot.Current.Temperature != 99 {
		t.Errorf("State() = %+v, want New location data", st)
	}
}
