// Package dashboard holds the page-level controller: it triggers fetches, owns
// the displayed state, and hands immutable snapshots to the view builder.
package dashboard

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

var (
	// ErrLoadFailed is the user-visible failure of a foreground load.
	ErrLoadFailed = errors.New("failed to load weather data")
	// ErrNothingLoaded is returned by Refresh before any location was loaded.
	ErrNothingLoaded = errors.New("no location loaded")
	// ErrLocationChanged is returned when a newer Load replaced the target mid-fetch.
	ErrLocationChanged = errors.New("location changed during refresh")
)

// ForecastGetter fetches the merged snapshot for a coordinate.
type ForecastGetter interface {
	GetForecast(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error)
}

// Namer resolves a display name for a coordinate. It never fails.
type Namer interface {
	Name(ctx context.Context, lat, lon float64) string
}

// State is what the dashboard displays. Snapshot is nil while loading and
// after a failed foreground load.
type State struct {
	Coordinate   models.Coordinate       `json:"coordinate"`
	LocationName string                  `json:"location_name"`
	Snapshot     *models.WeatherSnapshot `json:"snapshot,omitempty"`
	Loading      bool                    `json:"loading"`
	Err          error                   `json:"-"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

// Loaded reports whether a coordinate has been requested.
func (s State) Loaded() bool {
	return s.Snapshot != nil || s.Err != nil || s.Loading
}

// Controller serializes state updates. Fetches run outside the lock.
type Controller struct {
	forecasts ForecastGetter
	namer     Namer
	logger    *zap.Logger
	now       func() time.Time

	mu    sync.RWMutex
	state State
	gen   uint64
}

// NewController builds a Controller. namer may be nil, in which case unnamed
// loads display an empty name.
func NewController(forecasts ForecastGetter, namer Namer, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{forecasts: forecasts, namer: namer, logger: logger, now: time.Now}
}

// State returns a copy of the current state. The snapshot pointer is shared
// and must be treated as read-only.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Load fetches the forecast for a coordinate in the foreground. On failure the
// state carries ErrLoadFailed and no snapshot. When name is empty it is
// resolved by reverse geocoding after the forecast succeeds.
func (c *Controller) Load(ctx context.Context, lat, lon float64, name string) error {
	coord := models.Coordinate{Latitude: lat, Longitude: lon}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state = State{Coordinate: coord, LocationName: name, Loading: true}
	c.mu.Unlock()

	logger := observability.LoggerFromContext(ctx, c.logger)
	snap, err := c.forecasts.GetForecast(ctx, lat, lon)
	if err != nil {
		loadErr := fmt.Errorf("%w: %w", ErrLoadFailed, err)
		c.mu.Lock()
		if gen == c.gen {
			c.state = State{Coordinate: coord, LocationName: name, Err: loadErr, UpdatedAt: c.now()}
		}
		c.mu.Unlock()
		logger.Warn("forecast load failed", zap.String("key", coord.CacheKey()), zap.Error(err))
		return loadErr
	}

	if name == "" && c.namer != nil {
		name = c.namer.Name(ctx, lat, lon)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return ErrLocationChanged
	}
	c.state = State{Coordinate: coord, LocationName: name, Snapshot: &snap, UpdatedAt: c.now()}
	return nil
}

// Refresh re-fetches the displayed coordinate without entering the loading
// state. On failure the previous snapshot and error are kept as they were.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.RLock()
	st, gen := c.state, c.gen
	c.mu.RUnlock()
	if !st.Loaded() {
		return ErrNothingLoaded
	}

	snap, err := c.forecasts.GetForecast(ctx, st.Coordinate.Latitude, st.Coordinate.Longitude)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", st.Coordinate.CacheKey(), err)
	}
	name := st.LocationName
	if name == "" && c.namer != nil {
		name = c.namer.Name(ctx, st.Coordinate.Latitude, st.Coordinate.Longitude)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return ErrLocationChanged
	}
	c.state.Snapshot = &snap
	c.state.LocationName = name
	c.state.Err = nil
	c.state.Loading = false
	c.state.UpdatedAt = c.now()
	return nil
}
