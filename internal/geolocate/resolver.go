// Package geolocate turns device signals into a coordinate and a display name.
//
// Resolution walks a strictly sequential chain: device position, then IP
// geolocation, then a fixed default. The chain never fails; running out of
// tiers yields the default location.
package geolocate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// Tiers reported on Location and in the geolocationTierTotal metric.
const (
	TierDevice  = "device"
	TierIP      = "ip"
	TierDefault = "default"
)

// Provider names used as metric labels.
const (
	providerIP      = "ip_geolocation"
	providerReverse = "reverse_geocode"
)

// DefaultLocation is used when every other tier has failed.
var DefaultLocation = Location{
	Coordinate: models.Coordinate{Latitude: 51.5074, Longitude: -0.1278},
	Name:       "London",
	Tier:       TierDefault,
}

var (
	// ErrNoPosition is returned by a Positioner that has nothing to report.
	ErrNoPosition = errors.New("no device position")
	// ErrLookupFailed marks an IP geolocation answer without a usable coordinate.
	ErrLookupFailed = errors.New("ip geolocation failed")
)

// Location is a resolved coordinate. Name is empty when the tier did not supply one.
type Location struct {
	Coordinate models.Coordinate `json:"coordinate"`
	Name       string            `json:"name,omitempty"`
	Tier       string            `json:"tier"`
}

// Positioner reports the device position. Implementations should honour ctx.
type Positioner interface {
	Position(ctx context.Context) (models.Coordinate, error)
}

// PositionerFunc adapts a function to Positioner.
type PositionerFunc func(ctx context.Context) (models.Coordinate, error)

// Position calls f.
func (f PositionerFunc) Position(ctx context.Context) (models.Coordinate, error) {
	return f(ctx)
}

// FixedPosition reports a known coordinate, e.g. one passed on the command line.
func FixedPosition(c models.Coordinate) Positioner {
	return PositionerFunc(func(context.Context) (models.Coordinate, error) {
		return c, nil
	})
}

// Options configures the HTTP tiers.
type Options struct {
	IPBaseURL      string
	ReverseBaseURL string
	Timeout        time.Duration
	RetryCount     int
	RetryWait      time.Duration
	RetryMaxWait   time.Duration
	DeviceTimeout  time.Duration
	NameCacheTTL   time.Duration
}

// DefaultOptions returns production settings.
func DefaultOptions() Options {
	return Options{
		IPBaseURL:      "https://ipapi.co",
		ReverseBaseURL: "https://api.bigdatacloud.net/data",
		Timeout:        5 * time.Second,
		RetryCount:     2,
		RetryWait:      200 * time.Millisecond,
		RetryMaxWait:   2 * time.Second,
		DeviceTimeout:  10 * time.Second,
		NameCacheTTL:   30 * time.Minute,
	}
}

// ipResponse is the subset of the IP geolocation payload we read.
type ipResponse struct {
	City      string   `json:"city"`
	Region    string   `json:"region"`
	Country   string   `json:"country_name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Error     bool     `json:"error"`
	Reason    string   `json:"reason"`
}

// Resolver runs the three-tier chain.
type Resolver struct {
	device        Positioner
	ip            *resty.Client
	deviceTimeout time.Duration
	logger        *zap.Logger
}

// NewResolver builds a Resolver. device may be nil, in which case the chain starts at the IP tier.
func NewResolver(device Positioner, opts Options, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		device:        device,
		ip:            newRestyClient(opts.IPBaseURL, providerIP, opts, logger),
		deviceTimeout: opts.DeviceTimeout,
		logger:        logger,
	}
}

// Resolve returns the first location any tier produces. It never fails.
func (r *Resolver) Resolve(ctx context.Context) Location {
	logger := observability.LoggerFromContext(ctx, r.logger)

	if r.device != nil {
		c, err := r.devicePosition(ctx)
		if err == nil {
			observability.GeolocationTierTotal.WithLabelValues(TierDevice).Inc()
			return Location{Coordinate: c, Tier: TierDevice}
		}
		logger.Debug("device position unavailable, trying ip geolocation", zap.Error(err))
	}

	loc, err := r.lookupIP(ctx)
	if err == nil {
		observability.GeolocationTierTotal.WithLabelValues(TierIP).Inc()
		return loc
	}
	logger.Debug("ip geolocation unavailable, using default location", zap.Error(err))

	observability.GeolocationTierTotal.WithLabelValues(TierDefault).Inc()
	return DefaultLocation
}

// devicePosition bounds the device tier by deviceTimeout even when the
// positioner ignores its context.
func (r *Resolver) devicePosition(ctx context.Context) (models.Coordinate, error) {
	if r.deviceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.deviceTimeout)
		defer cancel()
	}

	type result struct {
		c   models.Coordinate
		err error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := r.device.Position(ctx)
		ch <- result{c, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return models.Coordinate{}, res.err
		}
		if !validCoordinate(res.c) {
			return models.Coordinate{}, fmt.Errorf("%w: out of range %v", ErrNoPosition, res.c)
		}
		return res.c, nil
	case <-ctx.Done():
		return models.Coordinate{}, fmt.Errorf("device position: %w", ctx.Err())
	}
}

func (r *Resolver) lookupIP(ctx context.Context) (Location, error) {
	var body ipResponse
	resp, err := r.ip.R().
		SetContext(ctx).
		SetResult(&body).
		Get("/json/")
	if err != nil {
		return Location{}, fmt.Errorf("ip geolocation request: %w", err)
	}
	if !resp.IsSuccess() {
		return Location{}, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode())
	}
	if body.Error {
		return Location{}, fmt.Errorf("%w: %s", ErrLookupFailed, body.Reason)
	}
	if body.Latitude == nil || body.Longitude == nil {
		return Location{}, fmt.Errorf("%w: missing coordinate", ErrLookupFailed)
	}
	c := models.Coordinate{Latitude: *body.Latitude, Longitude: *body.Longitude}
	if !validCoordinate(c) {
		return Location{}, fmt.Errorf("%w: out of range %v", ErrLookupFailed, c)
	}
	return Location{Coordinate: c, Name: body.City, Tier: TierIP}, nil
}

func validCoordinate(c models.Coordinate) bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// newRestyClient configures a client with metrics and debug logging hooks.
func newRestyClient(baseURL, provider string, opts Options, logger *zap.Logger) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && (resp.StatusCode() == 429 || resp.StatusCode() >= 500)
		})

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if id := observability.CorrelationID(req.Context()); id != "" {
			req.SetHeader("X-Correlation-ID", id)
		}
		return nil
	})

	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		status := observability.StatusLabel(resp.StatusCode())
		observability.UpstreamCallsTotal.WithLabelValues(provider, status).Inc()
		observability.UpstreamDuration.WithLabelValues(provider, status).Observe(resp.Time().Seconds())
		logger.Debug("upstream response",
			zap.String("provider", provider),
			zap.String("url", resp.Request.URL),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("duration", resp.Time()),
		)
		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		observability.UpstreamCallsTotal.WithLabelValues(provider, "error").Inc()
		observability.UpstreamErrorsTotal.WithLabelValues(provider, "network").Inc()
		logger.Debug("upstream request failed", zap.String("provider", provider), zap.String("url", req.URL), zap.Error(err))
	})

	return client
}
