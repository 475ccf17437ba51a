package geolocate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// Placeholder names.
const (
	NameFallback = "Your Location"
	NameUnknown  = "Unknown Location"
)

type reverseResponse struct {
	City     string `json:"city"`
	Locality string `json:"locality"`
}

// ReverseGeocoder maps a coordinate to a display name.
// Resolved names are cached per rounded coordinate.
type ReverseGeocoder struct {
	client *resty.Client
	names  *gocache.Cache
	logger *zap.Logger
}

// NewReverseGeocoder builds a ReverseGeocoder against opts.ReverseBaseURL.
func NewReverseGeocoder(opts Options, logger *zap.Logger) *ReverseGeocoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := opts.NameCacheTTL
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &ReverseGeocoder{
		client: newRestyClient(opts.ReverseBaseURL, providerReverse, opts, logger),
		names:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Name returns city, then locality, then NameFallback. Any failure yields NameUnknown.
func (g *ReverseGeocoder) Name(ctx context.Context, lat, lon float64) string {
	if models.IsSaturn(lat, lon) {
		return models.SaturnName
	}

	key := models.Coordinate{Latitude: lat, Longitude: lon}.CacheKey()
	if v, found := g.names.Get(key); found {
		return v.(string)
	}

	name, err := g.lookup(ctx, lat, lon)
	if err != nil {
		observability.LoggerFromContext(ctx, g.logger).Debug("reverse geocoding failed",
			zap.String("key", key), zap.Error(err))
		return NameUnknown
	}
	g.names.Set(key, name, gocache.DefaultExpiration)
	return name
}

func (g *ReverseGeocoder) lookup(ctx context.Context, lat, lon float64) (string, error) {
	var body reverseResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":         strconv.FormatFloat(lat, 'f', -1, 64),
			"longitude":        strconv.FormatFloat(lon, 'f', -1, 64),
			"localityLanguage": "en",
		}).
		SetResult(&body).
		Get("/reverse-geocode-client")
	if err != nil {
		return "", fmt.Errorf("reverse geocode request: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("reverse geocode: status %d", resp.StatusCode())
	}
	switch {
	case body.City != "":
		return body.City, nil
	case body.Locality != "":
		return body.Locality, nil
	default:
		return NameFallback, nil
	}
}
