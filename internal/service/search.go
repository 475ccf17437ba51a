package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// PlaceSearcher is the subset of client.UpstreamClient the search service needs.
type PlaceSearcher interface {
	SearchPlaces(ctx context.Context, query string, count int, language string) ([]models.GeoLocation, error)
}

// SearchSettings controls query handling.
type SearchSettings struct {
	MinLength int    // queries shorter than this return no results without a request
	Count     int    // maximum results requested upstream
	Language  string // result language
}

// DefaultSearchSettings returns min length 2, five results, English.
func DefaultSearchSettings() SearchSettings {
	return SearchSettings{MinLength: 2, Count: 5, Language: "en"}
}

// SearchService resolves free-text queries to places, cached per lower-cased query.
type SearchService struct {
	upstream PlaceSearcher
	cache    cache.Cache[[]models.GeoLocation]
	ttl      time.Duration
	settings SearchSettings
	logger   *zap.Logger
}

// NewSearchService creates a SearchService owning cache c. Zero settings fields take defaults.
func NewSearchService(upstream PlaceSearcher, c cache.Cache[[]models.GeoLocation], ttl time.Duration, settings SearchSettings, logger *zap.Logger) *SearchService {
	d := DefaultSearchSettings()
	if settings.MinLength <= 0 {
		settings.MinLength = d.MinLength
	}
	if settings.Count <= 0 {
		settings.Count = d.Count
	}
	if settings.Language == "" {
		settings.Language = d.Language
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchService{
		upstream: upstream,
		cache:    c,
		ttl:      ttl,
		settings: settings,
		logger:   logger,
	}
}

// SearchLocations returns places matching query in provider order. Queries shorter than
// the minimum length return an empty list without a request. The Saturn query always
// lists the Saturn sentinel first. The returned slice is the caller's own copy.
func (s *SearchService) SearchLocations(ctx context.Context, query string) ([]models.GeoLocation, error) {
	if utf8.RuneCountInString(query) < s.settings.MinLength {
		return []models.GeoLocation{}, nil
	}

	ctx, logger := withCorrelation(ctx, s.logger)
	key := strings.ToLower(query)

	if results, ok := lookup(ctx, s.cache, cacheSearch, key, logger); ok {
		return slices.Clone(results), nil
	}

	results, err := s.upstream.SearchPlaces(ctx, query, s.settings.Count, s.settings.Language)
	if err != nil {
		if models.IsSaturnQuery(query) {
			// Not cached, so the next search retries the provider.
			logger.Warn("place search failed, returning Saturn only", zap.String("query", query), zap.Error(err))
			return []models.GeoLocation{models.SaturnLocation()}, nil
		}
		logger.Warn("place search failed", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("%w: %q: %w", ErrSearchFailed, query, err)
	}
	if results == nil {
		results = []models.GeoLocation{}
	}
	if models.IsSaturnQuery(query) {
		results = append([]models.GeoLocation{models.SaturnLocation()}, results...)
	}

	store(ctx, s.cache, cacheSearch, key, results, s.ttl, logger)
	return slices.Clone(results), nil
}
