package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

type searchResponse struct {
	Results []models.GeoLocation `json:"results"`
}

// SearchPlaces returns up to count places matching query, ranked by the provider.
// A response without results yields an empty, non-nil list.
func (c *OpenMeteoClient) SearchPlaces(ctx context.Context, query string, count int, language string) ([]models.GeoLocation, error) {
	params := url.Values{}
	params.Set("name", query)
	params.Set("count", strconv.Itoa(count))
	params.Set("language", language)
	params.Set("format", "json")

	var resp searchResponse
	if err := c.getJSON(ctx, ProviderGeocoding, c.endpoints.Geocoding, "/search", params, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return []models.GeoLocation{}, nil
	}
	return resp.Results, nil
}
