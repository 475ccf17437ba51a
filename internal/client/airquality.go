package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

var airQualityFields = []string{
	"us_aqi",
	"pm2_5",
	"alder_pollen",
	"birch_pollen",
	"grass_pollen",
	"mugwort_pollen",
	"olive_pollen",
	"ragweed_pollen",
}

type airQualityResponse struct {
	Current *struct {
		USAQI         *float64 `json:"us_aqi"`
		PM25          *float64 `json:"pm2_5"`
		AlderPollen   *float64 `json:"alder_pollen"`
		BirchPollen   *float64 `json:"birch_pollen"`
		GrassPollen   *float64 `json:"grass_pollen"`
		MugwortPollen *float64 `json:"mugwort_pollen"`
		OlivePollen   *float64 `json:"olive_pollen"`
		RagweedPollen *float64 `json:"ragweed_pollen"`
	} `json:"current"`
}

// FetchAirQuality requests the current pollutant and pollen reading.
// Returns nil, nil when the provider has no coverage for the coordinate.
func (c *OpenMeteoClient) FetchAirQuality(ctx context.Context, lat, lon float64) (*models.AirQuality, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("current", strings.Join(airQualityFields, ","))

	var resp airQualityResponse
	if err := c.getJSON(ctx, ProviderAirQuality, c.endpoints.AirQuality, "/air-quality", params, &resp); err != nil {
		return nil, err
	}
	return mapAirQuality(resp), nil
}

func mapAirQuality(resp airQualityResponse) *models.AirQuality {
	cur := resp.Current
	if cur == nil || (cur.USAQI == nil && cur.PM25 == nil) {
		return nil
	}
	aq := &models.AirQuality{
		AlderPollen:   cur.AlderPollen,
		BirchPollen:   cur.BirchPollen,
		GrassPollen:   cur.GrassPollen,
		MugwortPollen: cur.MugwortPollen,
		OlivePollen:   cur.OlivePollen,
		RagweedPollen: cur.RagweedPollen,
	}
	if cur.USAQI != nil {
		aq.USAQI = *cur.USAQI
	}
	if cur.PM25 != nil {
		aq.PM25 = *cur.PM25
	}
	return aq
}
