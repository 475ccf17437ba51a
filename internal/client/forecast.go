package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/timeline"
)

var (
	hourlyFields = []string{
		"temperature_2m",
		"relativehumidity_2m",
		"weathercode",
		"uv_index",
		"visibility",
		"surface_pressure",
		"cloud_cover",
		"precipitation_probability",
		"windspeed_10m",
		"apparent_temperature",
	}
	dailyFields = []string{
		"weathercode",
		"temperature_2m_max",
		"temperature_2m_min",
		"sunrise",
		"sunset",
		"precipitation_probability_max",
		"precipitation_sum",
		"windspeed_10m_max",
		"uv_index_max",
	}
	currentFields = []string{"apparent_temperature", "winddirection_10m"}
)

// currentWeatherBlock is the legacy instantaneous reading (current_weather=true).
type currentWeatherBlock struct {
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windspeed"`
	WindDirection float64 `json:"winddirection"`
	WeatherCode   int     `json:"weathercode"`
	IsDay         int     `json:"is_day"`
	Time          string  `json:"time"`
}

// currentBlock carries the fields requested through current=.
type currentBlock struct {
	Time                string   `json:"time"`
	ApparentTemperature *float64 `json:"apparent_temperature"`
	WindDirection       *float64 `json:"winddirection_10m"`
}

type forecastResponse struct {
	CurrentWeather *currentWeatherBlock `json:"current_weather"`
	Current        *currentBlock        `json:"current"`
	Hourly         models.HourlySeries  `json:"hourly"`
	Daily          models.DailySeries   `json:"daily"`
	HourlyUnits    map[string]string    `json:"hourly_units"`
	DailyUnits     map[string]string    `json:"daily_units"`
	Timezone       string               `json:"timezone"`
}

// FetchForecast requests current conditions plus hourly and daily blocks for a coordinate.
func (c *OpenMeteoClient) FetchForecast(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("current_weather", "true")
	params.Set("current", strings.Join(currentFields, ","))
	params.Set("hourly", strings.Join(hourlyFields, ","))
	params.Set("daily", strings.Join(dailyFields, ","))
	params.Set("timezone", "auto")

	var resp forecastResponse
	if err := c.getJSON(ctx, ProviderForecast, c.endpoints.Forecast, "/forecast", params, &resp); err != nil {
		return models.WeatherSnapshot{}, err
	}
	return mapForecast(resp, time.Now())
}

func mapForecast(resp forecastResponse, now time.Time) (models.WeatherSnapshot, error) {
	if resp.CurrentWeather == nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: missing current_weather", ErrMalformedResponse)
	}
	if err := resp.Hourly.Validate(); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := resp.Daily.Validate(); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	cw := resp.CurrentWeather
	current := models.CurrentConditions{
		Temperature: cw.Temperature,
		WindSpeed:   cw.WindSpeed,
		WeatherCode: cw.WeatherCode,
		IsDay:       cw.IsDay,
		Time:        cw.Time,
	}
	if v, ok := resolve(&resp, apparentTemperatureStrategies); ok {
		current.ApparentTemperature = models.Float(v)
	}
	current.WindDirection, _ = resolve(&resp, windDirectionStrategies)

	return models.WeatherSnapshot{
		Current:     current,
		Hourly:      resp.Hourly,
		Daily:       resp.Daily,
		HourlyUnits: resp.HourlyUnits,
		DailyUnits:  resp.DailyUnits,
		Timezone:    resp.Timezone,
		FetchedAt:   now,
	}, nil
}

// fieldStrategy reads one shape of a field the provider reports in more than one place.
type fieldStrategy func(r *forecastResponse) (float64, bool)

// Strategies are tried in order; the first that yields a value wins.
var (
	apparentTemperatureStrategies = []fieldStrategy{
		currentApparentTemperature,
		hourlyApparentTemperature,
	}
	windDirectionStrategies = []fieldStrategy{
		currentWindDirection,
		currentWeatherWindDirection,
	}
)

func resolve(r *forecastResponse, strategies []fieldStrategy) (float64, bool) {
	for _, s := range strategies {
		if v, ok := s(r); ok {
			return v, true
		}
	}
	return 0, false
}

func currentApparentTemperature(r *forecastResponse) (float64, bool) {
	if r.Current == nil || r.Current.ApparentTemperature == nil {
		return 0, false
	}
	return *r.Current.ApparentTemperature, true
}

// hourlyApparentTemperature reads the hourly series at the current observation's index.
func hourlyApparentTemperature(r *forecastResponse) (float64, bool) {
	series := r.Hourly.ApparentTemperature
	if len(series) == 0 || r.CurrentWeather == nil {
		return 0, false
	}
	i := timeline.FindCurrentIndex(r.CurrentWeather.Time, r.Hourly.Time)
	if i >= len(series) {
		return 0, false
	}
	return series[i], true
}

func currentWindDirection(r *forecastResponse) (float64, bool) {
	if r.Current == nil || r.Current.WindDirection == nil {
		return 0, false
	}
	return *r.Current.WindDirection, true
}

func currentWeatherWindDirection(r *forecastResponse) (float64, bool) {
	if r.CurrentWeather == nil {
		return 0, false
	}
	return r.CurrentWeather.WindDirection, true
}
