package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrSeriesLength is returned by Validate when a parallel array does not match the time axis.
var ErrSeriesLength = errors.New("series length mismatch")

// WeatherSnapshot is the merged result of one successful fetch cycle.
// Field names follow the Open-Meteo payload so snapshots round-trip through JSON caches.
type WeatherSnapshot struct {
	Current     CurrentConditions `json:"current_weather"`
	Hourly      HourlySeries      `json:"hourly"`
	Daily       DailySeries       `json:"daily"`
	AirQuality  *AirQuality       `json:"air_quality,omitempty"` // nil when the provider has no coverage
	HourlyUnits map[string]string `json:"hourly_units,omitempty"`
	DailyUnits  map[string]string `json:"daily_units,omitempty"`
	Timezone    string            `json:"timezone,omitempty"`
	FetchedAt   time.Time         `json:"fetched_at"`
}

// CurrentConditions is the instantaneous reading.
type CurrentConditions struct {
	Temperature         float64  `json:"temperature"`
	WindSpeed           float64  `json:"windspeed"`
	WindDirection       float64  `json:"winddirection"`
	WeatherCode         int      `json:"weathercode"`
	IsDay               int      `json:"is_day"`
	Time                string   `json:"time"`
	ApparentTemperature *float64 `json:"apparent_temperature,omitempty"`
}

// Daylight reports whether the reading was taken during daylight.
func (c CurrentConditions) Daylight() bool {
	return c.IsDay != 0
}

// HourlySeries holds parallel arrays indexed by hour-of-series. Index i of every
// array refers to Time[i]. Optional arrays are nil when the provider omitted them.
type HourlySeries struct {
	Time                     []string  `json:"time"`
	Temperature              []float64 `json:"temperature_2m"`
	RelativeHumidity         []float64 `json:"relativehumidity_2m"`
	WeatherCode              []int     `json:"weathercode"`
	UVIndex                  []float64 `json:"uv_index,omitempty"`
	Visibility               []float64 `json:"visibility,omitempty"`
	SurfacePressure          []float64 `json:"surface_pressure,omitempty"`
	CloudCover               []float64 `json:"cloud_cover,omitempty"`
	PrecipitationProbability []float64 `json:"precipitation_probability"`
	WindSpeed                []float64 `json:"windspeed_10m,omitempty"`
	ApparentTemperature      []float64 `json:"apparent_temperature,omitempty"`
}

// Len returns the number of hours in the series.
func (h HourlySeries) Len() int {
	return len(h.Time)
}

// Validate checks that every present array has the same length as Time.
func (h HourlySeries) Validate() error {
	n := len(h.Time)
	checks := []struct {
		name string
		len  int
		set  bool
	}{
		{"temperature_2m", len(h.Temperature), h.Temperature != nil},
		{"relativehumidity_2m", len(h.RelativeHumidity), h.RelativeHumidity != nil},
		{"weathercode", len(h.WeatherCode), h.WeatherCode != nil},
		{"uv_index", len(h.UVIndex), h.UVIndex != nil},
		{"visibility", len(h.Visibility), h.Visibility != nil},
		{"surface_pressure", len(h.SurfacePressure), h.SurfacePressure != nil},
		{"cloud_cover", len(h.CloudCover), h.CloudCover != nil},
		{"precipitation_probability", len(h.PrecipitationProbability), h.PrecipitationProbability != nil},
		{"windspeed_10m", len(h.WindSpeed), h.WindSpeed != nil},
		{"apparent_temperature", len(h.ApparentTemperature), h.ApparentTemperature != nil},
	}
	for _, c := range checks {
		if c.set && c.len != n {
			return fmt.Errorf("%w: hourly.%s has %d entries, time has %d", ErrSeriesLength, c.name, c.len, n)
		}
	}
	return nil
}

// DailySeries holds parallel arrays indexed by day-of-series.
type DailySeries struct {
	Time                        []string  `json:"time"`
	WeatherCode                 []int     `json:"weathercode"`
	TemperatureMax              []float64 `json:"temperature_2m_max"`
	TemperatureMin              []float64 `json:"temperature_2m_min"`
	Sunrise                     []string  `json:"sunrise"`
	Sunset                      []string  `json:"sunset"`
	PrecipitationProbabilityMax []float64 `json:"precipitation_probability_max"`
	PrecipitationSum            []float64 `json:"precipitation_sum,omitempty"`
	WindSpeedMax                []float64 `json:"windspeed_10m_max,omitempty"`
	UVIndexMax                  []float64 `json:"uv_index_max,omitempty"`
}

// Len returns the number of days in the series.
func (d DailySeries) Len() int {
	return len(d.Time)
}

// Validate checks that every present array has the same length as Time.
func (d DailySeries) Validate() error {
	n := len(d.Time)
	checks := []struct {
		name string
		len  int
		set  bool
	}{
		{"weathercode", len(d.WeatherCode), d.WeatherCode != nil},
		{"temperature_2m_max", len(d.TemperatureMax), d.TemperatureMax != nil},
		{"temperature_2m_min", len(d.TemperatureMin), d.TemperatureMin != nil},
		{"sunrise", len(d.Sunrise), d.Sunrise != nil},
		{"sunset", len(d.Sunset), d.Sunset != nil},
		{"precipitation_probability_max", len(d.PrecipitationProbabilityMax), d.PrecipitationProbabilityMax != nil},
		{"precipitation_sum", len(d.PrecipitationSum), d.PrecipitationSum != nil},
		{"windspeed_10m_max", len(d.WindSpeedMax), d.WindSpeedMax != nil},
		{"uv_index_max", len(d.UVIndexMax), d.UVIndexMax != nil},
	}
	for _, c := range checks {
		if c.set && c.len != n {
			return fmt.Errorf("%w: daily.%s has %d entries, time has %d", ErrSeriesLength, c.name, c.len, n)
		}
	}
	return nil
}

// AirQuality is the secondary reading. Pollen species are nil outside coverage areas.
type AirQuality struct {
	USAQI         float64  `json:"us_aqi"`
	PM25          float64  `json:"pm2_5"`
	AlderPollen   *float64 `json:"alder_pollen,omitempty"`
	BirchPollen   *float64 `json:"birch_pollen,omitempty"`
	GrassPollen   *float64 `json:"grass_pollen,omitempty"`
	MugwortPollen *float64 `json:"mugwort_pollen,omitempty"`
	OlivePollen   *float64 `json:"olive_pollen,omitempty"`
	RagweedPollen *float64 `json:"ragweed_pollen,omitempty"`
}

// Float returns a pointer to v. Convenience for optional fields.
func Float(v float64) *float64 {
	return &v
}
