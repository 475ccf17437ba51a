// Package timeline aligns the provider's current-observation time with its hourly series.
package timeline

import (
	"slices"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// Timestamp layouts the forecast provider emits. Local times carry no offset.
var layouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

const hourKeyLayout = "2006-01-02T15"

// TruncateToHour returns ts reduced to its civil hour ("2006-01-02T15").
// The wall clock is kept as written; offsets are not normalised to UTC.
func TruncateToHour(ts string) (string, bool) {
	for _, layout := range layouts {
		t, err := time.Parse(layout, ts)
		if err == nil {
			return t.Format(hourKeyLayout), true
		}
	}
	return "", false
}

// Parse reads a provider timestamp. Local layouts are interpreted in loc;
// RFC 3339 values keep their own offset. A nil loc means UTC.
func Parse(ts string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, ts, loc)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FindCurrentIndex returns the index in series that corresponds to observed.
// An exact string match wins; otherwise the first entry in the same civil hour;
// otherwise 0. Empty inputs return 0.
func FindCurrentIndex(observed string, series []string) int {
	if observed == "" || len(series) == 0 {
		return 0
	}
	if i := slices.Index(series, observed); i >= 0 {
		return i
	}
	target, ok := TruncateToHour(observed)
	if !ok {
		return 0
	}
	for i, ts := range series {
		if h, ok := TruncateToHour(ts); ok && h == target {
			return i
		}
	}
	return 0
}

// NextHours returns count entries of every parallel array starting at from.
// The window is clamped to the series length without padding; absent arrays stay nil.
func NextHours(h models.HourlySeries, from, count int) models.HourlySeries {
	if from < 0 {
		from = 0
	}
	if count < 0 {
		count = 0
	}
	to := from + count
	return models.HourlySeries{
		Time:                     window(h.Time, from, to),
		Temperature:              window(h.Temperature, from, to),
		RelativeHumidity:         window(h.RelativeHumidity, from, to),
		WeatherCode:              window(h.WeatherCode, from, to),
		UVIndex:                  window(h.UVIndex, from, to),
		Visibility:               window(h.Visibility, from, to),
		SurfacePressure:          window(h.SurfacePressure, from, to),
		CloudCover:               window(h.CloudCover, from, to),
		PrecipitationProbability: window(h.PrecipitationProbability, from, to),
		WindSpeed:                window(h.WindSpeed, from, to),
		ApparentTemperature:      window(h.ApparentTemperature, from, to),
	}
}

// Window slices the next count hours starting at the snapshot's current observation.
func Window(s models.WeatherSnapshot, count int) models.HourlySeries {
	return NextHours(s.Hourly, FindCurrentIndex(s.Current.Time, s.Hourly.Time), count)
}

// window copies s[from:to] clamped to len(s). The copy keeps callers from aliasing the snapshot.
func window[T any](s []T, from, to int) []T {
	if s == nil {
		return nil
	}
	if from > len(s) {
		from = len(s)
	}
	if to > len(s) {
		to = len(s)
	}
	return slices.Clone(s[from:to])
}
