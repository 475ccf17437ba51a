// Package astronomy derives sun and moon facts for the astronomy card.
package astronomy

import (
	"fmt"
	"time"
)

// GoldenHourLength is the span after sunrise and before sunset treated as golden hour.
const GoldenHourLength = time.Hour

// synodicMonth is the mean lunar cycle in days.
const synodicMonth = 29.53058

// Sun holds one day's sunrise and sunset.
type Sun struct {
	Sunrise time.Time
	Sunset  time.Time
}

// Daylight returns sunset minus sunrise, or zero when the pair is inverted.
func (s Sun) Daylight() time.Duration {
	if !s.Sunset.After(s.Sunrise) {
		return 0
	}
	return s.Sunset.Sub(s.Sunrise)
}

// GoldenHours returns the end of the morning golden hour and the start of the evening one.
func (s Sun) GoldenHours() (morningEnd, eveningStart time.Time) {
	return s.Sunrise.Add(GoldenHourLength), s.Sunset.Add(-GoldenHourLength)
}

// Progress is the fraction of daylight elapsed at now, clamped to [0, 1].
func (s Sun) Progress(now time.Time) float64 {
	total := s.Daylight()
	if total == 0 {
		return 0
	}
	p := float64(now.Sub(s.Sunrise)) / float64(total)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// Up reports whether now falls strictly between sunrise and sunset.
func (s Sun) Up(now time.Time) bool {
	return now.After(s.Sunrise) && now.Before(s.Sunset)
}

// FormatDaylight renders a duration as "11h 16m". Minutes are rounded.
func FormatDaylight(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d%time.Hour + 30*time.Second) / time.Minute)
	if m == 60 {
		h, m = h+1, 0
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// Phase is a named moon phase with its position in the cycle (0 new, 0.5 full).
type Phase struct {
	Name     string  `json:"name"`
	Fraction float64 `json:"fraction"`
}

// MoonPhase approximates the moon phase on the calendar date of t.
// Only the date matters; the time of day is ignored.
func MoonPhase(t time.Time) Phase {
	year, month, day := t.Year(), int(t.Month()), t.Day()
	if month < 3 {
		year--
		month += 12
	}
	jd := 365.25*float64(year) + 30.6*float64(month) + float64(day) - 694039.09
	cycles := jd / synodicMonth
	f := cycles - float64(int64(cycles))
	return Phase{Name: phaseName(f), Fraction: f}
}

func phaseName(f float64) string {
	switch {
	case f < 0.03:
		return "New Moon"
	case f < 0.22:
		return "Waxing Crescent"
	case f < 0.28:
		return "First Quarter"
	case f < 0.47:
		return "Waxing Gibbous"
	case f < 0.53:
		return "Full Moon"
	case f < 0.72:
		return "Waning Gibbous"
	case f < 0.78:
		return "Last Quarter"
	default:
		return "Waning Crescent"
	}
}
