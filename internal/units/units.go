// Package units converts provider readings (metric) into display units and
// classifies readings into named levels.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrUnknownUnit is returned when parsing an unsupported unit name.
var ErrUnknownUnit = errors.New("unknown unit")

// TemperatureUnit is C or F.
type TemperatureUnit string

const (
	Celsius    TemperatureUnit = "C"
	Fahrenheit TemperatureUnit = "F"
)

// WindUnit is the display unit for wind speed. The provider reports km/h.
type WindUnit string

const (
	KilometersPerHour WindUnit = "km/h"
	MilesPerHour      WindUnit = "mph"
	MetersPerSecond   WindUnit = "m/s"
)

// PressureUnit is the display unit for pressure. The provider reports hPa.
type PressureUnit string

const (
	Hectopascal     PressureUnit = "hPa"
	InchesOfMercury PressureUnit = "inHg"
)

const (
	kmhToMph    = 0.621371
	kmhToMps    = 1 / 3.6
	hpaToInHg   = 0.02953
	metersPerMi = 1609.34
	metersPerKm = 1000.0
)

// ParseTemperatureUnit validates s.
func ParseTemperatureUnit(s string) (TemperatureUnit, error) {
	switch u := TemperatureUnit(s); u {
	case Celsius, Fahrenheit:
		return u, nil
	}
	return "", fmt.Errorf("%w: temperature %q (want C or F)", ErrUnknownUnit, s)
}

// ParseWindUnit validates s.
func ParseWindUnit(s string) (WindUnit, error) {
	switch u := WindUnit(s); u {
	case KilometersPerHour, MilesPerHour, MetersPerSecond:
		return u, nil
	}
	return "", fmt.Errorf("%w: wind %q (want km/h, mph or m/s)", ErrUnknownUnit, s)
}

// ParsePressureUnit validates s.
func ParsePressureUnit(s string) (PressureUnit, error) {
	switch u := PressureUnit(s); u {
	case Hectopascal, InchesOfMercury:
		return u, nil
	}
	return "", fmt.Errorf("%w: pressure %q (want hPa or inHg)", ErrUnknownUnit, s)
}

// Round rounds half up, so -2.5 becomes -2.
func Round(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Temperature converts a Celsius reading and rounds it.
func Temperature(celsius float64, u TemperatureUnit) int {
	if u == Fahrenheit {
		return Round(celsius*9/5 + 32)
	}
	return Round(celsius)
}

// FormatTemperature renders e.g. "12°".
func FormatTemperature(celsius float64, u TemperatureUnit) string {
	return strconv.Itoa(Temperature(celsius, u)) + "°"
}

// Wind converts a km/h reading.
func Wind(kmh float64, u WindUnit) float64 {
	switch u {
	case MilesPerHour:
		return kmh * kmhToMph
	case MetersPerSecond:
		return kmh * kmhToMps
	default:
		return kmh
	}
}

// FormatWind renders wind speed with its unit. m/s keeps one decimal.
func FormatWind(kmh float64, u WindUnit) string {
	if u == "" {
		u = KilometersPerHour
	}
	v := Wind(kmh, u)
	if u == MetersPerSecond {
		return strconv.FormatFloat(v, 'f', 1, 64) + " " + string(u)
	}
	return strconv.Itoa(Round(v)) + " " + string(u)
}

// Pressure converts an hPa reading.
func Pressure(hpa float64, u PressureUnit) float64 {
	if u == InchesOfMercury {
		return hpa * hpaToInHg
	}
	return hpa
}

// FormatPressure renders "1013 hPa" or "29.91 inHg".
func FormatPressure(hpa float64, u PressureUnit) string {
	if u == InchesOfMercury {
		return strconv.FormatFloat(Pressure(hpa, u), 'f', 2, 64) + " inHg"
	}
	return strconv.Itoa(Round(hpa)) + " hPa"
}

// FormatVisibility renders meters as miles when the wind unit is imperial, km otherwise.
func FormatVisibility(meters float64, wind WindUnit) string {
	if wind == MilesPerHour {
		return strconv.FormatFloat(meters/metersPerMi, 'f', 1, 64) + " mi"
	}
	return strconv.FormatFloat(meters/metersPerKm, 'f', 1, 64) + " km"
}

// DewPoint approximates the dew point in Celsius as T - (100 - RH) / 5.
func DewPoint(celsius, relativeHumidity float64) int {
	return Round(celsius - (100-relativeHumidity)/5)
}

// CompassPoint maps a bearing in degrees to one of 8 compass points.
func CompassPoint(degrees float64) string {
	points := [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	return points[int(math.Floor(d/45+0.5))%len(points)]
}
