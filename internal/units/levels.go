package units

// AQILevel classifies a US AQI value.
func AQILevel(aqi float64) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive"
	default:
		return "Unhealthy"
	}
}

// UVLevel classifies a UV index.
func UVLevel(uv float64) string {
	switch {
	case uv <= 2:
		return "Low"
	case uv <= 5:
		return "Moderate"
	case uv <= 7:
		return "High"
	default:
		return "Very High"
	}
}

// PollenLevel classifies a pollen concentration in grains/m³.
func PollenLevel(v float64) string {
	switch {
	case v < 10:
		return "Low"
	case v < 30:
		return "Moderate"
	case v < 60:
		return "High"
	default:
		return "Extreme"
	}
}

// PressureLevel labels surface pressure relative to 1000 hPa.
func PressureLevel(hpa float64) string {
	if hpa < 1000 {
		return "Low"
	}
	return "High"
}

// Condition is the short label shown on the current conditions card.
func Condition(code int) string {
	switch {
	case code == 0:
		return "Clear Sky"
	case code < 3:
		return "Partly Cloudy"
	case code > 60:
		return "Rainy"
	case code == 45:
		return "Foggy"
	default:
		return "Cloudy"
	}
}

// ConditionKind groups WMO weather codes into icon families.
type ConditionKind string

const (
	KindClearDay     ConditionKind = "clear-day"
	KindClearNight   ConditionKind = "clear-night"
	KindPartlyCloudy ConditionKind = "partly-cloudy"
	KindCloudy       ConditionKind = "cloudy"
	KindFog          ConditionKind = "fog"
	KindDrizzle      ConditionKind = "drizzle"
	KindRain         ConditionKind = "rain"
	KindSnow         ConditionKind = "snow"
	KindThunderstorm ConditionKind = "thunderstorm"
)

// Kind maps a WMO code to its icon family. Unknown codes render as clear day.
func Kind(code int, daylight bool) ConditionKind {
	switch {
	case code == 0:
		if daylight {
			return KindClearDay
		}
		return KindClearNight
	case code == 1 || code == 2:
		return KindPartlyCloudy
	case code == 3:
		return KindCloudy
	case code == 45 || code == 48:
		return KindFog
	case code >= 51 && code <= 55:
		return KindDrizzle
	case code >= 61 && code <= 67:
		return KindRain
	case code >= 71 && code <= 77:
		return KindSnow
	case code >= 95:
		return KindThunderstorm
	default:
		return KindClearDay
	}
}
