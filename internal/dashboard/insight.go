package dashboard

import "github.com/kjstillabower/weather-dashboard/internal/models"

// Insight kinds, from most to least urgent.
const (
	InsightExtreme = "extreme"
	InsightRain    = "rain"
	InsightCold    = "cold"
	InsightWarm    = "warm"
	InsightBreezy  = "breezy"
	InsightMild    = "mild"
)

// Insight is the one-line daily suggestion.
type Insight struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Advise picks the first matching suggestion for the current conditions.
// Thresholds are in Celsius, km/h and percent. idx is the current hourly index.
func Advise(s models.WeatherSnapshot, idx int) Insight {
	temp := s.Current.Temperature
	wind := s.Current.WindSpeed
	precip := at(s.Hourly.PrecipitationProbability, idx, 0)

	switch {
	case temp < -50 || wind > 150:
		return Insight{InsightExtreme, "Extreme conditions detected. A pressure suit and oxygen supply are mandatory."}
	case s.Current.WeatherCode >= 61 || precip > 40:
		return Insight{InsightRain, "It's likely to rain. Don't forget your umbrella!"}
	case temp < 10:
		return Insight{InsightCold, "It's quite cold outside. Wear a warm coat and maybe a scarf."}
	case temp > 25:
		return Insight{InsightWarm, "It's warm! Light clothing, sunglasses, and sunscreen are recommended."}
	case wind > 20:
		return Insight{InsightBreezy, "It's breezy today. A windbreaker might be a good choice."}
	default:
		return Insight{InsightMild, "The weather is mild. Enjoy your day comfortably!"}
	}
}
