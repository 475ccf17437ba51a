package service

import (
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// Fixed readings for the Saturn sentinel.
const (
	saturnTemperature   = -178.0
	saturnApparent      = -195.0
	saturnWindSpeed     = 1800.0 // km/h
	saturnWindDirection = 270.0
	saturnPressure      = 140000.0 // hPa
	saturnWeatherCode   = 3
	saturnUSAQI         = 500.0
	saturnPM25          = 999.0

	saturnHours = 24
	saturnDays  = 7

	hourLayout = "2006-01-02T15:04"
	dayLayout  = "2006-01-02"
)

// SaturnSnapshot synthesizes the Saturn forecast. Timestamps step from the current
// hour and day of now; every numeric value is fixed.
func SaturnSnapshot(now time.Time) models.WeatherSnapshot {
	hour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	h := models.HourlySeries{
		Time:                     make([]string, saturnHours),
		Temperature:              make([]float64, saturnHours),
		RelativeHumidity:         make([]float64, saturnHours),
		WeatherCode:              make([]int, saturnHours),
		UVIndex:                  make([]float64, saturnHours),
		Visibility:               make([]float64, saturnHours),
		SurfacePressure:          make([]float64, saturnHours),
		CloudCover:               make([]float64, saturnHours),
		PrecipitationProbability: make([]float64, saturnHours),
		WindSpeed:                make([]float64, saturnHours),
		ApparentTemperature:      make([]float64, saturnHours),
	}
	for i := 0; i < saturnHours; i++ {
		h.Time[i] = hour.Add(time.Duration(i) * time.Hour).Format(hourLayout)
		h.Temperature[i] = saturnTemperature
		h.RelativeHumidity[i] = 0
		h.WeatherCode[i] = saturnWeatherCode
		h.UVIndex[i] = 0
		h.Visibility[i] = 100
		h.SurfacePressure[i] = saturnPressure
		h.CloudCover[i] = 100
		h.PrecipitationProbability[i] = 0
		h.WindSpeed[i] = saturnWindSpeed
		h.ApparentTemperature[i] = saturnApparent
	}

	d := models.DailySeries{
		Time:                        make([]string, saturnDays),
		WeatherCode:                 make([]int, saturnDays),
		TemperatureMax:              make([]float64, saturnDays),
		TemperatureMin:              make([]float64, saturnDays),
		Sunrise:                     make([]string, saturnDays),
		Sunset:                      make([]string, saturnDays),
		PrecipitationProbabilityMax: make([]float64, saturnDays),
		PrecipitationSum:            make([]float64, saturnDays),
		WindSpeedMax:                make([]float64, saturnDays),
		UVIndexMax:                  make([]float64, saturnDays),
	}
	for i := 0; i < saturnDays; i++ {
		date := day.AddDate(0, 0, i)
		d.Time[i] = date.Format(dayLayout)
		d.WeatherCode[i] = saturnWeatherCode
		d.TemperatureMax[i] = saturnTemperature + 3
		d.TemperatureMin[i] = saturnTemperature - 7
		// A Saturn day lasts about 10h 33m.
		d.Sunrise[i] = date.Add(6 * time.Hour).Format(hourLayout)
		d.Sunset[i] = date.Add(11*time.Hour + 16*time.Minute).Format(hourLayout)
		d.WindSpeedMax[i] = saturnWindSpeed
	}

	zero := models.Float(0)
	return models.WeatherSnapshot{
		Current: models.CurrentConditions{
			Temperature:         saturnTemperature,
			WindSpeed:           saturnWindSpeed,
			WindDirection:       saturnWindDirection,
			WeatherCode:         saturnWeatherCode,
			IsDay:               1,
			Time:                h.Time[0],
			ApparentTemperature: models.Float(saturnApparent),
		},
		Hourly: h,
		Daily:  d,
		AirQuality: &models.AirQuality{
			USAQI:         saturnUSAQI,
			PM25:          saturnPM25,
			AlderPollen:   zero,
			BirchPollen:   zero,
			GrassPollen:   zero,
			MugwortPollen: zero,
			OlivePollen:   zero,
			RagweedPollen: zero,
		},
		HourlyUnits: map[string]string{"temperature_2m": "°C", "windspeed_10m": "km/h", "surface_pressure": "hPa"},
		DailyUnits:  map[string]string{"temperature_2m_max": "°C", "temperature_2m_min": "°C"},
		Timezone:    now.Location().String(),
		FetchedAt:   now,
	}
}
