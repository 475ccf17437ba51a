package dashboard

import (
	"strconv"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/astronomy"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/prefs"
	"github.com/kjstillabower/weather-dashboard/internal/timeline"
	"github.com/kjstillabower/weather-dashboard/internal/units"
)

// Window sizes for the hourly strip and the daily list.
const (
	HourlyWindow = 24
	DailyWindow  = 7
)

// Fallbacks used when an optional hourly array is absent.
const (
	defaultVisibilityMeters = 10000
	defaultPressureHPa      = 1013
	defaultHumidity         = 50
)

// View is the presentation-ready form of a State.
type View struct {
	Location    string            `json:"location"`
	Coordinate  models.Coordinate `json:"coordinate"`
	Favorite    bool              `json:"favorite"`
	Error       string            `json:"error,omitempty"`
	Daylight    bool              `json:"daylight"`
	Theme       string            `json:"theme"`
	Current     *CurrentCard      `json:"current,omitempty"`
	Hourly      []HourRow         `json:"hourly,omitempty"`
	Daily       []DayRow          `json:"daily,omitempty"`
	Environment *EnvironmentCard  `json:"environment,omitempty"`
	Pollen      *PollenCard       `json:"pollen,omitempty"`
	Astronomy   *AstronomyCard    `json:"astronomy,omitempty"`
	Insight     *Insight          `json:"insight,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// CurrentCard is the headline conditions block.
type CurrentCard struct {
	Date          string              `json:"date"`
	Temperature   string              `json:"temperature"`
	FeelsLike     string              `json:"feels_like,omitempty"`
	Condition     string              `json:"condition"`
	Kind          units.ConditionKind `json:"kind"`
	Wind          string              `json:"wind"`
	WindDirection string              `json:"wind_direction"`
	Humidity      string              `json:"humidity"`
	High          string              `json:"high"`
	Low           string              `json:"low"`
}

// HourRow is one entry of the next-24-hours strip.
type HourRow struct {
	Label                    string              `json:"label"`
	Time                     string              `json:"time"`
	Temperature              string              `json:"temperature"`
	Kind                     units.ConditionKind `json:"kind"`
	PrecipitationProbability int                 `json:"precipitation_probability"`
}

// DayRow is one entry of the 7-day list.
type DayRow struct {
	Label                    string              `json:"label"`
	Date                     string              `json:"date"`
	High                     string              `json:"high"`
	Low                      string              `json:"low"`
	Kind                     units.ConditionKind `json:"kind"`
	PrecipitationProbability int                 `json:"precipitation_probability"`
}

// EnvironmentCard holds the environmental readings at the current hour.
type EnvironmentCard struct {
	AQI           int    `json:"aqi"`
	AQILevel      string `json:"aqi_level"`
	UVIndex       string `json:"uv_index"`
	UVLevel       string `json:"uv_level"`
	Visibility    string `json:"visibility"`
	Pressure      string `json:"pressure"`
	PressureLevel string `json:"pressure_level"`
	DewPoint      string `json:"dew_point"`
	CloudCover    string `json:"cloud_cover"`
}

// PollenCard lists pollen species. Available is false outside coverage.
type PollenCard struct {
	Available bool        `json:"available"`
	Species   []PollenRow `json:"species,omitempty"`
}

// PollenRow is one species reading.
type PollenRow struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Level string `json:"level"`
}

// AstronomyCard holds today's sun and moon facts.
type AstronomyCard struct {
	Sunrise          string  `json:"sunrise"`
	Sunset           string  `json:"sunset"`
	Daylight         string  `json:"daylight"`
	GoldenMorningEnd string  `json:"golden_morning_end"`
	GoldenEveningBeg string  `json:"golden_evening_start"`
	SunProgress      float64 `json:"sun_progress"`
	SunUp            bool    `json:"sun_up"`
	MoonPhase        string  `json:"moon_phase"`
}

// BuildView renders st for display with the user's settings. now is the
// wall-clock instant used for astronomy and the date line.
func BuildView(st State, settings prefs.Settings, now time.Time) View {
	v := View{
		Location:   st.LocationName,
		Coordinate: st.Coordinate,
		Theme:      settings.ThemeColor,
		UpdatedAt:  st.UpdatedAt,
	}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	if st.Snapshot == nil {
		return v
	}

	s := *st.Snapshot
	loc := location(s.Timezone)
	now = now.In(loc)
	idx := timeline.FindCurrentIndex(s.Current.Time, s.Hourly.Time)

	v.Daylight = s.Current.Daylight()
	v.Current = currentCard(s, idx, settings, now)
	v.Hourly = hourRows(s, settings, loc)
	v.Daily = dayRows(s, settings, loc)
	v.Environment = environmentCard(s, idx, settings)
	v.Pollen = pollenCard(s.AirQuality)
	v.Astronomy = astronomyCard(s, loc, now)
	insight := Advise(s, idx)
	v.Insight = &insight
	return v
}

func location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func currentCard(s models.WeatherSnapshot, idx int, settings prefs.Settings, now time.Time) *CurrentCard {
	c := s.Current
	card := &CurrentCard{
		Date:          now.Format("Monday, January 2"),
		Temperature:   units.FormatTemperature(c.Temperature, settings.Unit),
		Condition:     units.Condition(c.WeatherCode),
		Kind:          units.Kind(c.WeatherCode, c.Daylight()),
		Wind:          units.FormatWind(c.WindSpeed, settings.WindUnit),
		WindDirection: units.CompassPoint(c.WindDirection),
		Humidity:      strconv.Itoa(units.Round(at(s.Hourly.RelativeHumidity, idx, defaultHumidity))) + "%",
	}
	if c.ApparentTemperature != nil {
		card.FeelsLike = units.FormatTemperature(*c.ApparentTemperature, settings.Unit)
	}
	if len(s.Daily.TemperatureMax) > 0 {
		card.High = units.FormatTemperature(s.Daily.TemperatureMax[0], settings.Unit)
	}
	if len(s.Daily.TemperatureMin) > 0 {
		card.Low = units.FormatTemperature(s.Daily.TemperatureMin[0], settings.Unit)
	}
	return card
}

func hourRows(s models.WeatherSnapshot, settings prefs.Settings, loc *time.Location) []HourRow {
	w := timeline.Window(s, HourlyWindow)
	rows := make([]HourRow, 0, w.Len())
	for i, ts := range w.Time {
		label := ts
		daylight := true
		if t, ok := timeline.Parse(ts, loc); ok {
			label = t.Format("3 PM")
			daylight = t.Hour() > 6 && t.Hour() < 20
		}
		if i == 0 {
			label = "Now"
		}
		rows = append(rows, HourRow{
			Label:                    label,
			Time:                     ts,
			Temperature:              units.FormatTemperature(at(w.Temperature, i, 0), settings.Unit),
			Kind:                     units.Kind(atInt(w.WeatherCode, i), daylight),
			PrecipitationProbability: units.Round(at(w.PrecipitationProbability, i, 0)),
		})
	}
	return rows
}

func dayRows(s models.WeatherSnapshot, settings prefs.Settings, loc *time.Location) []DayRow {
	n := min(s.Daily.Len(), DailyWindow)
	rows := make([]DayRow, 0, n)
	for i := 0; i < n; i++ {
		ds := s.Daily.Time[i]
		label, date := ds, ds
		if t, err := time.ParseInLocation("2006-01-02", ds, loc); err == nil {
			label = t.Format("Mon")
			date = t.Format("Jan 2")
		}
		if i == 0 {
			label = "Today"
		}
		rows = append(rows, DayRow{
			Label:                    label,
			Date:                     date,
			High:                     units.FormatTemperature(at(s.Daily.TemperatureMax, i, 0), settings.Unit),
			Low:                      units.FormatTemperature(at(s.Daily.TemperatureMin, i, 0), settings.Unit),
			Kind:                     units.Kind(atInt(s.Daily.WeatherCode, i), true),
			PrecipitationProbability: units.Round(at(s.Daily.PrecipitationProbabilityMax, i, 0)),
		})
	}
	return rows
}

func environmentCard(s models.WeatherSnapshot, idx int, settings prefs.Settings) *EnvironmentCard {
	h := s.Hourly
	uv := at(h.UVIndex, idx, 0)
	pressure := at(h.SurfacePressure, idx, defaultPressureHPa)
	var aqi float64
	if s.AirQuality != nil {
		aqi = s.AirQuality.USAQI
	}
	return &EnvironmentCard{
		AQI:           units.Round(aqi),
		AQILevel:      units.AQILevel(aqi),
		UVIndex:       strconv.FormatFloat(uv, 'f', -1, 64),
		UVLevel:       units.UVLevel(uv),
		Visibility:    units.FormatVisibility(at(h.Visibility, idx, defaultVisibilityMeters), settings.WindUnit),
		Pressure:      units.FormatPressure(pressure, settings.PressureUnit),
		PressureLevel: units.PressureLevel(pressure),
		DewPoint:      strconv.Itoa(units.DewPoint(at(h.Temperature, idx, 0), at(h.RelativeHumidity, idx, defaultHumidity))) + "°",
		CloudCover:    strconv.Itoa(units.Round(at(h.CloudCover, idx, 0))) + "%",
	}
}

func pollenCard(aq *models.AirQuality) *PollenCard {
	if aq == nil {
		return &PollenCard{Available: false}
	}
	species := []struct {
		name string
		v    *float64
	}{
		{"Grass", aq.GrassPollen},
		{"Ragweed", aq.RagweedPollen},
		{"Birch", aq.BirchPollen},
		{"Olive", aq.OlivePollen},
		{"Alder", aq.AlderPollen},
		{"Mugwort", aq.MugwortPollen},
	}
	card := &PollenCard{Available: true}
	for _, sp := range species {
		var v float64
		if sp.v != nil {
			v = *sp.v
		}
		card.Species = append(card.Species, PollenRow{Name: sp.name, Value: units.Round(v), Level: units.PollenLevel(v)})
	}
	return card
}

func astronomyCard(s models.WeatherSnapshot, loc *time.Location, now time.Time) *AstronomyCard {
	if len(s.Daily.Sunrise) == 0 || len(s.Daily.Sunset) == 0 {
		return nil
	}
	rise, ok1 := timeline.Parse(s.Daily.Sunrise[0], loc)
	set, ok2 := timeline.Parse(s.Daily.Sunset[0], loc)
	if !ok1 || !ok2 {
		return nil
	}
	sun := astronomy.Sun{Sunrise: rise, Sunset: set}
	am, pm := sun.GoldenHours()
	return &AstronomyCard{
		Sunrise:          rise.Format("15:04"),
		Sunset:           set.Format("15:04"),
		Daylight:         astronomy.FormatDaylight(sun.Daylight()),
		GoldenMorningEnd: am.Format("15:04"),
		GoldenEveningBeg: pm.Format("15:04"),
		SunProgress:      sun.Progress(now),
		SunUp:            sun.Up(now),
		MoonPhase:        astronomy.MoonPhase(now).Name,
	}
}

// at returns xs[i] or def when the array is absent or short.
func at(xs []float64, i int, def float64) float64 {
	if i < 0 || i >= len(xs) {
		return def
	}
	return xs[i]
}

func atInt(xs []int, i int) int {
	if i < 0 || i >= len(xs) {
		return 0
	}
	return xs[i]
}
