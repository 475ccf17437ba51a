package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kjstillabower/weather-dashboard/internal/dashboard"
	"github.com/kjstillabower/weather-dashboard/internal/geolocate"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/prefs"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeView prints the dashboard. Sections missing from the view are skipped.
func writeView(w io.Writer, v dashboard.View, asJSON bool) error {
	if asJSON {
		return writeJSON(w, v)
	}

	star := ""
	if v.Favorite {
		star = " *"
	}
	fmt.Fprintf(w, "%s%s (%s)\n", displayName(v.Location), star, v.Coordinate.CacheKey())
	if v.Error != "" {
		fmt.Fprintf(w, "error: %s\nretry with the same command or wait for the next refresh\n", v.Error)
		return nil
	}
	if v.Current == nil {
		fmt.Fprintln(w, "loading...")
		return nil
	}

	c := v.Current
	fmt.Fprintln(w, c.Date)
	fmt.Fprintf(w, "%s  %s", c.Temperature, c.Condition)
	if c.FeelsLike != "" {
		fmt.Fprintf(w, "  feels like %s", c.FeelsLike)
	}
	fmt.Fprintf(w, "\nwind %s %s  humidity %s  H %s  L %s\n", c.Wind, c.WindDirection, c.Humidity, c.High, c.Low)

	if v.Insight != nil {
		fmt.Fprintf(w, "tip: %s\n", v.Insight.Message)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(v.Hourly) > 0 {
		fmt.Fprintln(tw, "\nNext 24 hours")
		for _, h := range v.Hourly {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%d%%\n", h.Label, h.Temperature, h.Kind, h.PrecipitationProbability)
		}
	}
	if len(v.Daily) > 0 {
		fmt.Fprintln(tw, "\n7-day forecast")
		for _, d := range v.Daily {
			fmt.Fprintf(tw, "  %s\t%s\t%s / %s\t%s\t%d%%\n", d.Label, d.Date, d.High, d.Low, d.Kind, d.PrecipitationProbability)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if e := v.Environment; e != nil {
		fmt.Fprintln(w, "\nEnvironment")
		fmt.Fprintf(w, "  AQI %d (%s)  UV %s (%s)  visibility %s\n", e.AQI, e.AQILevel, e.UVIndex, e.UVLevel, e.Visibility)
		fmt.Fprintf(w, "  pressure %s (%s)  dew point %s  cloud cover %s\n", e.Pressure, e.PressureLevel, e.DewPoint, e.CloudCover)
	}
	if p := v.Pollen; p != nil {
		fmt.Fprintln(w, "\nPollen")
		if !p.Available {
			fmt.Fprintln(w, "  not available for this region")
		}
		for _, s := range p.Species {
			fmt.Fprintf(w, "  %-8s %4d  %s\n", s.Name, s.Value, s.Level)
		}
	}
	if a := v.Astronomy; a != nil {
		fmt.Fprintln(w, "\nSun and moon")
		fmt.Fprintf(w, "  sunrise %s  sunset %s  daylight %s\n", a.Sunrise, a.Sunset, a.Daylight)
		fmt.Fprintf(w, "  golden hour until %s and from %s  moon %s\n", a.GoldenMorningEnd, a.GoldenEveningBeg, a.MoonPhase)
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return geolocate.NameUnknown
	}
	return name
}

func writePlaces(w io.Writer, places []models.GeoLocation, asJSON bool) error {
	if asJSON {
		if places == nil {
			places = []models.GeoLocation{}
		}
		return writeJSON(w, places)
	}
	if len(places) == 0 {
		fmt.Fprintln(w, "no results")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range places {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Region(), p.Coordinate().CacheKey())
	}
	return tw.Flush()
}

func writeLocation(w io.Writer, loc geolocate.Location, asJSON bool) error {
	if asJSON {
		return writeJSON(w, loc)
	}
	_, err := fmt.Fprintf(w, "%s (%s) via %s\n", displayName(loc.Name), loc.Coordinate.CacheKey(), loc.Tier)
	return err
}

func writeFavorites(w io.Writer, favs []models.Favorite, asJSON bool) error {
	if asJSON {
		return writeJSON(w, favs)
	}
	if len(favs) == 0 {
		fmt.Fprintln(w, "no favorites")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range favs {
		c := models.Coordinate{Latitude: f.Latitude, Longitude: f.Longitude}
		fmt.Fprintf(tw, "%s\t%s\n", f.Name, c.CacheKey())
	}
	return tw.Flush()
}

func writeSettings(w io.Writer, s prefs.Settings, asJSON bool) error {
	if asJSON {
		return writeJSON(w, s)
	}
	var b strings.Builder
	for _, k := range prefs.SettingKeys {
		v, _ := s.Get(k)
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
