package models

import (
	"fmt"
	"strings"
)

// Saturn is the built-in novelty location. Its coordinate lies outside the
// Earth's coordinate range so it can never collide with a real place.
const (
	SaturnLatitude  = 999.0
	SaturnLongitude = 999.0
	SaturnQuery     = "saturn"
	SaturnName      = "Saturn"
	SaturnID        = -1
)

// Coordinate identifies a forecast request.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CacheKey rounds both components to two decimals so nearby coordinates share an entry.
func (c Coordinate) CacheKey() string {
	return fmt.Sprintf("%.2f,%.2f", c.Latitude, c.Longitude)
}

// IsSaturn reports whether the pair is the Saturn sentinel.
func IsSaturn(lat, lon float64) bool {
	return lat == SaturnLatitude && lon == SaturnLongitude
}

// IsSaturnQuery reports whether a free-text query names the Saturn sentinel.
func IsSaturnQuery(query string) bool {
	return strings.ToLower(strings.TrimSpace(query)) == SaturnQuery
}

// GeoLocation is a place search result. ID is provider-assigned and opaque.
type GeoLocation struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1,omitempty"`
}

// Coordinate returns the location's coordinate.
func (g GeoLocation) Coordinate() Coordinate {
	return Coordinate{Latitude: g.Latitude, Longitude: g.Longitude}
}

// Region joins admin1 and country for display, skipping empty parts.
func (g GeoLocation) Region() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{g.Admin1, g.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// SaturnLocation is the synthetic search result for the Saturn sentinel.
func SaturnLocation() GeoLocation {
	return GeoLocation{
		ID:        SaturnID,
		Name:      SaturnName,
		Latitude:  SaturnLatitude,
		Longitude: SaturnLongitude,
		Country:   "Solar System",
		Admin1:    "Outer Planets",
	}
}

// Favorite is a user-named saved coordinate.
type Favorite struct {
	Name      string  `json:"name" validate:"required,max=120,placename"`
	Latitude  float64 `json:"latitude" validate:"latitude_or_saturn"`
	Longitude float64 `json:"longitude" validate:"longitude_or_saturn"`
}
