package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Location struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// ParseLocation converts source coordinate text to a Location. Values that do
// not parse or are not finite are rejected.
func ParseLocation(lon, lat string) (Location, error) {
	x, err := parseCoordinate(lon)
	if err != nil {
		return Location{}, fmt.Errorf("longitude: %w", err)
	}
	y, err := parseCoordinate(lat)
	if err != nil {
		return Location{}, fmt.Errorf("latitude: %w", err)
	}
	return Location{Lon: x, Lat: y}, nil
}

func parseCoordinate(s string) (float64, error) {
	// some exports use a decimal comma
	v, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// FormatCoordinate renders a float the way sources store coordinates.
func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
