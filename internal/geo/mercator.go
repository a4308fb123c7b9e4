// Package geo converts result coordinates between the dataset CRS (EPSG:4326)
// and Web Mercator (EPSG:3857), the CRS basemap tiles are served in.
package geo

import (
	"math"

	"github.com/chrisdamba/bhtraffic/internal/models"
)

const (
	earthRadius = 6378137.0
	// maxLatitude is where Web Mercator is clipped to a square world.
	maxLatitude = 85.05112877980659
)

// ToWebMercator projects lon/lat degrees to EPSG:3857 metres. Latitudes
// beyond the Mercator limit are clamped.
func ToWebMercator(l models.Location) models.Location {
	lat := math.Max(-maxLatitude, math.Min(maxLatitude, l.Lat))
	x := earthRadius * l.Lon * math.Pi / 180
	y := earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return models.Location{Lon: x, Lat: y}
}

// FromWebMercator is the inverse of ToWebMercator.
func FromWebMercator(p models.Location) models.Location {
	lon := p.Lon / earthRadius * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(p.Lat/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return models.Location{Lon: lon, Lat: lat}
}

// Project converts l to crs. Unknown CRS values return l unchanged.
func Project(l models.Location, crs string) models.Location {
	if crs == models.CRSWebMercator {
		return ToWebMercator(l)
	}
	return l
}
