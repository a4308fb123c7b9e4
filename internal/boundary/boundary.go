// Package boundary loads administrative areas from a GeoJSON feature
// collection, such as the municipalities of Minas Gerais.
package boundary

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
	"github.com/tidwall/gjson"
)

var ErrNotFound = errors.New("boundary not found")

// Boundary is one feature of the collection, selected by its name property.
type Boundary struct {
	name    string
	feature *geojson.Feature
}

// Load reads path and selects the feature whose properties.name matches name,
// ignoring case.
func Load(path, name string) (*Boundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boundary file: %w", err)
	}
	return Parse(string(data), name)
}

func Parse(data, name string) (*Boundary, error) {
	obj, err := geojson.Parse(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse boundary geojson: %w", err)
	}

	var found *Boundary
	visit := func(o geojson.Object) bool {
		feat, ok := o.(*geojson.Feature)
		if !ok {
			return true
		}
		featName := gjson.Get(feat.Members(), "properties.name").String()
		if strings.EqualFold(strings.TrimSpace(featName), strings.TrimSpace(name)) {
			found = &Boundary{name: featName, feature: feat}
			return false
		}
		return true
	}

	switch g := obj.(type) {
	case *geojson.FeatureCollection:
		g.ForEach(visit)
	case *geojson.Feature:
		visit(g)
	default:
		return nil, fmt.Errorf("boundary geojson must be a Feature or FeatureCollection, got %T", obj)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return found, nil
}

func (b *Boundary) Name() string { return b.name }

// Contains reports whether the WGS84 location lies inside the boundary.
func (b *Boundary) Contains(l models.Location) bool {
	return b.feature.Contains(geojson.NewPoint(geometry.Point{X: l.Lon, Y: l.Lat}))
}

// Bounds returns the south-west and north-east corners.
func (b *Boundary) Bounds() (min, max models.Location) {
	r := b.feature.Rect()
	return models.Location{Lon: r.Min.X, Lat: r.Min.Y}, models.Location{Lon: r.Max.X, Lat: r.Max.Y}
}

// JSON is the selected feature as GeoJSON.
func (b *Boundary) JSON() string { return b.feature.JSON() }

// Partition splits locations into those inside and outside the boundary,
// keeping their order.
func (b *Boundary) Partition(locs []models.LocationCount) (inside, outside []models.LocationCount) {
	for _, l := range locs {
		if b.Contains(l.Location) {
			inside = append(inside, l)
		} else {
			outside = append(outside, l)
		}
	}
	return inside, outside
}
