package geo

import (
	"testing"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestToWebMercator(t *testing.T) {
	tests := []struct {
		name string
		in   models.Location
		want models.Location
	}{
		{"origin", models.Location{}, models.Location{}},
		{"antimeridian", models.Location{Lon: 180}, models.Location{Lon: 20037508.342789244}},
		{"belo horizonte", models.Location{Lon: -43.9345, Lat: -19.9167}, models.Location{Lon: -4890766.17, Lat: -2263165.50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToWebMercator(tt.in)
			assert.InDelta(t, tt.want.Lon, got.Lon, 1)
			assert.InDelta(t, tt.want.Lat, got.Lat, 1)
		})
	}
}

func TestWebMercatorRoundTrip(t *testing.T) {
	in := models.Location{Lon: -43.9345, Lat: -19.9167}
	out := FromWebMercator(ToWebMercator(in))
	assert.InDelta(t, in.Lon, out.Lon, 1e-9)
	assert.InDelta(t, in.Lat, out.Lat, 1e-9)
}

func TestToWebMercatorClampsPoles(t *testing.T) {
	assert.Equal(t, ToWebMercator(models.Location{Lat: maxLatitude}), ToWebMercator(models.Location{Lat: 90}))
}

func TestProject(t *testing.T) {
	l := models.Location{Lon: 10, Lat: 10}
	assert.Equal(t, l, Project(l, models.CRSWGS84))
	assert.NotEqual(t, l, Project(l, models.CRSWebMercator))
}
