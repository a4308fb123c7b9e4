package generator

import (
	"math"
	"math/rand"
	"strconv"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/jaswdr/faker"
	"github.com/lucsky/cuid"
)

// Sensor is one counting point. Density scales every count it reports.
type Sensor struct {
	ID        string
	Street    string
	Location  models.Location
	Longitude string
	Latitude  string
	Zone      string
	Density   float64
}

type zone struct {
	name    string
	maxKm   float64
	density float64
}

// zones grade traffic by distance from the city centre.
var zones = []zone{
	{name: "urban_core", maxKm: 2, density: 1.5},
	{name: "urban_residential", maxKm: 5, density: 1.2},
	{name: "suburban", maxKm: math.Inf(1), density: 0.8},
}

const earthRadiusKm = 6371.0

type SensorFactory struct {
	rnd  *rand.Rand
	fake faker.Faker
}

func NewSensorFactory(rnd *rand.Rand) *SensorFactory {
	return &SensorFactory{rnd: rnd, fake: faker.NewWithSeed(rand.NewSource(rnd.Int63()))}
}

// CreateSensor places a sensor uniformly in the square of side 2*radius
// around the city centre.
func (f *SensorFactory) CreateSensor(cfg models.GeneratorConfig) Sensor {
	latRange := cfg.UrbanRadius / 111.0
	lonRange := latRange / math.Cos(cfg.CityLat*math.Pi/180.0)

	loc := models.Location{
		Lat: round6(cfg.CityLat + (f.rnd.Float64()*2-1)*latRange),
		Lon: round6(cfg.CityLon + (f.rnd.Float64()*2-1)*lonRange),
	}
	z := zoneFor(distanceKm(loc, models.Location{Lat: cfg.CityLat, Lon: cfg.CityLon}))

	return Sensor{
		ID:        cuid.New(),
		Street:    f.fake.Address().StreetName(),
		Location:  loc,
		Longitude: strconv.FormatFloat(loc.Lon, 'f', 6, 64),
		Latitude:  strconv.FormatFloat(loc.Lat, 'f', 6, 64),
		Zone:      z.name,
		Density:   z.density * (0.5 + f.rnd.Float64()),
	}
}

func zoneFor(km float64) zone {
	for _, z := range zones {
		if km <= z.maxKm {
			return z
		}
	}
	return zones[len(zones)-1]
}

func distanceKm(a, b models.Location) float64 {
	lat1, lon1 := a.Lat*math.Pi/180, a.Lon*math.Pi/180
	lat2, lon2 := b.Lat*math.Pi/180, b.Lon*math.Pi/180
	dlat, dlon := lat2-lat1, lon2-lon1
	h := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
