package generator

import (
	"context"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/pipeline"
	"github.com/chrisdamba/bhtraffic/internal/source"
	"github.com/chrisdamba/bhtraffic/internal/source/parquetsrc"
	"github.com/chrisdamba/bhtraffic/internal/vehicleclass"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logrus.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type recorder struct {
	records []models.TrafficRecord
	flushes []int
}

func (r *recorder) Write(rec models.TrafficRecord) error {
	r.records = append(r.records, rec)
	return nil
}

func (r *recorder) FlushRowGroup() error {
	r.flushes = append(r.flushes, len(r.records))
	return nil
}

func testConfig() models.GeneratorConfig {
	return models.GeneratorConfig{
		Seed:        7,
		Sensors:     5,
		CityLat:     -19.9167,
		CityLon:     -43.9345,
		UrbanRadius: 9,
	}
}

func dates(from, to models.Date) models.DateRange {
	return models.DateRange{From: from, To: to}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	run := func() []models.TrafficRecord {
		g, err := New(testConfig(), vehicleclass.DefaultTable(), time.UTC)
		require.NoError(t, err)
		rec := &recorder{}
		_, err = g.Run(context.Background(), dates(models.NewDate(2022, 1, 3), models.NewDate(2022, 1, 3)), rec)
		require.NoError(t, err)
		return rec.records
	}
	first, second := run(), run()
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestGeneratorRecords(t *testing.T) {
	cfg := testConfig()
	table := vehicleclass.DefaultTable()
	g, err := New(cfg, table, time.UTC)
	require.NoError(t, err)

	rec := &recorder{}
	summary, err := g.Run(context.Background(), dates(models.NewDate(2022, 1, 31), models.NewDate(2022, 2, 1)), rec)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Sensors)
	assert.EqualValues(t, len(rec.records), summary.Rows)
	assert.Zero(t, summary.Malformed)
	require.Len(t, rec.flushes, 1, "one flush at the month boundary")

	var vehicles int64
	for i, r := range rec.records {
		vehicles += r.Count
		assert.Positive(t, r.Count)
		assert.True(t, table.Known(r.Class), r.Class)
		assert.Equal(t, int(r.Time.Month()), r.Month)
		_, err := models.ParseLocation(r.Longitude, r.Latitude)
		assert.NoError(t, err)
		if i < rec.flushes[0] {
			assert.Equal(t, time.January, r.Time.Month())
		} else {
			assert.Equal(t, time.February, r.Time.Month())
		}
	}
	assert.Equal(t, summary.Vehicles, vehicles)
}

func TestGeneratorSensorsStayInRadius(t *testing.T) {
	cfg := testConfig()
	cfg.Sensors = 200
	g, err := New(cfg, vehicleclass.DefaultTable(), nil)
	require.NoError(t, err)

	center := models.Location{Lat: cfg.CityLat, Lon: cfg.CityLon}
	for _, s := range g.Sensors() {
		// corners of the square are radius*sqrt(2) away
		assert.LessOrEqual(t, distanceKm(s.Location, center), cfg.UrbanRadius*1.42)
		assert.NotEmpty(t, s.ID)
		assert.Contains(t, []string{"urban_core", "urban_residential", "suburban"}, s.Zone)
	}
}

func TestGeneratorMalformedRows(t *testing.T) {
	cfg := testConfig()
	cfg.MalformedRate = 0.5
	g, err := New(cfg, vehicleclass.DefaultTable(), time.UTC)
	require.NoError(t, err)

	rec := &recorder{}
	summary, err := g.Run(context.Background(), dates(models.NewDate(2022, 1, 3), models.NewDate(2022, 1, 3)), rec)
	require.NoError(t, err)
	assert.Positive(t, summary.Malformed)

	result, err := pipeline.NewAggregator(vehicleclass.DefaultTable()).Aggregate(context.Background(),
		source.NewMemorySource(rec.records), models.DefaultFilter(dates(models.NewDate(2022, 1, 1), models.NewDate(2022, 1, 31))))
	require.NoError(t, err)
	assert.Equal(t, summary.Malformed, result.Stats.Rejected)
}

func TestGeneratorValidation(t *testing.T) {
	table := vehicleclass.DefaultTable()
	for _, mutate := range []func(*models.GeneratorConfig){
		func(c *models.GeneratorConfig) { c.Sensors = 0 },
		func(c *models.GeneratorConfig) { c.UrbanRadius = 0 },
		func(c *models.GeneratorConfig) { c.MalformedRate = 1 },
	} {
		cfg := testConfig()
		mutate(&cfg)
		_, err := New(cfg, table, time.UTC)
		assert.Error(t, err)
	}

	g, err := New(testConfig(), table, time.UTC)
	require.NoError(t, err)
	_, err = g.Run(context.Background(), dates(models.NewDate(2022, 1, 5), models.NewDate(2022, 1, 4)), &recorder{})
	assert.ErrorIs(t, err, models.ErrInvalidFilter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Run(ctx, dates(models.NewDate(2022, 1, 1), models.NewDate(2022, 1, 2)), &recorder{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeneratorWritesParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vehicles_count.parquet")
	w, err := parquetsrc.CreateLocal(path)
	require.NoError(t, err)

	g, err := New(testConfig(), vehicleclass.DefaultTable(), time.UTC)
	require.NoError(t, err)
	summary, err := g.Run(context.Background(), dates(models.NewDate(2022, 1, 31), models.NewDate(2022, 2, 1)), w)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	records, err := parquetsrc.ReadAll(context.Background(), parquetsrc.NewLocal(path))
	require.NoError(t, err)
	assert.EqualValues(t, summary.Rows, len(records))
}

func TestTrafficFactorPeaks(t *testing.T) {
	monday := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	assert.Greater(t, trafficFactor(monday.Add(8*time.Hour)), trafficFactor(monday.Add(3*time.Hour)))
	assert.Greater(t, trafficFactor(monday.Add(18*time.Hour)), trafficFactor(monday.Add(18*time.Hour).AddDate(0, 0, 6)))
}

func TestPoissonMean(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for _, lambda := range []float64{0.5, 4, 80} {
		var sum int64
		const n = 20000
		for i := 0; i < n; i++ {
			sum += poisson(lambda, rnd.Float64, rnd.NormFloat64)
		}
		assert.InDelta(t, lambda, float64(sum)/n, lambda*0.05+0.05)
	}
	assert.Zero(t, poisson(0, rnd.Float64, rnd.NormFloat64))
}
