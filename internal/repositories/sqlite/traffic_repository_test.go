package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/pipeline"
	"github.com/chrisdamba/bhtraffic/internal/source"
	"github.com/chrisdamba/bhtraffic/internal/vehicleclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *TrafficRepository {
	t.Helper()
	ctx := context.Background()
	repo, err := Open(ctx, filepath.Join(t.TempDir(), "traffic.db"), "vehicle_counts")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func seed(t *testing.T, repo *TrafficRepository) {
	t.Helper()
	at := func(month time.Month, day, hour int) time.Time {
		return time.Date(2022, month, day, hour, 30, 0, 0, time.UTC)
	}
	require.NoError(t, repo.BulkCreate(context.Background(), []models.TrafficRecord{
		{Time: at(1, 10, 8), Longitude: "-43.93", Latitude: "-19.92", Class: "AUTOMOVEL", Count: 4},
		{Time: at(1, 10, 9), Longitude: "-43.93", Latitude: "-19.92", Class: "AUTOMOVEL", Count: 6},
		{Time: at(1, 11, 8), Longitude: "-43.90", Latitude: "-19.90", Class: "MOTO", Count: 2},
		{Time: at(2, 2, 8), Longitude: "-43.93", Latitude: "-19.92", Class: "AUTOMOVEL", Count: 9},
	}))
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	seed(t, repo)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	var got []models.TrafficRecord
	require.NoError(t, repo.Scan(ctx, source.Pushdown{Months: []int{1}, Classes: []string{"AUTOMOVEL"}}, func(rec models.TrafficRecord) error {
		got = append(got, rec)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Month)
	assert.Equal(t, time.Date(2022, 1, 10, 8, 30, 0, 0, time.UTC), got[0].Time)

	classes, err := repo.DistinctClasses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AUTOMOVEL", "MOTO"}, classes)

	require.NoError(t, repo.DeleteAll(ctx))
	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepositoryAsPipelineSource(t *testing.T) {
	repo := newRepo(t)
	seed(t, repo)

	agg := pipeline.NewAggregator(vehicleclass.DefaultTable())
	filter := models.NewFilter(
		models.DateRange{From: models.NewDate(2022, 1, 1), To: models.NewDate(2022, 1, 31)},
		models.HourRange{From: 8, To: 8},
		[]vehicleclass.Class{vehicleclass.Car},
	)
	result, err := agg.Aggregate(context.Background(), repo, filter)
	require.NoError(t, err)
	require.Len(t, result.Locations, 1)
	assert.Equal(t, models.Location{Lon: -43.93, Lat: -19.92}, result.Locations[0].Location)
	assert.EqualValues(t, 4, result.Locations[0].Count)
}

func TestScanQuery(t *testing.T) {
	query, args := scanQuery(`"t"`, source.Pushdown{Months: []int{3}, Classes: []string{"A", "B"}})
	assert.Equal(t, `SELECT min_time, longitude, latitude, class, month, count FROM "t" WHERE month IN (?, ?) AND class IN (?, ?)`, query)
	assert.Equal(t, []any{3, 0, "A", "B"}, args)
}

func TestScanClosedDatabase(t *testing.T) {
	repo := newRepo(t)
	require.NoError(t, repo.Close())
	err := repo.Scan(context.Background(), source.Pushdown{}, func(models.TrafficRecord) error { return nil })
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
}
