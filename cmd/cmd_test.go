package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/repositories/sqlite"
	"github.com/chrisdamba/bhtraffic/internal/source"
	"github.com/chrisdamba/bhtraffic/internal/source/parquetsrc"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestMain(m *testing.M) {
	logrus.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func fixture(t *testing.T) (dir, parquetPath string) {
	t.Helper()
	dir = t.TempDir()
	parquetPath = filepath.Join(dir, "vehicles_count.parquet")
	w, err := parquetsrc.CreateLocal(parquetPath)
	require.NoError(t, err)
	at := func(day, hour int) time.Time { return time.Date(2022, 1, day, hour, 10, 0, 0, time.UTC) }
	for _, rec := range []models.TrafficRecord{
		{Time: at(3, 8), Longitude: "-43.93", Latitude: "-19.92", Class: "AUTOMOVEL", Count: 4},
		{Time: at(4, 8), Longitude: "-43.93", Latitude: "-19.92", Class: "AUTOMOVEL", Count: 6},
		{Time: at(4, 9), Longitude: "-43.90", Latitude: "-19.90", Class: "MOTOCICLETA", Count: 3},
		{Time: at(5, 8), Longitude: "-43.90", Latitude: "-19.90", Class: "CAMINHAO_ONIBUS", Count: 1},
		{Time: at(5, 8), Longitude: "-43.90", Latitude: "-19.90", Class: "INDEFINIDO", Count: 2},
	} {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())
	return dir, parquetPath
}

func TestCopyRecordsIntoSQLite(t *testing.T) {
	ctx := context.Background()
	dir, path := fixture(t)

	repo, err := sqlite.Open(ctx, filepath.Join(dir, "traffic.db"), "vehicle_counts")
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.EnsureSchema(ctx))

	n, err := copyRecords(ctx, parquetsrc.NewLocal(path), repo)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	classes, err := source.DistinctClasses(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, []string{"AUTOMOVEL", "CAMINHAO_ONIBUS", "INDEFINIDO", "MOTOCICLETA"}, classes)
}

func TestAggregateCommand(t *testing.T) {
	dir, path := fixture(t)
	config := filepath.Join(dir, "bhtraffic.yaml")
	body := fmt.Sprintf(`dataset:
  min_date: "2022-01-01"
  max_date: "2022-01-31"
  time_zone: UTC
source:
  type: parquet
  path: %s
cache:
  type: none
boundary:
  path: ""
logging:
  level: error
`, path)
	require.NoError(t, os.WriteFile(config, []byte(body), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{
		"aggregate", "--config", config,
		"--from-hour", "8", "--to-hour", "8", "--class", "car",
		"--format", "json", "--check-classes",
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())

	doc := out.String()
	assert.EqualValues(t, 1, gjson.Get(doc, "locations.#").Int())
	assert.EqualValues(t, 10, gjson.Get(doc, "locations.0.count").Int())
	assert.EqualValues(t, 10, gjson.Get(doc, "stats.total").Int())
}
