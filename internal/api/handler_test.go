package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/output"
	"github.com/chrisdamba/bhtraffic/internal/pipeline"
	"github.com/chrisdamba/bhtraffic/internal/source"
	"github.com/chrisdamba/bhtraffic/internal/vehicleclass"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestMain(m *testing.M) {
	logrus.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var bounds = models.DateRange{From: models.NewDate(2022, 1, 1), To: models.NewDate(2022, 2, 28)}

func records() []models.TrafficRecord {
	at := func(month time.Month, day, hour int) time.Time {
		return time.Date(2022, month, day, hour, 15, 0, 0, time.UTC)
	}
	return []models.TrafficRecord{
		{Time: at(1, 5, 8), Longitude: "-43.93", Latitude: "-19.92", Class: "AUTOMOVEL", Count: 10},
		{Time: at(1, 6, 8), Longitude: "-43.93", Latitude: "-19.92", Class: "AUTOMOVEL", Count: 5},
		{Time: at(1, 6, 18), Longitude: "-43.90", Latitude: "-19.90", Class: "MOTOCICLETA", Count: 7},
		{Time: at(2, 1, 8), Longitude: "-43.80", Latitude: "-19.80", Class: "AUTOMOVEL", Count: 1},
	}
}

func newRouter(t *testing.T, src source.Source) *gin.Engine {
	t.Helper()
	table := vehicleclass.DefaultTable()
	agg := pipeline.NewAggregator(table, pipeline.WithBounds(bounds))
	h := NewHandler(agg, src, table, bounds, output.Options{TopN: 1})
	return NewRouter(h, gin.TestMode)
}

func get(t *testing.T, router http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := get(t, newRouter(t, source.NewMemorySource(nil)), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestGetClasses(t *testing.T) {
	w := get(t, newRouter(t, source.NewMemorySource(nil)), "/api/v1/classes")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.EqualValues(t, 4, gjson.Get(body, "classes.#").Int())
	assert.Equal(t, "CAR", gjson.Get(body, "classes.1.label").String())
	assert.Equal(t, "AUTOMOVEL", gjson.Get(body, "classes.1.code").String())
	assert.Equal(t, "2022-02-28", gjson.Get(body, "bounds.to").String())
}

func TestGetTraffic(t *testing.T) {
	router := newRouter(t, source.NewMemorySource(records()))

	w := get(t, router, "/api/v1/traffic?from=2022-01-01&to=2022-01-31&from_hour=08:00&to_hour=08:59&class=car")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.EqualValues(t, 1, gjson.Get(body, "locations.#").Int())
	assert.EqualValues(t, 15, gjson.Get(body, "locations.0.count").Int())
	assert.EqualValues(t, 15, gjson.Get(body, "stats.total").Int())
	assert.NotEmpty(t, gjson.Get(body, "query_id").String())

	w = get(t, router, "/api/v1/traffic?top=2")
	require.Equal(t, http.StatusOK, w.Code)
	body = w.Body.String()
	assert.EqualValues(t, 3, gjson.Get(body, "locations.#").Int())
	assert.EqualValues(t, 2, gjson.Get(body, "top.#").Int())
	assert.EqualValues(t, 23, gjson.Get(body, "stats.total").Int())
}

func TestGetTrafficGeoJSON(t *testing.T) {
	router := newRouter(t, source.NewMemorySource(records()))
	w := get(t, router, "/api/v1/traffic?format=geojson&class=CAR&class=MOTORCYCLE&to=2022-01-31")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "FeatureCollection", gjson.Get(w.Body.String(), "type").String())
	assert.EqualValues(t, 2, gjson.Get(w.Body.String(), "features.#").Int())
}

func TestGetTrafficErrors(t *testing.T) {
	router := newRouter(t, source.NewMemorySource(records()))

	tests := []struct {
		name string
		url  string
		code int
	}{
		{"unknown class", "/api/v1/traffic?class=TRAIN", http.StatusBadRequest},
		{"bad date", "/api/v1/traffic?from=yesterday", http.StatusBadRequest},
		{"reversed hours", "/api/v1/traffic?from_hour=10&to_hour=9", http.StatusBadRequest},
		{"outside bounds", "/api/v1/traffic?to=2022-03-31", http.StatusBadRequest},
		{"bad top", "/api/v1/traffic?top=-1", http.StatusBadRequest},
		{"bad crs", "/api/v1/traffic?crs=EPSG:31983", http.StatusBadRequest},
		{"bad format", "/api/v1/traffic?format=xml", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, router, tt.url)
			assert.Equal(t, tt.code, w.Code)
			assert.NotEmpty(t, gjson.Get(w.Body.String(), "error").String())
		})
	}
}

func TestGetTrafficSourceUnavailable(t *testing.T) {
	router := newRouter(t, source.FailingSource{Err: errors.New("disk gone")})
	w := get(t, router, "/api/v1/traffic")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, models.ServerConfig{Addr: "127.0.0.1:0"}, http.NotFoundHandler())
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
