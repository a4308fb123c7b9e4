package output

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
)

type reportDocument struct {
	QueryID     string                 `json:"query_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Filter      models.Filter          `json:"filter"`
	CRS         string                 `json:"crs"`
	Stats       models.AggregateStats  `json:"stats"`
	Top         []models.LocationCount `json:"top"`
	Locations   []models.LocationCount `json:"locations"`
}

// JSONOutput writes one JSON document per report, newline separated.
type JSONOutput struct {
	sink io.WriteCloser
	enc  *json.Encoder
	opts Options
}

func NewJSONOutput(sink io.WriteCloser, opts Options) *JSONOutput {
	return &JSONOutput{sink: sink, enc: json.NewEncoder(sink), opts: opts}
}

func (j *JSONOutput) WriteReport(ctx context.Context, r Report) error {
	return j.enc.Encode(Document(r, j.opts))
}

func (j *JSONOutput) Close() error { return j.sink.Close() }

// Document is the JSON shape of a report, shared with the HTTP API.
func Document(r Report, opts Options) any {
	top := opts.TopN
	if top <= 0 {
		top = len(r.Result.Locations)
	}
	locations := opts.project(r.Result.Locations)
	if locations == nil {
		locations = []models.LocationCount{}
	}
	return reportDocument{
		QueryID:     r.QueryID,
		GeneratedAt: r.GeneratedAt,
		Filter:      r.Filter,
		CRS:         opts.crs(),
		Stats:       r.Result.Stats,
		Top:         opts.project(r.Result.TopN(top)),
		Locations:   locations,
	}
}

type feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type featureCollection struct {
	Type     string         `json:"type"`
	CRS      map[string]any `json:"crs,omitempty"`
	Features []feature      `json:"features"`
	Meta     map[string]any `json:"bhtraffic"`
}

// GeoJSONOutput writes a FeatureCollection of count points, ranked, with the
// configured city boundary as the first feature when one is loaded.
type GeoJSONOutput struct {
	sink io.WriteCloser
	opts Options
}

func NewGeoJSONOutput(sink io.WriteCloser, opts Options) *GeoJSONOutput {
	return &GeoJSONOutput{sink: sink, opts: opts}
}

func (g *GeoJSONOutput) WriteReport(ctx context.Context, r Report) error {
	data, err := FeatureCollection(r, g.opts)
	if err != nil {
		return err
	}
	if _, err := g.sink.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func (g *GeoJSONOutput) Close() error { return g.sink.Close() }

// FeatureCollection renders a report as GeoJSON.
func FeatureCollection(r Report, opts Options) ([]byte, error) {
	fc := featureCollection{
		Type:     "FeatureCollection",
		Features: make([]feature, 0, len(r.Result.Locations)+1),
		Meta: map[string]any{
			"query_id": r.QueryID,
			"filter":   r.Filter,
			"stats":    r.Result.Stats,
		},
	}
	if opts.crs() != models.CRSWGS84 {
		fc.CRS = map[string]any{"type": "name", "properties": map[string]string{"name": opts.crs()}}
	}

	// the boundary is only meaningful in the dataset CRS
	if opts.Boundary != nil && opts.crs() == models.CRSWGS84 {
		var f feature
		if err := json.Unmarshal([]byte(opts.Boundary.JSON()), &f); err != nil {
			return nil, err
		}
		if f.Properties == nil {
			f.Properties = map[string]any{}
		}
		f.Properties["role"] = "boundary"
		fc.Features = append(fc.Features, f)
	}

	topN := opts.TopN
	for i, l := range opts.project(r.Result.Locations) {
		point := geojson.NewPoint(geometry.Point{X: l.Lon, Y: l.Lat})
		props := map[string]any{
			"count": l.Count,
			"rank":  i + 1,
			"top":   topN > 0 && i < topN,
		}
		if opts.Boundary != nil {
			props["inside"] = opts.Boundary.Contains(r.Result.Locations[i].Location)
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Geometry:   json.RawMessage(point.JSON()),
			Properties: props,
		})
	}
	return json.Marshal(fc)
}
