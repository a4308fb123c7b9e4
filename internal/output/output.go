package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/boundary"
	"github.com/chrisdamba/bhtraffic/internal/cloudwriter"
	"github.com/chrisdamba/bhtraffic/internal/geo"
	"github.com/chrisdamba/bhtraffic/internal/models"
)

// Report is one answered query handed to a ResultWriter.
type Report struct {
	QueryID     string
	Filter      models.Filter
	Result      *models.AggregatedResult
	GeneratedAt time.Time
}

// ResultWriter emits reports to a destination.
type ResultWriter interface {
	WriteReport(ctx context.Context, r Report) error
	Close() error
}

// Options are the knobs every writer shares.
type Options struct {
	TopN     int
	CRS      string
	Boundary *boundary.Boundary
}

func (o Options) crs() string {
	if o.CRS == "" {
		return models.CRSWGS84
	}
	return o.CRS
}

// project returns a copy of locs in the configured CRS.
func (o Options) project(locs []models.LocationCount) []models.LocationCount {
	out := make([]models.LocationCount, len(locs))
	for i, l := range locs {
		out[i] = models.LocationCount{Location: geo.Project(l.Location, o.crs()), Count: l.Count}
	}
	return out
}

// Deps carries the collaborators New needs for remote destinations. Nil
// fields are created from the configuration on demand.
type Deps struct {
	Stdout   io.Writer
	Cloud    cloudwriter.Factory
	Producer SyncProducer
	Boundary *boundary.Boundary
}

// New builds the writer for cfg.Output.
func New(ctx context.Context, cfg *models.Config, deps Deps) (ResultWriter, error) {
	opts := Options{TopN: cfg.Output.TopN, CRS: cfg.Output.CRS, Boundary: deps.Boundary}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}

	if cfg.Output.Format == models.OutputKafka {
		producer := deps.Producer
		if producer == nil {
			var err error
			if producer, err = NewSaramaProducer(cfg.Kafka); err != nil {
				return nil, err
			}
		}
		return NewKafkaOutput(producer, cfg.Kafka.Topic, opts), nil
	}

	if cfg.Output.Format == models.OutputConsole || cfg.Output.Format == "" {
		return NewConsoleOutput(deps.Stdout, opts), nil
	}

	sink, err := openSink(ctx, cfg.Output, deps)
	if err != nil {
		return nil, err
	}

	switch cfg.Output.Format {
	case models.OutputCSV:
		return NewCSVOutput(sink, opts), nil
	case models.OutputJSON:
		return NewJSONOutput(sink, opts), nil
	case models.OutputGeoJSON:
		return NewGeoJSONOutput(sink, opts), nil
	case models.OutputParquet:
		return NewParquetOutput(sink, opts)
	default:
		sink.Close()
		return nil, fmt.Errorf("unsupported output format %q", cfg.Output.Format)
	}
}

// openSink returns where file formats write: stdout, a local file or an S3
// object uploaded on Close. A path of the form s3://bucket/key selects S3
// without setting output.destination.
func openSink(ctx context.Context, cfg models.OutputConfig, deps Deps) (io.WriteCloser, error) {
	if strings.HasPrefix(cfg.Path, "s3://") || cfg.Destination == models.DestinationS3 {
		obj := cloudwriter.Object{Bucket: cfg.S3.Bucket, Key: cfg.S3.Key}
		if strings.HasPrefix(cfg.Path, "s3://") {
			parsed, err := cloudwriter.ParseObject(cfg.Path)
			if err != nil {
				return nil, err
			}
			obj = parsed
		}
		if obj.Key == "" {
			obj.Key = "bhtraffic/result." + cfg.Format
		}
		factory := deps.Cloud
		if factory == nil {
			s3f, err := cloudwriter.NewS3WriterFactory(ctx, cfg.S3.Region)
			if err != nil {
				return nil, err
			}
			factory = s3f.WithContentType(contentType(cfg.Format))
		}
		return factory.Create(obj)
	}

	if cfg.Path == "" || cfg.Path == "-" {
		return nopCloser{deps.Stdout}, nil
	}
	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

func contentType(format string) string {
	switch format {
	case models.OutputCSV:
		return "text/csv"
	case models.OutputJSON:
		return "application/json"
	case models.OutputGeoJSON:
		return "application/geo+json"
	default:
		return "application/octet-stream"
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
