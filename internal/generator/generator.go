// Package generator produces a synthetic vehicle count dataset shaped like
// the Belo Horizonte sensor export.
package generator

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/vehicleclass"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// baseVolume is the mean hourly count of a sensor with density 1 at weight 1.
const baseVolume = 60.0

// RecordWriter receives generated rows. FlushRowGroup is called at month
// boundaries so row group statistics line up with months.
type RecordWriter interface {
	Write(rec models.TrafficRecord) error
	FlushRowGroup() error
}

type Summary struct {
	Sensors   int
	Rows      int64
	Vehicles  int64
	Malformed int64
}

type Generator struct {
	cfg      models.GeneratorConfig
	classes  *vehicleclass.Table
	loc      *time.Location
	rnd      *rand.Rand
	sensors  []Sensor
	progress io.Writer
	log      *logrus.Entry
}

// New creates the sensors up front so a seed always yields the same layout.
func New(cfg models.GeneratorConfig, classes *vehicleclass.Table, loc *time.Location) (*Generator, error) {
	if cfg.Sensors <= 0 {
		return nil, fmt.Errorf("generator needs at least one sensor, got %d", cfg.Sensors)
	}
	if cfg.UrbanRadius <= 0 {
		return nil, fmt.Errorf("generator urban radius must be positive, got %v", cfg.UrbanRadius)
	}
	if cfg.MalformedRate < 0 || cfg.MalformedRate >= 1 {
		return nil, fmt.Errorf("generator malformed rate must be in [0, 1), got %v", cfg.MalformedRate)
	}
	if loc == nil {
		loc = time.UTC
	}

	rnd := rand.New(rand.NewSource(cfg.Seed))
	factory := NewSensorFactory(rnd)
	sensors := make([]Sensor, cfg.Sensors)
	for i := range sensors {
		sensors[i] = factory.CreateSensor(cfg)
	}

	return &Generator{
		cfg:      cfg,
		classes:  classes,
		loc:      loc,
		rnd:      rnd,
		sensors:  sensors,
		progress: io.Discard,
		log:      logrus.WithField("component", "generator"),
	}, nil
}

// WithProgress renders a progress bar to w while generating.
func (g *Generator) WithProgress(w io.Writer) *Generator {
	g.progress = w
	return g
}

func (g *Generator) Sensors() []Sensor { return g.sensors }

// Run writes one row per sensor, class and hour for every local day in
// dates. Hours with a zero count are omitted.
func (g *Generator) Run(ctx context.Context, dates models.DateRange, w RecordWriter) (Summary, error) {
	from := time.Date(dates.From.Year, dates.From.Month, dates.From.Day, 0, 0, 0, 0, g.loc)
	to := time.Date(dates.To.Year, dates.To.Month, dates.To.Day, 0, 0, 0, 0, g.loc).AddDate(0, 0, 1)
	if !from.Before(to) {
		return Summary{}, fmt.Errorf("%w: empty generation range %s..%s", models.ErrInvalidFilter, dates.From, dates.To)
	}

	hours := int64(to.Sub(from) / time.Hour)
	bar := progressbar.NewOptions64(hours,
		progressbar.OptionSetWriter(g.progress),
		progressbar.OptionSetDescription("generating vehicle counts"),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Close()

	summary := Summary{Sensors: len(g.sensors)}
	month := from.Month()
	for t := from; t.Before(to); t = t.Add(time.Hour) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if t.Month() != month {
			if err := w.FlushRowGroup(); err != nil {
				return summary, fmt.Errorf("failed to flush row group: %w", err)
			}
			month = t.Month()
		}
		if err := g.writeHour(t, w, &summary); err != nil {
			return summary, err
		}
		_ = bar.Add(1)
	}

	g.log.WithFields(logrus.Fields{
		"sensors":   summary.Sensors,
		"rows":      summary.Rows,
		"vehicles":  summary.Vehicles,
		"malformed": summary.Malformed,
	}).Info("dataset generated")
	return summary, nil
}

func (g *Generator) writeHour(t time.Time, w RecordWriter, summary *Summary) error {
	factor := trafficFactor(t)
	for _, s := range g.sensors {
		for _, class := range vehicleclass.All {
			mean := baseVolume * s.Density * factor * classMix[class]
			count := poisson(mean, g.rnd.Float64, g.rnd.NormFloat64)
			if count == 0 {
				continue
			}
			rec := models.TrafficRecord{
				Time:      t.Add(time.Duration(g.rnd.Intn(60)) * time.Minute).UTC(),
				Longitude: s.Longitude,
				Latitude:  s.Latitude,
				Class:     g.classes.Code(class),
				Count:     count,
			}
			rec.Month = int(rec.Time.Month())
			if g.cfg.MalformedRate > 0 && g.rnd.Float64() < g.cfg.MalformedRate {
				rec.Longitude = "NaN"
				summary.Malformed++
			}
			if err := w.Write(rec); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
			summary.Rows++
			summary.Vehicles += count
		}
	}
	return nil
}
