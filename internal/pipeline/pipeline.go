package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/source"
	"github.com/chrisdamba/bhtraffic/internal/vehicleclass"
	"github.com/lucsky/cuid"
	"github.com/sirupsen/logrus"
)

// ErrMalformedRecord describes a record that was skipped during aggregation.
// It never reaches callers; rejected records are only counted.
var ErrMalformedRecord = errors.New("malformed traffic record")

// Querier answers aggregation queries.
type Querier interface {
	Aggregate(ctx context.Context, src source.Source, filter models.Filter) (*models.AggregatedResult, error)
}

type Aggregator struct {
	classes  *vehicleclass.Table
	bounds   models.DateRange
	loc      *time.Location
	pushdown bool
	log      *logrus.Entry
}

type Option func(*Aggregator)

// WithBounds sets the dataset date bounds filters are validated against.
func WithBounds(bounds models.DateRange) Option {
	return func(a *Aggregator) { a.bounds = bounds }
}

// WithLocation sets the time zone dates and hours are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithPushdown toggles passing month and class hints to the source.
func WithPushdown(enabled bool) Option {
	return func(a *Aggregator) { a.pushdown = enabled }
}

func WithLogger(log *logrus.Entry) Option {
	return func(a *Aggregator) {
		if log != nil {
			a.log = log
		}
	}
}

func NewAggregator(classes *vehicleclass.Table, opts ...Option) *Aggregator {
	a := &Aggregator{
		classes:  classes,
		loc:      time.UTC,
		pushdown: true,
		log:      logrus.WithField("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Classes() *vehicleclass.Table { return a.classes }

func (a *Aggregator) Bounds() models.DateRange { return a.bounds }

// Fingerprint names the settings besides the filter that change a result:
// the class codes and the time zone.
func (a *Aggregator) Fingerprint() string {
	var b strings.Builder
	for _, e := range a.classes.Entries() {
		b.WriteString(e.Code)
		b.WriteByte(',')
	}
	b.WriteString(a.loc.String())
	return b.String()
}

// Aggregate filters src by filter and sums counts per location. The filter is
// validated before the source is touched. An empty result is not an error.
func (a *Aggregator) Aggregate(ctx context.Context, src source.Source, filter models.Filter) (*models.AggregatedResult, error) {
	if err := filter.Validate(a.bounds); err != nil {
		return nil, err
	}

	codes, err := a.classes.Translate(filter.Classes())
	if err != nil {
		return nil, err
	}
	hint := a.hint(filter, codes)

	keep := All(
		ClassIn(a.classes, filter.Classes()),
		DateWithin(filter.Dates(), a.loc),
		HourWithin(filter.Hours(), a.loc),
	)

	log := a.log.WithFields(logrus.Fields{
		"query_id": cuid.New(),
		"filter":   filter.Key(),
	})
	start := time.Now()

	var stats models.AggregateStats
	groups := make(map[models.Location]int64)

	err = src.Scan(ctx, hint, func(rec models.TrafficRecord) error {
		stats.Scanned++
		if !keep(&rec) {
			return nil
		}
		loc, err := coerce(&rec)
		if err != nil {
			stats.Rejected++
			log.WithError(err).Debug("skipping malformed record")
			return nil
		}
		stats.Matched++
		stats.Total += rec.Count
		groups[loc] += rec.Count
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, source.ErrSourceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", source.ErrSourceUnavailable, err)
	}

	result := &models.AggregatedResult{
		Locations: make([]models.LocationCount, 0, len(groups)),
		Stats:     stats,
	}
	for loc, count := range groups {
		result.Locations = append(result.Locations, models.LocationCount{Location: loc, Count: count})
	}
	sortLocations(result.Locations)

	entry := log.WithFields(logrus.Fields{
		"locations": len(result.Locations),
		"scanned":   stats.Scanned,
		"matched":   stats.Matched,
		"rejected":  stats.Rejected,
		"elapsed":   time.Since(start).String(),
	})
	if stats.Rejected > 0 {
		entry.Warn("aggregated traffic counts with rejected records")
	} else {
		entry.Info("aggregated traffic counts")
	}
	return result, nil
}

// hint builds the pushdown for filter. Unknown codes count as Undefined, so a
// query that includes Undefined cannot be narrowed by class code.
func (a *Aggregator) hint(filter models.Filter, codes []string) source.Pushdown {
	if !a.pushdown {
		return source.Pushdown{}
	}
	hint := source.Pushdown{Months: a.monthsCovering(filter.Dates())}
	if !filter.HasClass(vehicleclass.Undefined) {
		hint.Classes = codes
	}
	return hint
}

// monthsCovering widens the range by a day on each side when dates are
// evaluated away from UTC, so a source partitioned by UTC month never drops a
// record that falls inside the range locally.
func (a *Aggregator) monthsCovering(r models.DateRange) []int {
	if a.loc == time.UTC {
		return MonthsCovering(r)
	}
	return MonthsCovering(models.DateRange{
		From: models.DateOf(r.From.Time().AddDate(0, 0, -1)),
		To:   models.DateOf(r.To.Time().AddDate(0, 0, 1)),
	})
}

func coerce(rec *models.TrafficRecord) (models.Location, error) {
	if rec.Count < 0 {
		return models.Location{}, fmt.Errorf("%w: negative count %d", ErrMalformedRecord, rec.Count)
	}
	loc, err := models.ParseLocation(rec.Longitude, rec.Latitude)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return loc, nil
}

func sortLocations(locs []models.LocationCount) {
	sort.Slice(locs, func(i, j int) bool {
		if locs[i].Count != locs[j].Count {
			return locs[i].Count > locs[j].Count
		}
		if locs[i].Lon != locs[j].Lon {
			return locs[i].Lon < locs[j].Lon
		}
		return locs[i].Lat < locs[j].Lat
	})
}
