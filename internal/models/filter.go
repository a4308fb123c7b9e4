package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/vehicleclass"
)

var ErrInvalidFilter = errors.New("invalid filter")

const DateLayout = "2006-01-02"

// Date is a calendar day without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return DateOf(t)
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q: %v", ErrInvalidFilter, s, err)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) Before(o Date) bool { return d.ordinal() < o.ordinal() }

func (d Date) After(o Date) bool { return d.ordinal() > o.ordinal() }

func (d Date) ordinal() int { return d.Year*10000 + int(d.Month)*100 + d.Day }

func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string { return d.Time().Format(DateLayout) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is inclusive on both ends.
type DateRange struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

func (r DateRange) IsZero() bool { return r.From.IsZero() && r.To.IsZero() }

// HourRange is inclusive on both ends, hours in [0,23].
type HourRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (r HourRange) Contains(hour int) bool {
	return hour >= r.From && hour <= r.To
}

// FullDay covers every hour.
var FullDay = HourRange{From: 0, To: 23}

// ParseHour accepts "H", "HH" or "HH:MM". Minutes are validated and then
// dropped: filtering works on whole hours only.
func ParseHour(s string) (int, error) {
	s = strings.TrimSpace(s)
	hourPart, minutePart, hasMinutes := strings.Cut(s, ":")
	h, err := strconv.Atoi(hourPart)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: hour %q", ErrInvalidFilter, s)
	}
	if hasMinutes {
		m, err := strconv.Atoi(minutePart)
		if err != nil || m < 0 || m > 59 {
			return 0, fmt.Errorf("%w: hour %q", ErrInvalidFilter, s)
		}
	}
	return h, nil
}

// Filter is the immutable description of one query. Build it with NewFilter
// and pass it by value.
type Filter struct {
	dates   DateRange
	hours   HourRange
	classes []vehicleclass.Class
}

// NewFilter copies and normalizes classes (sorted, no duplicates). It does not
// validate; call Validate before reading any data.
func NewFilter(dates DateRange, hours HourRange, classes []vehicleclass.Class) Filter {
	seen := make(map[vehicleclass.Class]struct{}, len(classes))
	cs := make([]vehicleclass.Class, 0, len(classes))
	for _, c := range classes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		cs = append(cs, c)
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i] < cs[j] })
	return Filter{dates: dates, hours: hours, classes: cs}
}

// DefaultFilter selects everything inside bounds.
func DefaultFilter(bounds DateRange) Filter {
	return NewFilter(bounds, FullDay, vehicleclass.All)
}

func (f Filter) Dates() DateRange { return f.dates }

func (f Filter) Hours() HourRange { return f.hours }

func (f Filter) Classes() []vehicleclass.Class {
	return append([]vehicleclass.Class(nil), f.classes...)
}

func (f Filter) HasClass(c vehicleclass.Class) bool {
	for _, fc := range f.classes {
		if fc == c {
			return true
		}
	}
	return false
}

// Validate checks the filter invariants. A zero bounds range disables the
// dataset bounds check.
func (f Filter) Validate(bounds DateRange) error {
	var problems []string

	if f.dates.From.IsZero() || f.dates.To.IsZero() {
		problems = append(problems, "date range must have both ends")
	} else if f.dates.From.After(f.dates.To) {
		problems = append(problems, fmt.Sprintf("date range %s > %s", f.dates.From, f.dates.To))
	}
	if !bounds.IsZero() && !f.dates.From.IsZero() && !f.dates.To.IsZero() {
		if f.dates.From.Before(bounds.From) || f.dates.To.After(bounds.To) {
			problems = append(problems, fmt.Sprintf("date range %s..%s outside dataset bounds %s..%s",
				f.dates.From, f.dates.To, bounds.From, bounds.To))
		}
	}
	if f.hours.From < 0 || f.hours.From > 23 || f.hours.To < 0 || f.hours.To > 23 {
		problems = append(problems, fmt.Sprintf("hours must be within 0..23, got %d..%d", f.hours.From, f.hours.To))
	} else if f.hours.From > f.hours.To {
		problems = append(problems, fmt.Sprintf("hour range %d > %d", f.hours.From, f.hours.To))
	}
	if len(f.classes) == 0 {
		problems = append(problems, "at least one vehicle class is required")
	}
	for _, c := range f.classes {
		if !c.Valid() {
			return fmt.Errorf("%w: %d", vehicleclass.ErrUnknownClassLabel, int(c))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidFilter, strings.Join(problems, "; "))
	}
	return nil
}

// Key is a canonical text form of the filter, stable across equal filters.
func (f Filter) Key() string {
	labels := make([]string, len(f.classes))
	for i, c := range f.classes {
		labels[i] = c.String()
	}
	return fmt.Sprintf("dates=%s..%s;hours=%d..%d;classes=%s",
		f.dates.From, f.dates.To, f.hours.From, f.hours.To, strings.Join(labels, ","))
}

func (f Filter) String() string { return f.Key() }

// MarshalJSON exposes the filter in responses.
func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Dates   DateRange            `json:"dates"`
		Hours   HourRange            `json:"hours"`
		Classes []vehicleclass.Class `json:"classes"`
	}{f.dates, f.hours, f.classes})
}
