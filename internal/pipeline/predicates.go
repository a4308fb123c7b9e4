package pipeline

import (
	"time"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/vehicleclass"
)

// Predicate decides whether a record stays in the working set.
type Predicate func(rec *models.TrafficRecord) bool

// ClassIn keeps records whose class code resolves to one of classes. Codes the
// table does not know count as Undefined.
func ClassIn(table *vehicleclass.Table, classes []vehicleclass.Class) Predicate {
	var wanted [4]bool
	for _, c := range classes {
		if c.Valid() {
			wanted[c] = true
		}
	}
	return func(rec *models.TrafficRecord) bool {
		return wanted[table.Resolve(rec.Class)]
	}
}

// DateWithin keeps records whose calendar day in loc falls inside r.
func DateWithin(r models.DateRange, loc *time.Location) Predicate {
	return func(rec *models.TrafficRecord) bool {
		return r.Contains(models.DateOf(rec.Time.In(loc)))
	}
}

// HourWithin keeps records whose hour of day in loc falls inside r.
func HourWithin(r models.HourRange, loc *time.Location) Predicate {
	return func(rec *models.TrafficRecord) bool {
		return r.Contains(rec.Time.In(loc).Hour())
	}
}

// All applies predicates in order and stops at the first rejection.
func All(preds ...Predicate) Predicate {
	return func(rec *models.TrafficRecord) bool {
		for _, p := range preds {
			if !p(rec) {
				return false
			}
		}
		return true
	}
}

// MonthsCovering returns the sorted month numbers touched by r, both end
// months included. Ranges of a year or more cover every month.
func MonthsCovering(r models.DateRange) []int {
	if r.From.After(r.To) {
		return nil
	}
	span := (r.To.Year-r.From.Year)*12 + int(r.To.Month) - int(r.From.Month) + 1
	if span >= 12 {
		return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	}

	var present [13]bool
	m := int(r.From.Month)
	for i := 0; i < span; i++ {
		present[m] = true
		m = m%12 + 1
	}
	out := make([]int, 0, span)
	for month := 1; month <= 12; month++ {
		if present[month] {
			out = append(out, month)
		}
	}
	return out
}
