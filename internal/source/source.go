package source

import (
	"context"
	"errors"
	"sort"

	"github.com/chrisdamba/bhtraffic/internal/models"
)

// ErrSourceUnavailable marks failures of the backing store. Callers do not
// retry; retry policy belongs to the store.
var ErrSourceUnavailable = errors.New("traffic source unavailable")

// ErrStop ends a scan early without an error.
var ErrStop = errors.New("stop scan")

// Pushdown is a coarse restriction a source may apply before materializing
// records. It is a hint: a source may return records outside it and callers
// must filter again. Empty fields mean no restriction.
type Pushdown struct {
	Months  []int
	Classes []string
}

func (p Pushdown) IsZero() bool { return len(p.Months) == 0 && len(p.Classes) == 0 }

// Admits reports whether a record with month and class survives the hint.
func (p Pushdown) Admits(month int, class string) bool {
	return p.AdmitsMonth(month) && p.AdmitsClass(class)
}

// AdmitsMonth treats month 0 as unknown and admits it.
func (p Pushdown) AdmitsMonth(month int) bool {
	if len(p.Months) == 0 || month == 0 {
		return true
	}
	for _, m := range p.Months {
		if m == month {
			return true
		}
	}
	return false
}

func (p Pushdown) AdmitsClass(class string) bool {
	if len(p.Classes) == 0 {
		return true
	}
	for _, c := range p.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// Visitor receives each record. Returning ErrStop ends the scan cleanly; any
// other error aborts it and is returned by Scan.
type Visitor func(rec models.TrafficRecord) error

// Source is a readable collection of traffic records.
type Source interface {
	Scan(ctx context.Context, hint Pushdown, visit Visitor) error
}

// ClassLister is implemented by sources that can list their distinct class
// codes cheaply.
type ClassLister interface {
	DistinctClasses(ctx context.Context) ([]string, error)
}

// DistinctClasses lists the class codes of src, scanning it in full when it
// does not implement ClassLister.
func DistinctClasses(ctx context.Context, src Source) ([]string, error) {
	if l, ok := src.(ClassLister); ok {
		return l.DistinctClasses(ctx)
	}
	seen := make(map[string]struct{})
	err := src.Scan(ctx, Pushdown{}, func(rec models.TrafficRecord) error {
		seen[rec.Class] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// Unpushed hides any pushdown support of a source by always scanning it with
// an empty hint.
type Unpushed struct {
	Source Source
}

func (u Unpushed) Scan(ctx context.Context, _ Pushdown, visit Visitor) error {
	return u.Source.Scan(ctx, Pushdown{}, visit)
}
