package source

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/chrisdamba/bhtraffic/internal/models"
)

// MemorySource serves records from a slice. It applies the pushdown hint so
// tests can compare pushed and unpushed scans.
type MemorySource struct {
	records []models.TrafficRecord
}

func NewMemorySource(records []models.TrafficRecord) *MemorySource {
	return &MemorySource{records: append([]models.TrafficRecord(nil), records...)}
}

func (m *MemorySource) Scan(ctx context.Context, hint Pushdown, visit Visitor) error {
	for _, rec := range m.records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !hint.Admits(rec.Month, rec.Class) {
			continue
		}
		if err := visit(rec); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (m *MemorySource) Len() int { return len(m.records) }

// CountingSource wraps a Source and counts Scan calls and delivered records.
type CountingSource struct {
	Source  Source
	scans   atomic.Int64
	records atomic.Int64
}

func (c *CountingSource) Scan(ctx context.Context, hint Pushdown, visit Visitor) error {
	c.scans.Add(1)
	return c.Source.Scan(ctx, hint, func(rec models.TrafficRecord) error {
		c.records.Add(1)
		return visit(rec)
	})
}

func (c *CountingSource) Scans() int64 { return c.scans.Load() }

func (c *CountingSource) Records() int64 { return c.records.Load() }

// FailingSource always fails with Err.
type FailingSource struct {
	Err error
}

func (f FailingSource) Scan(context.Context, Pushdown, Visitor) error {
	return f.Err
}
