package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/source"
)

// TrafficRepository stores vehicle counts in a relational database. Every
// implementation is also a source.Source, so the pipeline can query it with
// month and class pushdown applied in SQL.
type TrafficRepository interface {
	source.Source
	source.ClassLister
	EnsureSchema(ctx context.Context) error
	BulkCreate(ctx context.Context, records []models.TrafficRecord) error
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
	Close() error
}

// Unavailable marks err as a store failure. Cancellation is returned as is.
func Unavailable(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %w", source.ErrSourceUnavailable, op, err)
}

// MonthsWithUnknown adds the unknown month 0 to a non-empty month hint.
func MonthsWithUnknown(months []int) []int {
	if len(months) == 0 {
		return nil
	}
	out := make([]int, 0, len(months)+1)
	out = append(out, months...)
	return append(out, 0)
}
