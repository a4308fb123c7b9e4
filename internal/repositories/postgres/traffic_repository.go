package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/repositories"
	"github.com/chrisdamba/bhtraffic/internal/source"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var columns = []string{"min_time", "longitude", "latitude", "class", "month", "count"}

type TrafficRepository struct {
	pool  *pgxpool.Pool
	table pgx.Identifier
}

func NewTrafficRepository(pool *pgxpool.Pool, table string) *TrafficRepository {
	return &TrafficRepository{pool: pool, table: pgx.Identifier{table}}
}

// Connect opens a pool for dsn and checks it with a ping.
func Connect(ctx context.Context, cfg models.DatabaseConfig) (*TrafficRepository, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, repositories.Unavailable(ctx, "connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, repositories.Unavailable(ctx, "ping", err)
	}
	return NewTrafficRepository(pool, cfg.Table), nil
}

func (r *TrafficRepository) EnsureSchema(ctx context.Context) error {
	name := r.table.Sanitize()
	stmt := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            min_time  TIMESTAMPTZ NOT NULL,
            longitude TEXT NOT NULL,
            latitude  TEXT NOT NULL,
            class     TEXT NOT NULL,
            month     SMALLINT NOT NULL,
            count     BIGINT NOT NULL
        );
        CREATE INDEX IF NOT EXISTS %s ON %s (month, class);`,
		name, pgx.Identifier{r.table[0] + "_month_class_idx"}.Sanitize(), name)
	if _, err := r.pool.Exec(ctx, stmt); err != nil {
		return repositories.Unavailable(ctx, "create schema", err)
	}
	return nil
}

func (r *TrafficRepository) BulkCreate(ctx context.Context, records []models.TrafficRecord) error {
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		month := rec.Month
		if month == 0 {
			month = int(rec.Time.Month())
		}
		rows = append(rows, []any{rec.Time, rec.Longitude, rec.Latitude, rec.Class, int16(month), rec.Count})
	}
	_, err := r.pool.CopyFrom(ctx, r.table, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return repositories.Unavailable(ctx, "copy records", err)
	}
	return nil
}

func (r *TrafficRepository) Scan(ctx context.Context, hint source.Pushdown, visit source.Visitor) error {
	query, args := scanQuery(r.table.Sanitize(), hint)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return repositories.Unavailable(ctx, "query records", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec   models.TrafficRecord
			t     time.Time
			month int16
		)
		if err := rows.Scan(&t, &rec.Longitude, &rec.Latitude, &rec.Class, &month, &rec.Count); err != nil {
			return repositories.Unavailable(ctx, "scan record", err)
		}
		rec.Time = t.UTC()
		rec.Month = int(month)
		if err := visit(rec); err != nil {
			if errors.Is(err, source.ErrStop) {
				return nil
			}
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return repositories.Unavailable(ctx, "read records", err)
	}
	return nil
}

func scanQuery(table string, hint source.Pushdown) (string, []any) {
	var (
		where []string
		args  []any
	)
	if months := repositories.MonthsWithUnknown(hint.Months); len(months) > 0 {
		args = append(args, months)
		where = append(where, fmt.Sprintf("month = ANY($%d)", len(args)))
	}
	if len(hint.Classes) > 0 {
		args = append(args, hint.Classes)
		where = append(where, fmt.Sprintf("class = ANY($%d)", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query, args
}

func (r *TrafficRepository) DistinctClasses(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf("SELECT DISTINCT class FROM %s ORDER BY class", r.table.Sanitize()))
	if err != nil {
		return nil, repositories.Unavailable(ctx, "list classes", err)
	}
	classes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, repositories.Unavailable(ctx, "list classes", err)
	}
	return classes, nil
}

func (r *TrafficRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table.Sanitize())).Scan(&count)
	if err != nil {
		return 0, repositories.Unavailable(ctx, "count records", err)
	}
	return count, nil
}

func (r *TrafficRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", r.table.Sanitize())); err != nil {
		return repositories.Unavailable(ctx, "delete records", err)
	}
	return nil
}

func (r *TrafficRepository) Close() error {
	r.pool.Close()
	return nil
}

var _ repositories.TrafficRepository = (*TrafficRepository)(nil)
