package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/repositories"
	"github.com/chrisdamba/bhtraffic/internal/source"

	_ "modernc.org/sqlite"
)

// TrafficRepository keeps vehicle counts in a SQLite file. Timestamps are
// stored as unix milliseconds.
type TrafficRepository struct {
	db    *sql.DB
	table string
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path, table string) (*TrafficRepository, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, repositories.Unavailable(ctx, "ping", err)
	}
	return NewTrafficRepository(db, table), nil
}

func NewTrafficRepository(db *sql.DB, table string) *TrafficRepository {
	return &TrafficRepository{db: db, table: quoteIdent(table)}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (r *TrafficRepository) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			min_time  INTEGER NOT NULL,
			longitude TEXT NOT NULL,
			latitude  TEXT NOT NULL,
			class     TEXT NOT NULL,
			month     INTEGER NOT NULL,
			count     INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (month, class);`,
		r.table, quoteIdent(strings.Trim(r.table, `"`)+"_month_class_idx"))
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return repositories.Unavailable(ctx, "create schema", err)
	}
	return nil
}

func (r *TrafficRepository) BulkCreate(ctx context.Context, records []models.TrafficRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return repositories.Unavailable(ctx, "begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (min_time, longitude, latitude, class, month, count) VALUES (?, ?, ?, ?, ?, ?)", r.table))
	if err != nil {
		return repositories.Unavailable(ctx, "prepare insert", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		month := rec.Month
		if month == 0 {
			month = int(rec.Time.Month())
		}
		if _, err := stmt.ExecContext(ctx, rec.Time.UnixMilli(), rec.Longitude, rec.Latitude, rec.Class, month, rec.Count); err != nil {
			return repositories.Unavailable(ctx, "insert record", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return repositories.Unavailable(ctx, "commit", err)
	}
	return nil
}

func (r *TrafficRepository) Scan(ctx context.Context, hint source.Pushdown, visit source.Visitor) error {
	query, args := scanQuery(r.table, hint)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return repositories.Unavailable(ctx, "query records", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec    models.TrafficRecord
			millis int64
		)
		if err := rows.Scan(&millis, &rec.Longitude, &rec.Latitude, &rec.Class, &rec.Month, &rec.Count); err != nil {
			return repositories.Unavailable(ctx, "scan record", err)
		}
		rec.Time = time.UnixMilli(millis).UTC()
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
		where = append(where, "month IN ("+placeholders(len(months))+")")
		for _, m := range months {
			args = append(args, m)
		}
	}
	if len(hint.Classes) > 0 {
		where = append(where, "class IN ("+placeholders(len(hint.Classes))+")")
		for _, c := range hint.Classes {
			args = append(args, c)
		}
	}
	query := "SELECT min_time, longitude, latitude, class, month, count FROM " + table
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (r *TrafficRepository) DistinctClasses(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT class FROM %s ORDER BY class", r.table))
	if err != nil {
		return nil, repositories.Unavailable(ctx, "list classes", err)
	}
	defer rows.Close()

	var classes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, repositories.Unavailable(ctx, "list classes", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, repositories.Unavailable(ctx, "list classes", err)
	}
	return classes, nil
}

func (r *TrafficRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.table).Scan(&count); err != nil {
		return 0, repositories.Unavailable(ctx, "count records", err)
	}
	return count, nil
}

func (r *TrafficRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM "+r.table); err != nil {
		return repositories.Unavailable(ctx, "delete records", err)
	}
	return nil
}

func (r *TrafficRepository) Close() error {
	return r.db.Close()
}

var _ repositories.TrafficRepository = (*TrafficRepository)(nil)
