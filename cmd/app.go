package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/boundary"
	"github.com/chrisdamba/bhtraffic/internal/cache"
	"github.com/chrisdamba/bhtraffic/internal/logging"
	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/pipeline"
	"github.com/chrisdamba/bhtraffic/internal/repositories/postgres"
	"github.com/chrisdamba/bhtraffic/internal/repositories/sqlite"
	"github.com/chrisdamba/bhtraffic/internal/source"
	"github.com/chrisdamba/bhtraffic/internal/source/parquetsrc"
	"github.com/chrisdamba/bhtraffic/internal/vehicleclass"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func bindFlag(flag *pflag.Flag, key string) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag.Name, err))
	}
}

// app holds what every query command needs, built from the loaded config.
type app struct {
	cfg     *models.Config
	classes *vehicleclass.Table
	loc     *time.Location
	src     source.Source
	closers []io.Closer
	log     *logrus.Entry
}

func newApp(ctx context.Context, cfg *models.Config) (*app, error) {
	classes, err := cfg.ClassTable()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, classes: classes, loc: loc, log: logging.Component("app")}

	src, closer, err := openSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.src = src
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	return a, nil
}

func openSource(ctx context.Context, cfg *models.Config) (source.Source, io.Closer, error) {
	switch cfg.Source.Type {
	case models.SourceParquet:
		return parquetsrc.NewLocal(cfg.Source.Path), nil, nil
	case models.SourceS3:
		client, err := parquetsrc.NewS3Client(ctx, cfg.Source.S3.Region)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", source.ErrSourceUnavailable, err)
		}
		return parquetsrc.NewS3(client, cfg.Source.S3.Bucket, cfg.Source.S3.Key), nil, nil
	case models.SourcePostgres:
		repo, err := postgres.Connect(ctx, cfg.Source.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	case models.SourceSQLite:
		repo, err := sqlite.Open(ctx, cfg.Source.SQLite.DSN, cfg.Source.SQLite.Table)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	default:
		return nil, nil, fmt.Errorf("unsupported source type %q", cfg.Source.Type)
	}
}

func (a *app) bounds() models.DateRange { return a.cfg.Dataset.Bounds() }

func (a *app) aggregator() *pipeline.Aggregator {
	return pipeline.NewAggregator(a.classes,
		pipeline.WithBounds(a.bounds()),
		pipeline.WithLocation(a.loc),
		pipeline.WithPushdown(a.cfg.Source.Pushdown),
		pipeline.WithLogger(logging.Component("pipeline")),
	)
}

// querier wraps the aggregator in the configured result cache.
func (a *app) querier(ctx context.Context) (pipeline.Querier, error) {
	agg := a.aggregator()
	c, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return agg, nil
	}
	a.closers = append(a.closers, c)
	return pipeline.NewCachedAggregator(agg, c, a.cfg.Dataset.Name, a.cfg.Cache.TTL), nil
}

func (a *app) openCache(ctx context.Context) (cache.Cache, error) {
	log := logging.Component("cache")
	switch a.cfg.Cache.Type {
	case models.CacheMemory:
		return cache.NewMemoryCache(a.cfg.Cache.MaxEntries, a.cfg.Cache.TTL, log), nil
	case models.CacheRedis:
		c, err := cache.NewRedisCache(ctx, a.cfg.Cache.RedisAddr, a.cfg.Cache.RedisPass, a.cfg.Cache.RedisDB, a.cfg.Cache.TTL, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect result cache: %w", err)
		}
		return c, nil
	default:
		return nil, nil
	}
}

// checkClasses compares the class table with the codes found in the source.
// A class whose code never occurs is fatal when strict_classes is set.
func (a *app) checkClasses(ctx context.Context) error {
	codes, err := source.DistinctClasses(ctx, a.src)
	if err != nil {
		return err
	}
	unknown, err := a.classes.CheckSource(codes)
	if len(unknown) > 0 {
		a.log.WithField("codes", unknown).Warn("source has class codes outside the class table, counted as UNDEFINED")
	}
	if err != nil {
		if a.cfg.StrictClasses {
			return err
		}
		a.log.WithError(err).Warn("class table does not match the source")
	}
	return nil
}

// boundary loads the configured city outline. A missing file only disables
// boundary features.
func (a *app) boundary() *boundary.Boundary {
	if a.cfg.Boundary.Path == "" {
		return nil
	}
	b, err := boundary.Load(a.cfg.Boundary.Path, a.cfg.Boundary.Name)
	if err != nil {
		a.log.WithError(err).Warn("city boundary not loaded")
		return nil
	}
	return b
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}
