package cmd

import (
	"context"
	"fmt"

	"github.com/chrisdamba/bhtraffic/internal/logging"
	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/repositories"
	"github.com/chrisdamba/bhtraffic/internal/repositories/postgres"
	"github.com/chrisdamba/bhtraffic/internal/repositories/sqlite"
	"github.com/chrisdamba/bhtraffic/internal/source"
	"github.com/chrisdamba/bhtraffic/internal/source/parquetsrc"
	"github.com/spf13/cobra"
)

const importBatchSize = 5000

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy a parquet dataset into PostgreSQL or SQLite",
	Example: `  bhtraffic import --to sqlite --file data/vehicles_count.parquet
  BHTRAFFIC_SOURCE_POSTGRES_DSN=postgres://localhost/traffic bhtraffic import --to postgres --truncate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		target, _ := cmd.Flags().GetString("to")
		file, _ := cmd.Flags().GetString("file")
		truncate, _ := cmd.Flags().GetBool("truncate")
		if file == "" {
			file = cfg.Source.Path
		}

		repo, err := openRepository(ctx, target, cfg)
		if err != nil {
			return err
		}
		defer repo.Close()

		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		if truncate {
			if err := repo.DeleteAll(ctx); err != nil {
				return err
			}
		}

		n, err := copyRecords(ctx, parquetsrc.NewLocal(file), repo)
		if err != nil {
			return err
		}
		total, err := repo.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d records from %s, %d in %s\n", n, file, total, target)
		return nil
	},
}

func openRepository(ctx context.Context, target string, cfg *models.Config) (repositories.TrafficRepository, error) {
	switch target {
	case models.SourcePostgres:
		if cfg.Source.Postgres.DSN == "" {
			return nil, fmt.Errorf("source.postgres.dsn is required to import into postgres")
		}
		return postgres.Connect(ctx, cfg.Source.Postgres)
	case models.SourceSQLite:
		if cfg.Source.SQLite.DSN == "" {
			return nil, fmt.Errorf("source.sqlite.dsn is required to import into sqlite")
		}
		return sqlite.Open(ctx, cfg.Source.SQLite.DSN, cfg.Source.SQLite.Table)
	default:
		return nil, fmt.Errorf("import target must be postgres or sqlite, got %q", target)
	}
}

// copyRecords streams src into repo in batches.
func copyRecords(ctx context.Context, src source.Source, repo repositories.TrafficRepository) (int64, error) {
	log := logging.Component("import")
	batch := make([]models.TrafficRecord, 0, importBatchSize)
	var total int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := repo.BulkCreate(ctx, batch); err != nil {
			return err
		}
		total += int64(len(batch))
		log.WithField("records", total).Debug("batch imported")
		batch = batch[:0]
		return nil
	}

	err := src.Scan(ctx, source.Pushdown{}, func(rec models.TrafficRecord) error {
		batch = append(batch, rec)
		if len(batch) == importBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}
	log.WithField("records", total).Info("import finished")
	return total, nil
}

func init() {
	flags := importCmd.Flags()
	flags.String("to", models.SourceSQLite, "target database: postgres or sqlite")
	flags.String("file", "", "parquet file to import (default source.path)")
	flags.Bool("truncate", false, "delete existing rows first")
	flags.String("sqlite-path", "", "SQLite database file")
	flags.String("postgres-dsn", "", "PostgreSQL connection string")

	bindFlag(flags.Lookup("sqlite-path"), "source.sqlite.dsn")
	bindFlag(flags.Lookup("postgres-dsn"), "source.postgres.dsn")

	rootCmd.AddCommand(importCmd)
}
