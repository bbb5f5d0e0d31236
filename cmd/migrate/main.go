package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/dvloznov/finsight/internal/config"
	infraBQ "github.com/dvloznov/finsight/internal/infra/bigquery"
	"github.com/dvloznov/finsight/internal/kv/sqlstore"
	"github.com/dvloznov/finsight/internal/logger"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const (
	targetSQL      = "sql"
	targetBigQuery = "bigquery"
)

var errNoSQLBackend = errors.New("no SQL backend selected")

func main() {
	cfg := config.Load()

	target := flag.String("target", targetSQL, "What to migrate: sql (durable kv store) or bigquery (export dataset)")
	dialect := flag.String("dialect", "", "SQL dialect: sqlite or postgres (defaults to STORE_BACKEND)")
	dsn := flag.String("dsn", "", "SQL DSN or SQLite path (defaults to SQLITE_DB_PATH / POSTGRES_DSN)")
	projectID := flag.String("project", cfg.BigQueryProject, "GCP project ID (or set BIGQUERY_PROJECT)")
	datasetID := flag.String("dataset", cfg.BigQueryDataset, "BigQuery dataset ID")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir := flag.String("migrations", "", "Directory of BigQuery migrations (defaults to the built-in set)")
	flag.Parse()

	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	switch *target {
	case targetSQL:
		d, resolved, err := resolveSQLTarget(cfg, *dialect, *dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("Error: cannot determine SQL database")
		}
		if err := migrateSQL(ctx, log, d, resolved); err != nil {
			log.Fatal().Err(err).Msg("SQL migration failed")
		}
	case targetBigQuery:
		if *projectID == "" {
			log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
		}
		var source fs.FS = infraBQ.MigrationsFS()
		if *migrationsDir != "" {
			source = os.DirFS(*migrationsDir)
		}
		if err := migrateBigQuery(ctx, log, cfg, *projectID, *datasetID, *appliedBy, source); err != nil {
			log.Fatal().Err(err).Msg("BigQuery migration failed")
		}
	default:
		log.Fatal().Str("target", *target).Msg("Error: -target must be sql or bigquery")
	}
}

// resolveSQLTarget picks the dialect and DSN from flags, falling back to the
// configured store backend.
func resolveSQLTarget(cfg *config.Config, dialect, dsn string) (sqlstore.Dialect, string, error) {
	if dialect == "" {
		switch cfg.StoreBackend {
		case config.StoreSQLite, config.StorePostgres:
			dialect = cfg.StoreBackend
		default:
			return "", "", fmt.Errorf("%w: STORE_BACKEND is %q, pass -dialect", errNoSQLBackend, cfg.StoreBackend)
		}
	}

	d := sqlstore.Dialect(dialect)
	if err := d.Validate(); err != nil {
		return "", "", err
	}

	if dsn == "" {
		switch d {
		case sqlstore.SQLite:
			dsn = cfg.SQLiteDBPath
		case sqlstore.Postgres:
			dsn = cfg.PostgresDSN
		}
	}
	if dsn == "" {
		return "", "", fmt.Errorf("no DSN for %s, pass -dsn", d)
	}
	return d, dsn, nil
}

func migrateSQL(ctx context.Context, log zerolog.Logger, dialect sqlstore.Dialect, dsn string) error {
	store, err := sqlstore.Open(ctx, dialect, dsn)
	if err != nil {
		return err
	}
	if err := store.Close(); err != nil {
		return err
	}

	version, dirty, err := sqlstore.SchemaVersion(dialect, dsn)
	if err != nil {
		return err
	}
	log.Info().
		Str("dialect", string(dialect)).
		Uint("version", version).
		Bool("dirty", dirty).
		Msg("SQL schema is up to date")
	return nil
}

func migrateBigQuery(ctx context.Context, log zerolog.Logger, cfg *config.Config, project, dataset, appliedBy string, source fs.FS) error {
	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}

	m, err := infraBQ.NewMigrator(ctx, project, dataset, appliedBy, log, opts...)
	if err != nil {
		return err
	}
	defer m.Close()

	log.Info().Str("project", project).Str("dataset", dataset).Msg("Connected to BigQuery")

	applied, err := m.Up(ctx, source)
	if err != nil {
		return err
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	} else {
		log.Info().Int("applied", applied).Msg("Successfully applied migrations")
	}
	return nil
}
