// Package bootstrap wires configuration into an opened, migrated and seeded
// store for the binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/fixture"
	"github.com/querypilot/querypilot/internal/migrations"
	"github.com/querypilot/querypilot/internal/observability"
	s3store "github.com/querypilot/querypilot/internal/storage/s3"
	"github.com/querypilot/querypilot/internal/store"
	"github.com/querypilot/querypilot/internal/store/duckdb"
)

func Dataset(cfg config.FixtureConfig) (fixture.Dataset, error) {
	if path := strings.TrimSpace(cfg.File); path != "" {
		return fixture.LoadFile(path)
	}
	return fixture.Default(cfg.RandomSeed), nil
}

func ObjectStore(ctx context.Context, cfg config.ObjectStoreConfig) (*s3store.Store, error) {
	return s3store.New(ctx, cfg)
}

// OpenStore opens the configured store and brings it to a queryable state.
// SQLite and Postgres are migrated and seeded per config; DuckDB is
// materialized from parquet, either encoded in process or read from the
// object store.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, store.Dialect, error) {
	db, dialect, err := store.Open(ctx, store.ConfigFrom(cfg.Store))
	if err != nil {
		return nil, store.Dialect{}, err
	}
	if err := Prepare(ctx, db, dialect, cfg, logger); err != nil {
		_ = db.Close()
		return nil, store.Dialect{}, err
	}
	return db, dialect, nil
}

func Prepare(ctx context.Context, db *sql.DB, dialect store.Dialect, cfg config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = observability.DiscardLogger()
	}

	if !dialect.SupportsMigrations() {
		sources, err := duckdbSources(ctx, cfg)
		if err != nil {
			return err
		}
		if err := duckdb.Materialize(ctx, db, sources); err != nil {
			return err
		}
		logger.Info("materialized fixture tables",
			slog.String("driver", dialect.Driver),
			slog.String("source", cfg.Fixture.Source),
			slog.Int("tables", len(sources)),
		)
		return nil
	}

	if cfg.Store.AutoMigrate {
		applied, err := migrations.NewRunner(dialect.GooseDialect()).Up(ctx, db, 0)
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("applied migrations", slog.String("driver", dialect.Driver), slog.Int("applied", applied))
	}
	if cfg.Fixture.AutoSeed {
		ds, err := Dataset(cfg.Fixture)
		if err != nil {
			return err
		}
		seeded, err := fixture.Seed(ctx, db, dialect, ds)
		if err != nil {
			return err
		}
		logger.Info("fixture seed checked", slog.Bool("seeded", seeded), slog.Int("students", len(ds.Students)))
	}
	return nil
}

func duckdbSources(ctx context.Context, cfg config.Config) ([]duckdb.Source, error) {
	if cfg.Fixture.Source == config.FixtureSourceObjectStore {
		objects, err := ObjectStore(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, fmt.Errorf("open object store: %w", err)
		}
		return fixture.Sources(ctx, objects)
	}
	ds, err := Dataset(cfg.Fixture)
	if err != nil {
		return nil, err
	}
	return fixture.LocalSources(ds)
}

// Describe renders one fixture table as column names and stringified rows.
func Describe(ctx context.Context, db *sql.DB, table fixture.Table) ([]string, [][]string, error) {
	columns := make([]string, 0, len(table.Columns))
	for _, column := range table.Columns {
		columns = append(columns, column.Name)
	}
	rows, err := db.QueryContext(ctx, "SELECT "+strings.Join(columns, ", ")+" FROM "+table.Name+" ORDER BY id")
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", table.Name, err)
	}
	defer func() { _ = rows.Close() }()

	var out [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		scan := make([]any, len(columns))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, nil, fmt.Errorf("scan %s: %w", table.Name, err)
		}
		record := make([]string, len(values))
		for i, value := range values {
			record[i] = formatCell(value)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate %s: %w", table.Name, err)
	}
	return columns, out, nil
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
