package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"

	"github.com/querypilot/querypilot/internal/config"
)

type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func ConfigFrom(cfg config.StoreConfig) Config {
	return Config{
		Driver:          cfg.Driver,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}
}

// Dialect captures the few places where the supported engines disagree.
type Dialect struct {
	Driver string
}

func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case config.DriverSQLite:
		return Dialect{Driver: config.DriverSQLite}, nil
	case config.DriverPostgres:
		return Dialect{Driver: config.DriverPostgres}, nil
	case config.DriverDuckDB:
		return Dialect{Driver: config.DriverDuckDB}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported store driver %q", driver)
	}
}

func (d Dialect) sqlDriverName() string {
	switch d.Driver {
	case config.DriverPostgres:
		return "pgx"
	case config.DriverDuckDB:
		return "duckdb"
	default:
		return "sqlite"
	}
}

// Placeholder returns the bind parameter for the 1-based position n.
func (d Dialect) Placeholder(n int) string {
	if d.Driver == config.DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d Dialect) Placeholders(count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = d.Placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

// GooseDialect is empty for engines the migration tool does not manage.
func (d Dialect) GooseDialect() string {
	switch d.Driver {
	case config.DriverSQLite:
		return "sqlite3"
	case config.DriverPostgres:
		return "postgres"
	default:
		return ""
	}
}

func (d Dialect) SupportsMigrations() bool {
	return d.GooseDialect() != ""
}

func Open(ctx context.Context, cfg Config) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}
	if cfg.DSN == "" && dialect.Driver != config.DriverDuckDB {
		return nil, Dialect{}, fmt.Errorf("store dsn is required")
	}

	db, err := sql.Open(dialect.sqlDriverName(), cfg.DSN)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open %s store: %w", dialect.Driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, fmt.Errorf("ping %s store: %w", dialect.Driver, err)
	}

	return db, dialect, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("store is not configured")
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}
