package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const (
	migrationDir   = "sql"
	migrationTable = "querypilot_schema_migrations"
)

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

type Runner struct {
	dialect string
}

// NewRunner takes a goose dialect name such as "sqlite3" or "postgres".
func NewRunner(dialect string) *Runner {
	return &Runner{dialect: dialect}
}

func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	applied := 0
	err := r.withGoose(func() error {
		for steps <= 0 || applied < steps {
			if err := goose.UpByOneContext(ctx, db, migrationDir); err != nil {
				if errors.Is(err, goose.ErrNoNextVersion) {
					return nil
				}
				return fmt.Errorf("apply migration: %w", err)
			}
			applied++
		}
		return nil
	})
	return applied, err
}

func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	rolledBack := 0
	err := r.withGoose(func() error {
		for rolledBack < steps {
			version, err := goose.GetDBVersionContext(ctx, db)
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			if version == 0 {
				return nil
			}
			if err := goose.DownContext(ctx, db, migrationDir); err != nil {
				return fmt.Errorf("rollback migration %d: %w", version, err)
			}
			rolledBack++
		}
		return nil
	})
	return rolledBack, err
}

func (r *Runner) Version(ctx context.Context, db *sql.DB) (int64, error) {
	var version int64
	err := r.withGoose(func() error {
		current, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		version = current
		return nil
	})
	return version, err
}

func (r *Runner) withGoose(fn func() error) error {
	if r.dialect == "" {
		return fmt.Errorf("migration dialect is required")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embeddedFS)
	goose.SetLogger(goose.NopLogger())
	goose.SetTableName(migrationTable)
	if err := goose.SetDialect(r.dialect); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	return fn()
}
