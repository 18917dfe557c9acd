// Package duckdb loads table snapshots stored as parquet into a DuckDB
// database so the query executor can run against them.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
	"golang.org/x/sync/errgroup"
)

type Source struct {
	Table string
	Open  func(ctx context.Context) (io.ReadCloser, error)
}

// Materialize downloads every source concurrently into a local temp file and
// replaces each table with its contents. Tables are fully loaded, so the temp
// files are removed before returning.
func Materialize(ctx context.Context, db *sql.DB, sources []Source) error {
	if db == nil {
		return fmt.Errorf("duckdb database is required")
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources to materialize")
	}

	workDir, err := os.MkdirTemp("", "querypilot-duckdb-")
	if err != nil {
		return fmt.Errorf("create materialize temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	groupedPaths := map[string][]string{}
	order := make([]string, 0, len(sources))
	localPaths := make([]string, len(sources))
	for index, source := range sources {
		if strings.TrimSpace(source.Table) == "" {
			return fmt.Errorf("source %d: table name is required", index)
		}
		if source.Open == nil {
			return fmt.Errorf("source %q: open function is required", source.Table)
		}
		localPaths[index] = filepath.Join(workDir, fmt.Sprintf("%s_%d.parquet", sanitizeFileComponent(source.Table), index))
		if _, ok := groupedPaths[source.Table]; !ok {
			order = append(order, source.Table)
		}
		groupedPaths[source.Table] = append(groupedPaths[source.Table], localPaths[index])
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for index, source := range sources {
		group.Go(func() error {
			return download(groupCtx, source, localPaths[index])
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for _, table := range order {
		statement := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(table), quoteStringArray(groupedPaths[table]))
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("materialize table %q: %w", table, err)
		}
	}
	return nil
}

func download(ctx context.Context, source Source, localPath string) error {
	reader, err := source.Open(ctx)
	if err != nil {
		return fmt.Errorf("open source %q: %w", source.Table, err)
	}
	if err := writeFile(localPath, reader); err != nil {
		_ = reader.Close()
		return fmt.Errorf("write local parquet file %q: %w", localPath, err)
	}
	if err := reader.Close(); err != nil {
		return fmt.Errorf("close source %q: %w", source.Table, err)
	}
	return nil
}

func writeFile(path string, reader io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if _, err := io.Copy(file, reader); err != nil {
		return err
	}
	return file.Sync()
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}
