package duckdb

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"

	"github.com/parquet-go/parquet-go"
)

type row struct {
	ID   int64  `parquet:"id"`
	Name string `parquet:"name"`
}

func TestMaterializeLoadsParquetIntoTables(t *testing.T) {
	first, err := buildParquet([]row{{ID: 1, Name: "python"}, {ID: 2, Name: "java"}})
	if err != nil {
		t.Fatalf("buildParquet() error = %v", err)
	}
	second, err := buildParquet([]row{{ID: 3, Name: "math"}})
	if err != nil {
		t.Fatalf("buildParquet() error = %v", err)
	}

	db := openDuckDB(t)
	err = Materialize(context.Background(), db, []Source{
		bytesSource("courses", first),
		bytesSource("courses", second),
	})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}

	var count int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM courses`).Scan(&count); err != nil {
		t.Fatalf("count courses: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestMaterializeReplacesExistingTable(t *testing.T) {
	data, err := buildParquet([]row{{ID: 1, Name: "ai"}})
	if err != nil {
		t.Fatalf("buildParquet() error = %v", err)
	}
	db := openDuckDB(t)
	for i := 0; i < 2; i++ {
		if err := Materialize(context.Background(), db, []Source{bytesSource("courses", data)}); err != nil {
			t.Fatalf("Materialize() run %d error = %v", i, err)
		}
	}
	var count int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM courses`).Scan(&count); err != nil {
		t.Fatalf("count courses: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestMaterializePropagatesSourceError(t *testing.T) {
	db := openDuckDB(t)
	openErr := errors.New("object missing")
	err := Materialize(context.Background(), db, []Source{{
		Table: "students",
		Open: func(context.Context) (io.ReadCloser, error) {
			return nil, openErr
		},
	}})
	if !errors.Is(err, openErr) {
		t.Fatalf("Materialize() error = %v, want wrapped source error", err)
	}
}

func TestMaterializeValidatesInput(t *testing.T) {
	if err := Materialize(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil db")
	}
	db := openDuckDB(t)
	if err := Materialize(context.Background(), db, nil); err == nil {
		t.Fatal("expected error for empty sources")
	}
	if err := Materialize(context.Background(), db, []Source{{Table: "students"}}); err == nil {
		t.Fatal("expected error for source without opener")
	}
}

func TestQuoteHelpers(t *testing.T) {
	if got := quoteIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("quoteIdent() = %s", got)
	}
	if got := quoteStringArray([]string{"/tmp/a.parquet", "/tmp/o'b.parquet"}); got != `['/tmp/a.parquet','/tmp/o''b.parquet']` {
		t.Fatalf("quoteStringArray() = %s", got)
	}
	if got := sanitizeFileComponent("../x/y"); got != "__x_y" {
		t.Fatalf("sanitizeFileComponent() = %s", got)
	}
}

func openDuckDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("sql.Open(duckdb) error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func bytesSource(table string, data []byte) Source {
	return Source{
		Table: table,
		Open: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func buildParquet(rows []row) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[row](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
