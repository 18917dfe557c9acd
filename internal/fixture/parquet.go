package fixture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"golang.org/x/sync/errgroup"

	"github.com/querypilot/querypilot/internal/storage"
	"github.com/querypilot/querypilot/internal/store/duckdb"
)

const parquetContentType = "application/vnd.apache.parquet"

type ParquetFile struct {
	Table       string
	Data        []byte
	RecordCount int64
}

func EncodeParquet(ds Dataset) ([]ParquetFile, error) {
	students, err := encodeRows(ds.Students)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", TableStudents, err)
	}
	courses, err := encodeRows(ds.Courses)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", TableCourses, err)
	}
	enrollments, err := encodeRows(ds.Enrollments)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", TableEnrollments, err)
	}
	return []ParquetFile{
		{Table: TableStudents, Data: students, RecordCount: int64(len(ds.Students))},
		{Table: TableCourses, Data: courses, RecordCount: int64(len(ds.Courses))},
		{Table: TableEnrollments, Data: enrollments, RecordCount: int64(len(ds.Enrollments))},
	}, nil
}

func encodeRows[T any](rows []T) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeParquet[T any](data []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return rows, nil
}

// Publish uploads one parquet object per table, both at the well-known
// fixture key and under a dated history key.
func Publish(ctx context.Context, objects storage.ObjectStore, ds Dataset, publishedAt time.Time) ([]storage.ObjectInfo, error) {
	if objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	files, err := EncodeParquet(ds)
	if err != nil {
		return nil, err
	}

	infos := make([]storage.ObjectInfo, len(files))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, file := range files {
		group.Go(func() error {
			key, err := storage.FixturePath(file.Table)
			if err != nil {
				return err
			}
			historyKey, err := storage.FixtureHistoryPath(file.Table, publishedAt)
			if err != nil {
				return err
			}
			info, err := objects.Put(groupCtx, key, bytes.NewReader(file.Data), int64(len(file.Data)), storage.PutOptions{ContentType: parquetContentType})
			if err != nil {
				return fmt.Errorf("publish %s: %w", file.Table, err)
			}
			if _, err := objects.Put(groupCtx, historyKey, bytes.NewReader(file.Data), int64(len(file.Data)), storage.PutOptions{ContentType: parquetContentType}); err != nil {
				return fmt.Errorf("publish %s history: %w", file.Table, err)
			}
			infos[i] = info
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

// Sources checks that every table has a published snapshot and returns
// readers for the DuckDB loader. A missing snapshot fails here, before any
// table is replaced.
func Sources(ctx context.Context, objects storage.ObjectStore) ([]duckdb.Source, error) {
	if objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	names := TableNames()
	sources := make([]duckdb.Source, 0, len(names))
	var missing []string
	for _, table := range names {
		key, err := storage.FixturePath(table)
		if err != nil {
			return nil, err
		}
		if _, err := objects.Stat(ctx, key); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				missing = append(missing, key)
				continue
			}
			return nil, fmt.Errorf("stat fixture %s: %w", table, err)
		}
		sources = append(sources, duckdb.Source{
			Table: table,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				return objects.Get(ctx, key)
			},
		})
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("fixture snapshot not published (%s): %w", strings.Join(missing, ", "), storage.ErrObjectNotFound)
	}
	return sources, nil
}

// PruneHistory deletes history snapshots so that at most keep publications
// per table remain, newest first. It returns the deleted keys in order.
func PruneHistory(ctx context.Context, objects storage.ObjectStore, keep int) ([]string, error) {
	if objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if keep < 1 {
		return nil, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	infos, err := objects.List(ctx, storage.FixtureHistoryPrefix())
	if err != nil {
		return nil, fmt.Errorf("list fixture history: %w", err)
	}

	type snapshot struct {
		key         string
		publishedAt time.Time
	}
	byTable := map[string][]snapshot{}
	for _, info := range infos {
		table, publishedAt, ok := storage.ParseFixtureHistoryPath(info.Key)
		if !ok {
			continue
		}
		byTable[table] = append(byTable[table], snapshot{key: info.Key, publishedAt: publishedAt})
	}

	var stale []string
	for _, snapshots := range byTable {
		if len(snapshots) <= keep {
			continue
		}
		sort.Slice(snapshots, func(i, j int) bool {
			return snapshots[i].publishedAt.After(snapshots[j].publishedAt)
		})
		for _, old := range snapshots[keep:] {
			stale = append(stale, old.key)
		}
	}
	sort.Strings(stale)

	for _, key := range stale {
		if err := objects.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return stale, nil
}

func LocalSources(ds Dataset) ([]duckdb.Source, error) {
	files, err := EncodeParquet(ds)
	if err != nil {
		return nil, err
	}
	sources := make([]duckdb.Source, 0, len(files))
	for _, file := range files {
		sources = append(sources, duckdb.Source{
			Table: file.Table,
			Open: func(context.Context) (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(file.Data)), nil
			},
		})
	}
	return sources, nil
}
