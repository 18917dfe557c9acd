package fixture

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querypilot/querypilot/internal/storage"
)

func TestEncodeParquetRoundTrip(t *testing.T) {
	ds := Default(3)
	files, err := EncodeParquet(ds)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, TableStudents, files[0].Table)
	assert.Equal(t, int64(10), files[0].RecordCount)

	students, err := DecodeParquet[Student](files[0].Data)
	require.NoError(t, err)
	require.Len(t, students, 10)
	assert.Equal(t, "student4", students[3].Name)

	enrollments, err := DecodeParquet[Enrollment](files[2].Data)
	require.NoError(t, err)
	require.Len(t, enrollments, 25)
	assert.True(t, ds.Enrollments[0].EnrolledAt.Equal(enrollments[0].EnrolledAt))
}

func TestPublishWritesLatestAndHistory(t *testing.T) {
	objects := storage.NewMemoryStore()
	publishedAt := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)

	infos, err := Publish(context.Background(), objects, Default(1), publishedAt)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "fixtures/students.parquet", infos[0].Key)
	assert.Equal(t, "fixtures/enrollments.parquet", infos[2].Key)

	history, err := objects.List(context.Background(), storage.FixtureHistoryPrefix())
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestSourcesReadPublishedObjects(t *testing.T) {
	ctx := context.Background()
	objects := storage.NewMemoryStore()
	_, err := Publish(ctx, objects, Default(1), time.Now())
	require.NoError(t, err)

	sources, err := Sources(ctx, objects)
	require.NoError(t, err)
	require.Len(t, sources, 3)

	reader, err := sources[1].Open(ctx)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	_ = reader.Close()

	courses, err := DecodeParquet[Course](data)
	require.NoError(t, err)
	assert.Len(t, courses, 5)
}

func TestSourcesFailBeforeLoadingWhenSnapshotMissing(t *testing.T) {
	ctx := context.Background()
	objects := storage.NewMemoryStore()
	_, err := Publish(ctx, objects, Default(1), time.Now())
	require.NoError(t, err)
	require.NoError(t, objects.Delete(ctx, "fixtures/enrollments.parquet"))

	sources, err := Sources(ctx, objects)
	require.Error(t, err)
	assert.Nil(t, sources)
	assert.True(t, errors.Is(err, storage.ErrObjectNotFound))
	assert.Contains(t, err.Error(), "fixtures/enrollments.parquet")
	assert.NotContains(t, err.Error(), "fixtures/students.parquet")
}

func TestPruneHistoryKeepsNewestPublications(t *testing.T) {
	ctx := context.Background()
	objects := storage.NewMemoryStore()
	first := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	for day := 0; day < 3; day++ {
		_, err := Publish(ctx, objects, Default(1), first.AddDate(0, 0, day))
		require.NoError(t, err)
	}

	deleted, err := PruneHistory(ctx, objects, 2)
	require.NoError(t, err)
	require.Len(t, deleted, 3)
	for _, key := range deleted {
		assert.Contains(t, key, "date=2026-03-01/")
	}

	remaining, err := objects.List(ctx, storage.FixtureHistoryPrefix())
	require.NoError(t, err)
	assert.Len(t, remaining, 6)

	latest, err := objects.Stat(ctx, "fixtures/students.parquet")
	require.NoError(t, err)
	assert.Equal(t, "fixtures/students.parquet", latest.Key)

	again, err := PruneHistory(ctx, objects, 2)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestPruneHistoryRequiresPositiveKeep(t *testing.T) {
	_, err := PruneHistory(context.Background(), storage.NewMemoryStore(), 0)
	assert.Error(t, err)
}

func TestLocalSources(t *testing.T) {
	sources, err := LocalSources(Default(1))
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, []string{"students", "courses", "enrollments"}, []string{sources[0].Table, sources[1].Table, sources[2].Table})
}

func TestPublishRequiresStore(t *testing.T) {
	_, err := Publish(context.Background(), nil, Default(1), time.Now())
	assert.Error(t, err)
}
