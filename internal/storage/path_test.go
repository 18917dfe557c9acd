package storage

import (
	"testing"
	"time"
)

func TestFixturePath(t *testing.T) {
	key, err := FixturePath("students")
	if err != nil {
		t.Fatalf("FixturePath() error = %v", err)
	}
	if key != "fixtures/students.parquet" {
		t.Fatalf("FixturePath() = %q", key)
	}
}

func TestFixtureHistoryPath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 23, 5, 0, 0, time.FixedZone("x", -5*3600))
	key, err := FixtureHistoryPath("enrollments", ts)
	if err != nil {
		t.Fatalf("FixtureHistoryPath() error = %v", err)
	}
	want := "fixtures/history/date=2026-02-20/enrollments-1771560300000.parquet"
	if key != want {
		t.Fatalf("FixtureHistoryPath() = %q, want %q", key, want)
	}
}

func TestBuildPathRejectsInvalidComponent(t *testing.T) {
	if _, err := FixturePath("../oops"); err == nil {
		t.Fatal("expected invalid component error")
	}
	if _, err := FixtureHistoryPath("", time.Now()); err == nil {
		t.Fatal("expected invalid component error")
	}
}

func TestParseFixtureHistoryPath(t *testing.T) {
	publishedAt := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	key, err := FixtureHistoryPath("course-tags", publishedAt)
	if err != nil {
		t.Fatalf("FixtureHistoryPath() error = %v", err)
	}
	table, at, ok := ParseFixtureHistoryPath(key)
	if !ok || table != "course-tags" || !at.Equal(publishedAt) {
		t.Fatalf("ParseFixtureHistoryPath(%q) = %q, %s, %v", key, table, at, ok)
	}

	for _, key := range []string{
		"fixtures/students.parquet",
		"fixtures/history/date=2026-03-04/students.parquet",
		"fixtures/history/date=2026-03-04/students-abc.parquet",
		"fixtures/history/date=2026-03-04/students-1.csv",
		"other/history/students-1.parquet",
	} {
		if _, _, ok := ParseFixtureHistoryPath(key); ok {
			t.Fatalf("ParseFixtureHistoryPath(%q) ok = true", key)
		}
	}
}
