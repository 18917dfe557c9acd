package storage

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const fixtureRoot = "fixtures"

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// FixturePath is the key readers load a table snapshot from.
func FixturePath(tableName string) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	return path.Join(fixtureRoot, tableName+".parquet"), nil
}

func FixtureHistoryPath(tableName string, publishedAt time.Time) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	ts := publishedAt.UTC()
	return path.Join(
		fixtureRoot,
		"history",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%d.parquet", tableName, ts.UnixMilli()),
	), nil
}

func FixtureHistoryPrefix() string {
	return path.Join(fixtureRoot, "history") + "/"
}

// ParseFixtureHistoryPath reverses FixtureHistoryPath. ok is false for keys
// that were not written by it.
func ParseFixtureHistoryPath(key string) (tableName string, publishedAt time.Time, ok bool) {
	if !strings.HasPrefix(key, FixtureHistoryPrefix()) {
		return "", time.Time{}, false
	}
	base, found := strings.CutSuffix(path.Base(key), ".parquet")
	if !found {
		return "", time.Time{}, false
	}
	cut := strings.LastIndex(base, "-")
	if cut <= 0 {
		return "", time.Time{}, false
	}
	millis, err := strconv.ParseInt(base[cut+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	tableName = base[:cut]
	if validatePathComponent(tableName, "table name") != nil {
		return "", time.Time{}, false
	}
	return tableName, time.UnixMilli(millis).UTC(), true
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
