package query

import (
	"context"
	"strings"
)

type Result struct {
	Columns []string
	Rows    [][]any
}

// Executor runs a statement that has already passed the SQL guard.
type Executor interface {
	Execute(ctx context.Context, sql string) (Result, error)
}

type ExecutorFunc func(ctx context.Context, sql string) (Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, sql string) (Result, error) {
	return f(ctx, sql)
}

// Shape collapses a single-row single-column result to its value. Everything
// else stays a list of rows, and an empty result is an empty list.
func Shape(result Result) any {
	if len(result.Rows) == 1 && len(result.Rows[0]) == 1 {
		return result.Rows[0][0]
	}
	rows := make([][]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		copied := make([]any, len(row))
		copy(copied, row)
		rows = append(rows, copied)
	}
	return rows
}

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func NormalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
