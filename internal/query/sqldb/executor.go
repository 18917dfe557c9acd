package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/querypilot/querypilot/internal/query"
)

type Executor struct {
	DB *sql.DB
}

func NewExecutor(db *sql.DB) *Executor {
	return &Executor{DB: db}
}

// Execute holds one pooled connection for the statement and its row fetch.
// Errors raised by the store while running the statement are returned
// unwrapped so their text reaches the caller as the store wrote it.
func (e *Executor) Execute(ctx context.Context, sqlText string) (query.Result, error) {
	if e.DB == nil {
		return query.Result{}, fmt.Errorf("execute query: database is required")
	}
	statement := query.StripTrailingSemicolons(sqlText)
	if statement == "" {
		return query.Result{}, fmt.Errorf("execute query: sql is required")
	}

	conn, err := e.DB.Conn(ctx)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, statement)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("execute query: scan row: %w", err)
		}
		resultRows = append(resultRows, query.NormalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, err
	}

	return query.Result{Columns: columns, Rows: resultRows}, nil
}
