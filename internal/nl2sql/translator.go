package nl2sql

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by NewFromConfig when no provider credentials
// are available.
var ErrNotConfigured = errors.New("query translation is not configured")

type TableContext struct {
	TableName  string   `json:"table_name"`
	Columns    []string `json:"columns"`
	References []string `json:"references,omitempty"`
}

type Request struct {
	Question string         `json:"question"`
	Dialect  string         `json:"dialect"`
	Tables   []TableContext `json:"tables"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
