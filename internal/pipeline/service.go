package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/querypilot/querypilot/internal/fixture"
	"github.com/querypilot/querypilot/internal/nl2sql"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/query"
	"github.com/querypilot/querypilot/internal/querylog"
	"github.com/querypilot/querypilot/internal/sqlguard"
)

var ErrEmptyQuestion = errors.New("question is required")

type Answer struct {
	SQL           string
	Result        any
	ExecutionTime time.Duration
}

type Translation struct {
	SQL      string
	Provider string
	Model    string
	Verdict  sqlguard.Verdict
	Tables   []string
}

type Service struct {
	Translator nl2sql.Translator
	Guard      *sqlguard.Guard
	Executor   query.Executor
	Log        *querylog.Log
	Logger     *slog.Logger
	Dialect    string
	Schema     []fixture.Table

	now func() time.Time
}

func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	logger := s.logger()

	translated, err := s.translate(ctx, question)
	if err != nil {
		return Answer{}, err
	}
	candidate := translated.SQL

	verdict := s.guard().Validate(candidate)
	if !verdict.Accepted() {
		observability.ObserveRejection(string(verdict.Reason))
		logger.WarnContext(ctx, "generated sql rejected",
			slog.String("sql", candidate),
			slog.String("reason", string(verdict.Reason)),
		)
		return Answer{}, &ValidationError{SQL: candidate, Reason: verdict.Reason}
	}

	if s.Executor == nil {
		return Answer{}, &ExecutionError{SQL: candidate, Err: fmt.Errorf("query executor is not configured")}
	}
	start := s.clock()()
	result, err := s.Executor.Execute(ctx, candidate)
	elapsed := s.clock()().Sub(start)
	if err != nil {
		observability.ObserveOutcome(observability.OutcomeExecutionError)
		logger.WarnContext(ctx, "generated sql failed",
			slog.String("sql", candidate),
			slog.String("error", err.Error()),
		)
		return Answer{}, &ExecutionError{SQL: candidate, Err: err}
	}
	observability.ObserveExecution(elapsed)

	if s.Log != nil {
		s.Log.Append(querylog.Entry{Question: question, SQL: candidate, ExecutionTime: elapsed})
		observability.SetQueryLogEntries(s.Log.Len())
	}
	observability.ObserveOutcome(observability.OutcomeSuccess)
	logger.InfoContext(ctx, "question answered",
		slog.String("sql", candidate),
		slog.Duration("duration", elapsed),
		slog.Int("rows", len(result.Rows)),
	)

	return Answer{SQL: candidate, Result: query.Shape(result), ExecutionTime: elapsed}, nil
}

// Translate produces and checks a statement without running or logging it.
func (s *Service) Translate(ctx context.Context, question string) (Translation, error) {
	translated, err := s.translate(ctx, question)
	if err != nil {
		return Translation{}, err
	}
	return Translation{
		SQL:      translated.SQL,
		Provider: translated.Provider,
		Model:    translated.Model,
		Verdict:  s.guard().Validate(translated.SQL),
		Tables:   sqlguard.Referenced(translated.SQL),
	}, nil
}

func (s *Service) Stats() querylog.Stats {
	if s.Log == nil {
		return querylog.Aggregate(nil)
	}
	return s.Log.Snapshot()
}

func (s *Service) translate(ctx context.Context, question string) (nl2sql.Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nl2sql.Result{}, ErrEmptyQuestion
	}
	if s.Translator == nil {
		return nl2sql.Result{}, &TranslationError{Err: nl2sql.ErrNotConfigured}
	}

	start := s.clock()()
	translated, err := s.Translator.Translate(ctx, nl2sql.Request{
		Question: question,
		Dialect:  s.Dialect,
		Tables:   TableContexts(s.Schema),
	})
	observability.ObserveTranslation(s.clock()().Sub(start))
	if err != nil {
		observability.ObserveOutcome(observability.OutcomeTranslationError)
		s.logger().WarnContext(ctx, "question translation failed",
			slog.String("provider", translated.Provider),
			slog.String("error", err.Error()),
		)
		return nl2sql.Result{}, &TranslationError{Err: err}
	}
	translated.SQL = strings.TrimSpace(translated.SQL)
	return translated, nil
}

// TableContexts describes the schema to the translator.
func TableContexts(tables []fixture.Table) []nl2sql.TableContext {
	if tables == nil {
		tables = fixture.Tables()
	}
	out := make([]nl2sql.TableContext, 0, len(tables))
	for _, table := range tables {
		columns := make([]string, 0, len(table.Columns))
		var references []string
		for _, column := range table.Columns {
			columns = append(columns, column.Name)
			if column.References != "" {
				references = append(references, column.Name+" -> "+column.References)
			}
		}
		out = append(out, nl2sql.TableContext{TableName: table.Name, Columns: columns, References: references})
	}
	return out
}

func (s *Service) guard() *sqlguard.Guard {
	if s.Guard == nil {
		return sqlguard.New(fixture.TableNames()...)
	}
	return s.Guard
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return observability.DiscardLogger()
	}
	return s.Logger
}

func (s *Service) clock() func() time.Time {
	if s.now == nil {
		return time.Now
	}
	return s.now
}
