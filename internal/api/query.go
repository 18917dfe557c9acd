package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/querypilot/querypilot/internal/fixture"
	"github.com/querypilot/querypilot/internal/nl2sql"
	"github.com/querypilot/querypilot/internal/pipeline"
)

const maxRequestBytes = 64 << 10

type questionRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	GeneratedSQL  string  `json:"generated_sql"`
	Result        any     `json:"result"`
	ExecutionTime float64 `json:"execution_time"`
}

type translateResponse struct {
	SQL      string   `json:"sql"`
	Provider string   `json:"provider"`
	Model    string   `json:"model"`
	Accepted bool     `json:"accepted"`
	Reason   string   `json:"reason,omitempty"`
	Tables   []string `json:"tables"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	question, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	if deps.Queries == nil {
		writeDetail(w, http.StatusBadRequest, nl2sql.ErrNotConfigured.Error())
		return
	}

	answer, err := deps.Queries.Ask(r.Context(), question)
	if err != nil {
		logRequestFailure(deps, r, err)
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		GeneratedSQL:  answer.SQL,
		Result:        answer.Result,
		ExecutionTime: answer.ExecutionTime.Seconds(),
	})
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	question, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	if deps.Queries == nil {
		writeDetail(w, http.StatusBadRequest, nl2sql.ErrNotConfigured.Error())
		return
	}

	translation, err := deps.Queries.Translate(r.Context(), question)
	if err != nil {
		logRequestFailure(deps, r, err)
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	tables := translation.Tables
	if tables == nil {
		tables = []string{}
	}
	response := translateResponse{
		SQL:      translation.SQL,
		Provider: translation.Provider,
		Model:    translation.Model,
		Accepted: translation.Verdict.Accepted(),
		Tables:   tables,
	}
	if !response.Accepted {
		response.Reason = string(translation.Verdict.Reason)
	}
	writeJSON(w, http.StatusOK, response)
}

func handleStats(deps Dependencies, w http.ResponseWriter, _ *http.Request) {
	if deps.Queries == nil {
		writeJSON(w, http.StatusOK, (&pipeline.Service{}).Stats())
		return
	}
	writeJSON(w, http.StatusOK, deps.Queries.Stats())
}

func handleSchema(deps Dependencies, w http.ResponseWriter, _ *http.Request) {
	tables := deps.Schema
	if tables == nil {
		tables = fixture.Tables()
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var request questionRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&request); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return "", false
	}
	question := strings.TrimSpace(request.Question)
	if question == "" {
		writeDetail(w, http.StatusBadRequest, pipeline.ErrEmptyQuestion.Error())
		return "", false
	}
	return question, true
}

func logRequestFailure(deps Dependencies, r *http.Request, err error) {
	if deps.Logger == nil {
		return
	}
	kind := "error"
	var validationErr *pipeline.ValidationError
	var executionErr *pipeline.ExecutionError
	var translationErr *pipeline.TranslationError
	switch {
	case errors.As(err, &validationErr):
		kind = "validation"
	case errors.As(err, &executionErr):
		kind = "execution"
	case errors.As(err, &translationErr):
		kind = "translation"
	}
	deps.Logger.InfoContext(r.Context(), "question rejected",
		slog.String("path", r.URL.Path),
		slog.String("kind", kind),
		slog.String("detail", err.Error()),
	)
}
