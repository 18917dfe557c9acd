package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/querypilot/querypilot/internal/auth"
	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/pipeline"
	"github.com/querypilot/querypilot/internal/querylog"
	"github.com/querypilot/querypilot/internal/sqlguard"
)

type fakeQueryService struct {
	answer      pipeline.Answer
	translation pipeline.Translation
	err         error
	stats       querylog.Stats
	questions   []string
}

func (f *fakeQueryService) Ask(_ context.Context, question string) (pipeline.Answer, error) {
	f.questions = append(f.questions, question)
	return f.answer, f.err
}

func (f *fakeQueryService) Translate(_ context.Context, question string) (pipeline.Translation, error) {
	f.questions = append(f.questions, question)
	return f.translation, f.err
}

func (f *fakeQueryService) Stats() querylog.Stats {
	return f.stats
}

func TestHealthEndpoint(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["service"] != "querypilot-api" {
		t.Fatalf("service = %v", body["service"])
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{
		Readiness: func(context.Context) error {
			return errors.New("store unreachable")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	if detail := decodeBody(t, rr)["detail"]; detail != "store unreachable" {
		t.Fatalf("detail = %v", detail)
	}
}

func TestMetricsEndpointIsServed(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestQueryReturnsAnswer(t *testing.T) {
	service := &fakeQueryService{answer: pipeline.Answer{
		SQL:           "SELECT COUNT(*) FROM students",
		Result:        int64(10),
		ExecutionTime: 1500 * time.Microsecond,
	}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Queries: service})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonRequest(http.MethodPost, "/query", `{"question":"  How many students?  "}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get(observability.TraceHeader) == "" {
		t.Fatal("expected trace header on response")
	}

	body := decodeBody(t, rr)
	if body["generated_sql"] != "SELECT COUNT(*) FROM students" {
		t.Fatalf("generated_sql = %v", body["generated_sql"])
	}
	if body["result"] != float64(10) {
		t.Fatalf("result = %v", body["result"])
	}
	if body["execution_time"] != 0.0015 {
		t.Fatalf("execution_time = %v", body["execution_time"])
	}
	if len(service.questions) != 1 || service.questions[0] != "How many students?" {
		t.Fatalf("questions = %#v", service.questions)
	}
}

func TestQueryReturnsRowsAsNestedArrays(t *testing.T) {
	service := &fakeQueryService{answer: pipeline.Answer{
		SQL:    "SELECT id, name FROM courses",
		Result: [][]any{{int64(1), "python"}, {int64(2), "java"}},
	}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Queries: service})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonRequest(http.MethodPost, "/query", `{"question":"list courses"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"result":[[1,"python"],[2,"java"]]`) {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestQueryFailuresReturnDetail(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		deps   Dependencies
		detail string
	}{
		{
			name:   "malformed json",
			body:   `{"question":`,
			deps:   Dependencies{Queries: &fakeQueryService{}},
			detail: "invalid request body",
		},
		{
			name:   "blank question",
			body:   `{"question":"   "}`,
			deps:   Dependencies{Queries: &fakeQueryService{}},
			detail: "question is required",
		},
		{
			name:   "no service",
			body:   `{"question":"count students"}`,
			deps:   Dependencies{},
			detail: "query translation is not configured",
		},
		{
			name:   "rejected sql",
			body:   `{"question":"remove everyone"}`,
			deps:   Dependencies{Queries: &fakeQueryService{err: &pipeline.ValidationError{Reason: sqlguard.ReasonNotSelect}}},
			detail: "only SELECT queries allowed",
		},
		{
			name:   "execution error",
			body:   `{"question":"ages"}`,
			deps:   Dependencies{Queries: &fakeQueryService{err: &pipeline.ExecutionError{Err: errors.New("no such column: age")}}},
			detail: "no such column: age",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(loadConfig(t, nil), tt.deps)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, jsonRequest(http.MethodPost, "/query", tt.body))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rr.Code)
			}
			detail, _ := decodeBody(t, rr)["detail"].(string)
			if !strings.HasPrefix(detail, tt.detail) {
				t.Fatalf("detail = %q, want prefix %q", detail, tt.detail)
			}
		})
	}
}

func TestTranslateReportsVerdict(t *testing.T) {
	service := &fakeQueryService{translation: pipeline.Translation{
		SQL:      "SELECT * FROM teachers",
		Provider: "gemini",
		Model:    "gemini-2.5-flash-lite",
		Verdict:  sqlguard.Verdict{Reason: sqlguard.ReasonUnauthorizedTable},
		Tables:   []string{"teachers"},
	}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Queries: service})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonRequest(http.MethodPost, "/query/translate", `{"question":"list teachers"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["accepted"] != false || body["reason"] != "unauthorized table used" {
		t.Fatalf("body = %#v", body)
	}
	if body["provider"] != "gemini" {
		t.Fatalf("provider = %v", body["provider"])
	}
}

func TestStatsEndpointServesSnapshot(t *testing.T) {
	log := querylog.New()
	log.Append(querylog.Entry{Question: "How many students", SQL: "SELECT COUNT(*) FROM students", ExecutionTime: 2 * time.Second})
	log.Append(querylog.Entry{Question: "students per course", SQL: "SELECT 1", ExecutionTime: time.Second})
	h := NewHandler(loadConfig(t, nil), Dependencies{Queries: &fakeQueryService{stats: log.Snapshot()}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var stats querylog.Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if stats.TotalQueries != 2 || stats.AverageExecutionTime != 1.5 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.SlowestQuery == nil || stats.SlowestQuery.Question != "How many students" {
		t.Fatalf("slowest = %+v", stats.SlowestQuery)
	}
	if len(stats.MostCommonKeywords) == 0 || stats.MostCommonKeywords[0].Keyword != "students" {
		t.Fatalf("keywords = %+v", stats.MostCommonKeywords)
	}
}

func TestStatsEndpointWithoutServiceIsEmpty(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["total_queries"] != float64(0) || body["slowest_query"] != nil {
		t.Fatalf("body = %#v", body)
	}
	keywords, ok := body["most_common_keywords"].([]any)
	if !ok || len(keywords) != 0 {
		t.Fatalf("most_common_keywords = %#v", body["most_common_keywords"])
	}
}

func TestSchemaEndpointListsFixtureTables(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/schema", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	for _, table := range []string{"students", "courses", "enrollments"} {
		if !strings.Contains(rr.Body.String(), `"name":"`+table+`"`) {
			t.Fatalf("schema missing %s: %s", table, rr.Body.String())
		}
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"QUERYPILOT_AUTH_REQUIRED": "true"})
	validator, err := auth.NewStaticAPIKeyValidator("k1:analyst:query_reader,k2:ops:ops_viewer")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Queries:        &fakeQueryService{},
	})

	tests := []struct {
		key    string
		status int
	}{
		{key: "", status: http.StatusUnauthorized},
		{key: "nope", status: http.StatusUnauthorized},
		{key: "k2", status: http.StatusForbidden},
		{key: "k1", status: http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		if tt.key != "" {
			req.Header.Set("X-API-Key", tt.key)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != tt.status {
			t.Fatalf("key %q status = %d, want %d", tt.key, rr.Code, tt.status)
		}
	}

	health := httptest.NewRecorder()
	h.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("health status = %d", health.Code)
	}
}

func TestAuthRequiredWithoutMiddlewareFailsClosed(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"QUERYPILOT_AUTH_REQUIRED": "true"})
	h := NewHandler(cfg, Dependencies{Queries: &fakeQueryService{}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		nil,
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	err := combined(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

func TestPingCheckNilIsSkipped(t *testing.T) {
	if PingCheck(nil) != nil {
		t.Fatal("PingCheck(nil) should be nil")
	}
}

func loadConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()
	if env == nil {
		env = map[string]string{}
	}
	cfg, err := config.Load("querypilot-api", mapLookup(env))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v (body=%s)", err, rr.Body.String())
	}
	return body
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
