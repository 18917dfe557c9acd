package asker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/querypilot/querypilot/internal/observability"
)

type Service struct {
	cfg       Config
	log       *slog.Logger
	http      *http.Client
	generator *Generator
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	GeneratedSQL  string  `json:"generated_sql"`
	Result        any     `json:"result"`
	ExecutionTime float64 `json:"execution_time"`
}

// Rejection is a 4xx answer from the API; the loop logs it and keeps going.
type Rejection struct {
	Status int
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("query request status %d: %s", r.Status, r.Detail)
}

func NewService(cfg Config, logger *slog.Logger, client *http.Client) (*Service, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Service{
		cfg:       cfg,
		log:       logger,
		http:      client,
		generator: NewGenerator(cfg.Seed),
	}, nil
}

// Run asks one question per interval until ctx ends or MaxQuestions is reached.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	asked := 0
	for {
		question := s.generator.NextQuestion()
		if err := s.askOnce(ctx, question); err != nil {
			var rejection *Rejection
			if errors.As(err, &rejection) {
				s.log.Warn("demo question rejected",
					slog.Int64("sequence", question.Sequence),
					slog.String("question", question.Text),
					slog.Int("status", rejection.Status),
					slog.String("detail", rejection.Detail),
				)
			} else {
				s.log.Error("failed to ask demo question", slog.Any("error", err))
			}
		}
		asked++
		if s.cfg.MaxQuestions > 0 && asked >= s.cfg.MaxQuestions {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) askOnce(ctx context.Context, question Question) error {
	raw, err := json.Marshal(queryRequest{Question: question.Text})
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIBaseURL+"/query", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(observability.TraceHeader, fmt.Sprintf("demo-asker-%d-%06d", s.cfg.Seed, question.Sequence))
	if s.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("query request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var payload struct {
			Detail string `json:"detail"`
		}
		detail := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &payload) == nil && payload.Detail != "" {
			detail = payload.Detail
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("query request status %d: %s", resp.StatusCode, detail)
		}
		return &Rejection{Status: resp.StatusCode, Detail: detail}
	}

	var answer queryResponse
	if err := json.Unmarshal(body, &answer); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	s.log.Info("asked demo question",
		slog.Int64("sequence", question.Sequence),
		slog.String("question", question.Text),
		slog.String("sql", answer.GeneratedSQL),
		slog.Float64("execution_time", answer.ExecutionTime),
	)
	return nil
}
