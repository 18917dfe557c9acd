package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.5-flash-lite"
)

type GeminiConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type GeminiTranslator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

func NewGeminiTranslator(cfg GeminiConfig) (*GeminiTranslator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	model := strings.TrimPrefix(strings.TrimSpace(cfg.Model), "models/")
	if model == "" {
		model = defaultGeminiModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GeminiTranslator{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

func (t *GeminiTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(map[string]any{
		"systemInstruction": geminiContent{Parts: []geminiPart{{Text: SystemPrompt(req)}}},
		"contents": []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: UserPrompt(req)}}},
		},
		"generationConfig": map[string]any{"temperature": t.temperature},
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal generate payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", t.baseURL, url.PathEscape(t.model), url.QueryEscape(t.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = redactKey(urlErr.URL, t.apiKey)
		}
		return Result{}, fmt.Errorf("request generate content: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read generate response body: %w", err)
	}

	var parsed struct {
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if resp.StatusCode >= 400 {
		if json.Unmarshal(rawRespBody, &parsed) == nil && parsed.Error != nil {
			return Result{}, fmt.Errorf("gemini API error status=%d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return Result{}, fmt.Errorf("gemini API error status=%d body=%s", resp.StatusCode, string(rawRespBody))
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode generate response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return Result{}, fmt.Errorf("empty generate candidates")
	}

	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	sql := stripMarkdownSQL(text.String())
	if sql == "" {
		return Result{}, fmt.Errorf("model returned empty SQL")
	}
	return Result{
		SQL:      sql,
		Provider: "gemini",
		Model:    t.model,
	}, nil
}

// The key travels in the query string, so transport errors echo it.
func redactKey(rawURL, key string) string {
	if key == "" {
		return rawURL
	}
	rawURL = strings.ReplaceAll(rawURL, url.QueryEscape(key), "REDACTED")
	return strings.ReplaceAll(rawURL, key, "REDACTED")
}
