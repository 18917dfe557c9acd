package querypilotctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// httpError marks a failed API call; everything else cobra reports is a usage error.
type httpError struct {
	Status int
	Detail string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Detail)
}

type requestError struct {
	err error
}

func (e *requestError) Error() string {
	return "request failed: " + e.err.Error()
}

func (e *requestError) Unwrap() error {
	return e.err
}

// Run returns 0 on success, 1 when the API call fails and 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	root := newRootCmd(defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		var apiErr *httpError
		var reqErr *requestError
		switch {
		case errors.As(err, &apiErr), errors.As(err, &reqErr):
			_, _ = fmt.Fprintln(stderr, err.Error())
			return 1
		default:
			_, _ = fmt.Fprintf(stderr, "Error: %v\n\n", err)
			_, _ = fmt.Fprint(stderr, root.UsageString())
			return 2
		}
	}
	return 0
}

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newRootCmd(defaults Options) *cobra.Command {
	var (
		baseURL string
		apiKey  string
		timeout time.Duration
		output  string
	)
	api := &client{}

	root := &cobra.Command{
		Use:           "querypilotctl",
		Short:         "Command-line client for the QueryPilot API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			api.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
			api.apiKey = strings.TrimSpace(apiKey)
			api.http = defaults.HTTPClient
			if api.http == nil {
				api.http = &http.Client{Timeout: timeout}
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return errors.New("a command is required")
		},
	}
	root.PersistentFlags().StringVar(&baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "QueryPilot API base URL")
	root.PersistentFlags().StringVar(&apiKey, "api-key", defaults.APIKey, "API key for authenticated requests")
	root.PersistentFlags().DurationVar(&timeout, "timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 10s)")
	root.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")

	root.AddCommand(
		newStatusCmd("health", "Check service liveness", "/health", api, &output),
		newStatusCmd("ready", "Check store readiness", "/ready", api, &output),
		newAskCmd(api, &output),
		newTranslateCmd(api, &output),
		newStatsCmd(api, &output),
		newSchemaCmd(api, &output),
	)
	return root
}

func newStatusCmd(name, short, path string, api *client, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var payload map[string]any
			if err := api.do(cmd.Context(), http.MethodGet, path, nil, &payload); err != nil {
				return err
			}
			if *output == "json" {
				return printJSON(cmd.OutOrStdout(), payload)
			}
			renderKeyValues(cmd.OutOrStdout(), payload)
			return nil
		},
	}
}

func newAskCmd(api *client, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Translate a question to SQL, run it and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var answer askResponse
			body := map[string]string{"question": strings.Join(args, " ")}
			if err := api.do(cmd.Context(), http.MethodPost, "/query", body, &answer); err != nil {
				return err
			}
			if *output == "json" {
				return printJSON(cmd.OutOrStdout(), answer)
			}
			renderAnswer(cmd.OutOrStdout(), answer)
			return nil
		},
	}
}

func newTranslateCmd(api *client, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "translate <question>",
		Short: "Show the SQL a question translates to without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var translation translateResponse
			body := map[string]string{"question": strings.Join(args, " ")}
			if err := api.do(cmd.Context(), http.MethodPost, "/query/translate", body, &translation); err != nil {
				return err
			}
			if *output == "json" {
				return printJSON(cmd.OutOrStdout(), translation)
			}
			renderTranslation(cmd.OutOrStdout(), translation)
			return nil
		},
	}
}

func newStatsCmd(api *client, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show query log statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var stats statsResponse
			if err := api.do(cmd.Context(), http.MethodGet, "/stats", nil, &stats); err != nil {
				return err
			}
			if *output == "json" {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			renderStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func newSchemaCmd(api *client, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "List the tables and columns questions can reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var schema schemaResponse
			if err := api.do(cmd.Context(), http.MethodGet, "/schema", nil, &schema); err != nil {
				return err
			}
			if *output == "json" {
				return printJSON(cmd.OutOrStdout(), schema)
			}
			renderSchema(cmd.OutOrStdout(), schema)
			return nil
		},
	}
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &requestError{err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &requestError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &requestError{err: err}
	}
	if resp.StatusCode >= 400 {
		return &httpError{Status: resp.StatusCode, Detail: errorDetail(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &requestError{err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func errorDetail(raw []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(raw))
}

func validateOutputFormat(output string) error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
