package querypilotctl

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

type askResponse struct {
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

type logEntry struct {
	Question      string  `json:"question"`
	ExecutionTime float64 `json:"execution_time"`
	SQL           string  `json:"sql"`
}

type statsResponse struct {
	TotalQueries         int       `json:"total_queries"`
	AverageExecutionTime float64   `json:"average_execution_time"`
	SlowestQuery         *logEntry `json:"slowest_query"`
	MostCommonKeywords   [][2]any  `json:"most_common_keywords"`
}

type schemaResponse struct {
	Tables []struct {
		Name    string `json:"name"`
		Columns []struct {
			Name       string `json:"name"`
			Type       string `json:"type"`
			References string `json:"references,omitempty"`
		} `json:"columns"`
	} `json:"tables"`
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderKeyValues(w io.Writer, payload map[string]any) {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	t := newTable(w)
	t.AppendHeader(table.Row{"key", "value"})
	for _, key := range keys {
		t.AppendRow(table.Row{key, formatValue(payload[key])})
	}
	t.Render()
}

func renderAnswer(w io.Writer, answer askResponse) {
	_, _ = fmt.Fprintf(w, "SQL: %s\n", answer.GeneratedSQL)
	rows, ok := answer.Result.([]any)
	if !ok {
		_, _ = fmt.Fprintf(w, "Result: %s\n", formatValue(answer.Result))
	} else if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
	} else {
		t := newTable(w)
		for _, row := range rows {
			values, isRow := row.([]any)
			if !isRow {
				values = []any{row}
			}
			out := make(table.Row, len(values))
			for i, value := range values {
				out[i] = formatValue(value)
			}
			t.AppendRow(out)
		}
		t.Render()
		_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	}
	_, _ = fmt.Fprintf(w, "Execution time: %ss\n", strconv.FormatFloat(answer.ExecutionTime, 'f', 4, 64))
}

func renderTranslation(w io.Writer, translation translateResponse) {
	t := newTable(w)
	t.AppendHeader(table.Row{"field", "value"})
	t.AppendRow(table.Row{"sql", translation.SQL})
	t.AppendRow(table.Row{"provider", translation.Provider})
	t.AppendRow(table.Row{"model", translation.Model})
	verdict := "accepted"
	if !translation.Accepted {
		verdict = "rejected: " + translation.Reason
	}
	t.AppendRow(table.Row{"verdict", verdict})
	t.AppendRow(table.Row{"tables", strings.Join(translation.Tables, ", ")})
	t.Render()
}

func renderStats(w io.Writer, stats statsResponse) {
	t := newTable(w)
	t.AppendHeader(table.Row{"metric", "value"})
	t.AppendRow(table.Row{"total queries", stats.TotalQueries})
	t.AppendRow(table.Row{"average execution time", strconv.FormatFloat(stats.AverageExecutionTime, 'f', 4, 64) + "s"})
	if stats.SlowestQuery != nil {
		t.AppendRow(table.Row{"slowest question", stats.SlowestQuery.Question})
		t.AppendRow(table.Row{"slowest sql", stats.SlowestQuery.SQL})
		t.AppendRow(table.Row{"slowest execution time", strconv.FormatFloat(stats.SlowestQuery.ExecutionTime, 'f', 4, 64) + "s"})
	}
	t.Render()

	if len(stats.MostCommonKeywords) == 0 {
		return
	}
	keywords := newTable(w)
	keywords.AppendHeader(table.Row{"keyword", "count"})
	for _, pair := range stats.MostCommonKeywords {
		keywords.AppendRow(table.Row{formatValue(pair[0]), formatValue(pair[1])})
	}
	keywords.Render()
}

func renderSchema(w io.Writer, schema schemaResponse) {
	t := newTable(w)
	t.AppendHeader(table.Row{"table", "column", "type", "references"})
	for _, tbl := range schema.Tables {
		for _, column := range tbl.Columns {
			t.AppendRow(table.Row{tbl.Name, column.Name, column.Type, column.References})
		}
	}
	t.Render()
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "NULL"
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(encoded)
	}
}
