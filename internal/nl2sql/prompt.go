package nl2sql

import (
	"fmt"
	"strings"
)

func dialectName(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres":
		return "PostgreSQL"
	case "duckdb":
		return "DuckDB"
	default:
		return "SQLite"
	}
}

func caseInsensitiveRule(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "duckdb":
		return "- Use ILIKE or lower() for string matching."
	default:
		return "- Use COLLATE NOCASE for string matching."
	}
}

// SystemPrompt describes the schema and output rules to the model.
func SystemPrompt(req Request) string {
	name := dialectName(req.Dialect)

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s SQL generator.\n\n", name)
	b.WriteString("Database Schema (all table names are lowercase):\n\n")
	var references []string
	for _, table := range req.Tables {
		fmt.Fprintf(&b, "%s(%s)\n", table.TableName, strings.Join(table.Columns, ", "))
		for _, ref := range table.References {
			references = append(references, table.TableName+"."+ref)
		}
	}
	if len(references) > 0 {
		b.WriteString("\nRelationships:\n")
		for _, ref := range references {
			fmt.Fprintf(&b, "- %s\n", ref)
		}
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Only generate SELECT queries.\n")
	fmt.Fprintf(&b, "- Use %s syntax.\n", name)
	b.WriteString("- ALL table names MUST be lowercase exactly as shown.\n")
	b.WriteString("- ALL column names MUST match schema exactly.\n")
	b.WriteString("- All string comparisons must be case-insensitive.\n")
	b.WriteString(caseInsensitiveRule(req.Dialect) + "\n")
	b.WriteString("- Do NOT explain anything.\n")
	b.WriteString("- Do NOT use markdown.\n")
	b.WriteString("- Return ONLY raw SQL.\n")
	return b.String()
}

func UserPrompt(req Request) string {
	return "User Question: " + strings.TrimSpace(req.Question)
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```SQL")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
