// Package sqlguard decides whether a generated SQL statement may run against
// the fixture schema. It is a textual check, not a parser: comments, quoted
// identifiers, CTE names and expressions such as extract(year from col) are
// not understood.
package sqlguard

import (
	"regexp"
	"strings"
)

type Reason string

const (
	ReasonNotSelect         Reason = "only SELECT queries allowed"
	ReasonForbiddenOp       Reason = "forbidden operation detected"
	ReasonUnauthorizedTable Reason = "unauthorized table used"
)

var forbiddenOperations = []string{"delete", "drop", "update", "insert", "alter"}

// Identifiers are Unicode word runs so a name like "studentsé" is read
// whole instead of stopping at the ASCII prefix.
var tableRefPattern = regexp.MustCompile(`(?:from|join)\s+([\p{L}\p{N}_]+)`)

// Verdict is the zero value when the statement is accepted.
type Verdict struct {
	Reason Reason
}

func (v Verdict) Accepted() bool {
	return v.Reason == ""
}

func (v Verdict) String() string {
	if v.Accepted() {
		return "accepted"
	}
	return string(v.Reason)
}

type Guard struct {
	allowed map[string]struct{}
	tables  []string
}

func New(tables ...string) *Guard {
	g := &Guard{allowed: make(map[string]struct{}, len(tables))}
	for _, table := range tables {
		name := strings.ToLower(strings.TrimSpace(table))
		if name == "" {
			continue
		}
		if _, ok := g.allowed[name]; ok {
			continue
		}
		g.allowed[name] = struct{}{}
		g.tables = append(g.tables, name)
	}
	return g
}

func Default() *Guard {
	return New("students", "courses", "enrollments")
}

func (g *Guard) Tables() []string {
	out := make([]string, len(g.tables))
	copy(out, g.tables)
	return out
}

func (g *Guard) Validate(candidate string) Verdict {
	normalized := strings.ToLower(strings.TrimSpace(candidate))
	if !strings.HasPrefix(normalized, "select") {
		return Verdict{Reason: ReasonNotSelect}
	}
	for _, op := range forbiddenOperations {
		if strings.Contains(normalized, op) {
			return Verdict{Reason: ReasonForbiddenOp}
		}
	}
	for _, table := range referenced(normalized) {
		if _, ok := g.allowed[table]; !ok {
			return Verdict{Reason: ReasonUnauthorizedTable}
		}
	}
	return Verdict{}
}

// Referenced returns the lower-cased identifiers that follow FROM or JOIN,
// in order of appearance and without duplicates.
func Referenced(candidate string) []string {
	return referenced(strings.ToLower(strings.TrimSpace(candidate)))
}

func referenced(normalized string) []string {
	matches := tableRefPattern.FindAllStringSubmatch(normalized, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		name := match[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
