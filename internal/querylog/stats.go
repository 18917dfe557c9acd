package querylog

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

const topKeywords = 5

var (
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	stopwords   = map[string]struct{}{
		"how":  {},
		"many": {},
		"in":   {},
		"the":  {},
		"is":   {},
		"are":  {},
		"of":   {},
		"a":    {},
	}
)

type Stats struct {
	TotalQueries         int            `json:"total_queries"`
	AverageExecutionTime float64        `json:"average_execution_time"`
	SlowestQuery         *Entry         `json:"slowest_query"`
	MostCommonKeywords   []KeywordCount `json:"most_common_keywords"`
}

func (s Stats) MarshalJSON() ([]byte, error) {
	type plain Stats
	out := plain(s)
	if out.MostCommonKeywords == nil {
		out.MostCommonKeywords = []KeywordCount{}
	}
	return json.Marshal(out)
}

// KeywordCount encodes as a two-element array: ["students", 3].
type KeywordCount struct {
	Keyword string
	Count   int
}

func (k KeywordCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{k.Keyword, k.Count})
}

func (k *KeywordCount) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("keyword count must have 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &k.Keyword); err != nil {
		return fmt.Errorf("decode keyword: %w", err)
	}
	if err := json.Unmarshal(pair[1], &k.Count); err != nil {
		return fmt.Errorf("decode keyword count: %w", err)
	}
	return nil
}

func Aggregate(entries []Entry) Stats {
	stats := Stats{
		TotalQueries:       len(entries),
		MostCommonKeywords: []KeywordCount{},
	}
	if len(entries) == 0 {
		return stats
	}

	var totalSeconds float64
	slowest := 0
	for i, entry := range entries {
		totalSeconds += entry.ExecutionTime.Seconds()
		if entry.ExecutionTime > entries[slowest].ExecutionTime {
			slowest = i
		}
	}
	stats.AverageExecutionTime = round4(totalSeconds / float64(len(entries)))
	slowestEntry := entries[slowest]
	stats.SlowestQuery = &slowestEntry
	stats.MostCommonKeywords = keywordFrequencies(entries, topKeywords)
	return stats
}

func Keywords(question string) []string {
	tokens := wordPattern.FindAllString(question, -1)
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.ToLower(token)
		if _, stop := stopwords[token]; stop {
			continue
		}
		out = append(out, token)
	}
	return out
}

func keywordFrequencies(entries []Entry, limit int) []KeywordCount {
	counts := map[string]int{}
	order := make([]string, 0)
	for _, entry := range entries {
		for _, keyword := range Keywords(entry.Question) {
			if _, seen := counts[keyword]; !seen {
				order = append(order, keyword)
			}
			counts[keyword]++
		}
	}

	ranked := make([]KeywordCount, 0, len(order))
	for _, keyword := range order {
		ranked = append(ranked, KeywordCount{Keyword: keyword, Count: counts[keyword]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func round4(value float64) float64 {
	return math.Round(value*10000) / 10000
}
