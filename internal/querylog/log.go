// Package querylog keeps the in-process record of answered questions and
// derives usage statistics from it. The log is never persisted and never
// evicts, so it grows for the lifetime of the process.
package querylog

import (
	"encoding/json"
	"sync"
	"time"
)

type Entry struct {
	Question      string
	SQL           string
	ExecutionTime time.Duration
}

type entryJSON struct {
	Question      string  `json:"question"`
	ExecutionTime float64 `json:"execution_time"`
	SQL           string  `json:"sql"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Question:      e.Question,
		ExecutionTime: e.ExecutionTime.Seconds(),
		SQL:           e.SQL,
	})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var decoded entryJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	e.Question = decoded.Question
	e.SQL = decoded.SQL
	e.ExecutionTime = time.Duration(decoded.ExecutionTime * float64(time.Second))
	return nil
}

type Log struct {
	mu      sync.RWMutex
	entries []Entry
}

func New() *Log {
	return &Log{}
}

func (l *Log) Append(entry Entry) {
	if entry.ExecutionTime < 0 {
		entry.ExecutionTime = 0
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Log) Snapshot() Stats {
	return Aggregate(l.Entries())
}
