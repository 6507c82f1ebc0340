package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"upscaler/internal/logging"
)

// Entry is one record from the log file.
type Entry struct {
	Time      time.Time
	Level     string
	Message   string
	Component string
	JobID     string
	Fields    map[string]any
	// Raw holds lines that were not valid JSON.
	Raw string
}

var reservedKeys = map[string]struct{}{
	"ts": {}, "level": {}, "msg": {},
	logging.FieldComponent: {}, logging.FieldJobID: {},
}

// ParseEntry decodes one log line. Lines that are not JSON objects come back
// as an Entry with only Raw set.
func ParseEntry(line string) Entry {
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return Entry{Raw: line}
	}
	entry := Entry{Fields: map[string]any{}}
	for key, value := range record {
		if _, reserved := reservedKeys[key]; reserved {
			continue
		}
		entry.Fields[key] = value
	}
	entry.Level, _ = record["level"].(string)
	entry.Message, _ = record["msg"].(string)
	entry.Component, _ = record[logging.FieldComponent].(string)
	entry.JobID, _ = record[logging.FieldJobID].(string)
	if ts, ok := record["ts"].(string); ok {
		entry.Time, _ = time.Parse(time.RFC3339, ts)
	}
	return entry
}

// Filter selects entries. Zero values match everything.
type Filter struct {
	JobID    string
	MinLevel string
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Match reports whether e passes the filter. Raw lines only pass an empty filter.
func (f Filter) Match(e Entry) bool {
	if f.JobID == "" && f.MinLevel == "" {
		return true
	}
	if e.Raw != "" {
		return false
	}
	if f.JobID != "" && !strings.HasPrefix(e.JobID, f.JobID) {
		return false
	}
	if f.MinLevel != "" {
		min, known := levelRank[strings.ToLower(f.MinLevel)]
		if known && levelRank[e.Level] < min {
			return false
		}
	}
	return true
}

// Format renders e as one human-readable line in local time.
func Format(e Entry) string {
	if e.Raw != "" {
		return e.Raw
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s ", strings.ToUpper(e.Level))
	if e.Component != "" {
		fmt.Fprintf(&b, "[%s] ", e.Component)
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, e.Fields[key])
	}
	return b.String()
}
