package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventAll    = "*"
)

const (
	TableHighwayIssues = "highway_issues"
	TableAuth          = "auth" // Session lifecycle events, keyed by user_id
)

// Change is one row-level change notification
type Change struct {
	Table           string         `json:"table"`
	Event           string         `json:"event"`
	Record          map[string]any `json:"new"`
	OldRecord       map[string]any `json:"old,omitempty"`
	CommitTimestamp time.Time      `json:"commit_timestamp"`
}

// NewChange builds a Change from arbitrary records by round-tripping them through JSON,
// so filters see the same field names clients do.
func NewChange(table, event string, record, old any) (Change, error) {
	c := Change{Table: table, Event: event, CommitTimestamp: time.Now().UTC()}
	var err error
	if c.Record, err = toRecord(record); err != nil {
		return Change{}, err
	}
	if old != nil {
		if c.OldRecord, err = toRecord(old); err != nil {
			return Change{}, err
		}
	}
	return c, nil
}

func toRecord(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode change record: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode change record: %w", err)
	}
	return m, nil
}

// Filter selects changes by table, event and an optional column equality
type Filter struct {
	Table  string
	Event  string // INSERT, UPDATE or *
	Column string
	Value  string
}

// ParseFilter builds a Filter. expr is empty or of the form "column=eq.value".
func ParseFilter(table, event, expr string) (Filter, error) {
	if table == "" {
		return Filter{}, fmt.Errorf("filter: table is required")
	}
	if event == "" {
		event = EventAll
	}
	event = strings.ToUpper(event)
	if event != EventInsert && event != EventUpdate && event != EventAll {
		return Filter{}, fmt.Errorf("filter: unsupported event %q", event)
	}

	f := Filter{Table: table, Event: event}
	if expr == "" {
		return f, nil
	}
	column, rest, ok := strings.Cut(expr, "=")
	if !ok || column == "" || !strings.HasPrefix(rest, "eq.") {
		return Filter{}, fmt.Errorf("filter: expected column=eq.value, got %q", expr)
	}
	f.Column = column
	f.Value = strings.TrimPrefix(rest, "eq.")
	return f, nil
}

// Matches reports whether c passes the filter
func (f Filter) Matches(c Change) bool {
	if f.Table != c.Table {
		return false
	}
	if f.Event != EventAll && f.Event != c.Event {
		return false
	}
	if f.Column == "" {
		return true
	}
	v, ok := c.Record[f.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == f.Value
}
