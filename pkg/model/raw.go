package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind says which canonical entity a raw record normalizes into.
type Kind string

const (
	KindTask  Kind = "task"
	KindEvent Kind = "event"
)

// Entity is either a Task or an Event.
type Entity interface {
	entity()
}

// RawRecord is a source-shaped record as returned by an adapter.
// Field values are loosely typed: string, number, bool or nil.
//
// Task fields: id, title, due, priority, project, kind.
// Event fields: title, start, end, location, calendar, all_day.
type RawRecord struct {
	Source string         `json:"source"`
	Kind   Kind           `json:"kind"`
	Fields map[string]any `json:"fields"`
}

// NewRawRecord returns a record with an initialized field map.
func NewRawRecord(source string, kind Kind) RawRecord {
	return RawRecord{Source: source, Kind: kind, Fields: make(map[string]any)}
}

// Set stores v under key, skipping empty strings so that absent and blank
// values look the same to the normalizer.
func (r RawRecord) Set(key string, v any) {
	if s, ok := v.(string); ok && s == "" {
		return
	}
	if v == nil {
		return
	}
	r.Fields[key] = v
}

// Has reports whether key is present with a non-nil value.
func (r RawRecord) Has(key string) bool {
	v, ok := r.Fields[key]
	return ok && v != nil
}

// String returns the field as trimmed text. Numbers and bools are formatted.
func (r RawRecord) String(key string) string {
	switch v := r.Fields[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Number returns the field as an integer. ok is false if the field is
// missing, not numeric or NaN. Values beyond the int range saturate.
func (r RawRecord) Number(key string) (int, bool) {
	switch v := r.Fields[key].(type) {
	case float64:
		return truncate(v)
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return truncate(n)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		return truncate(n)
	default:
		return 0, false
	}
}

func truncate(f float64) (int, bool) {
	switch {
	case math.IsNaN(f):
		return 0, false
	case f >= math.MaxInt:
		return math.MaxInt, true
	case f <= math.MinInt:
		return math.MinInt, true
	}
	return int(f), true
}

// Bool interprets true, 1, "1", "true" and "yes" as true.
func (r RawRecord) Bool(key string) bool {
	switch v := r.Fields[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y":
			return true
		}
	}
	return false
}
