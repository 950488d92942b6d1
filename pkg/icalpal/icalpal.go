// Package icalpal reads the local macOS calendar store through the icalPal
// command line tool.
package icalpal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/harrisonrobin/friday/pkg/model"
	"github.com/harrisonrobin/friday/pkg/source"
)

const SourceName = "icalpal"

// Event is the subset of icalPal's JSON output friday reads.
type Event struct {
	Title    string  `json:"title"`
	Calendar string  `json:"calendar"`
	Location string  `json:"location"`
	Address  string  `json:"address"`
	AllDay   int     `json:"all_day"`
	SCTime   string  `json:"sctime"`
	ECTime   string  `json:"ectime"`
	SSeconds float64 `json:"sseconds"`
	ESeconds float64 `json:"eseconds"`
}

type Adapter struct {
	Command string
	Include []string
	Exclude []string
	run     source.Runner
}

func NewAdapter(command string, include, exclude []string) *Adapter {
	if command == "" {
		command = "icalPal"
	}
	return &Adapter{Command: command, Include: include, Exclude: exclude, run: source.Exec}
}

func (a *Adapter) Name() string     { return SourceName }
func (a *Adapter) Kind() model.Kind { return model.KindEvent }

// Args builds the icalPal invocation for r.
func Args(r source.Range) []string {
	days := len(r.Days())
	return []string{"events", "--from", r.From.String(), "--days", strconv.Itoa(days), "-o", "json"}
}

func (a *Adapter) Fetch(ctx context.Context, r source.Range) ([]model.RawRecord, error) {
	out, err := a.run(ctx, a.Command, Args(r)...)
	if err != nil {
		return nil, source.Unavailable(SourceName, err)
	}
	events, err := Parse(out)
	if err != nil {
		return nil, source.Unavailable(SourceName, err)
	}

	var recs []model.RawRecord
	for _, e := range events {
		if !a.wants(e.Calendar) {
			continue
		}
		if rec, ok := Record(e); ok {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (a *Adapter) wants(calendar string) bool {
	if len(a.Include) > 0 && !slices.Contains(a.Include, calendar) {
		return false
	}
	return !slices.Contains(a.Exclude, calendar)
}

// Parse decodes icalPal's JSON array. Empty output means no events.
func Parse(b []byte) ([]Event, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	var events []Event
	if err := json.Unmarshal(b, &events); err != nil {
		return nil, fmt.Errorf("failed to parse icalPal output: %w", err)
	}
	return events, nil
}

// Record maps an icalPal event onto a raw event record. The sctime/ectime
// strings are preferred because they carry the right date for recurring
// events; epoch seconds are the fallback.
func Record(e Event) (model.RawRecord, bool) {
	start := clock(e.SCTime, e.SSeconds)
	if start == "" {
		return model.RawRecord{}, false
	}
	rec := model.NewRawRecord(SourceName, model.KindEvent)
	title := e.Title
	if title == "" {
		title = "Untitled"
	}
	rec.Set("title", title)
	rec.Set("start", start)
	rec.Set("end", clock(e.ECTime, e.ESeconds))
	rec.Set("calendar", e.Calendar)
	location := e.Location
	if location == "" {
		location = e.Address
	}
	rec.Set("location", location)
	if e.AllDay == 1 {
		rec.Set("all_day", true)
	}
	return rec, true
}

// clock returns the local wall-clock prefix of ctime ("2006-01-02 15:04:05"),
// or the epoch seconds as RFC 3339.
func clock(ctime string, seconds float64) string {
	const wall = len("2006-01-02 15:04:05")
	if len(ctime) >= wall {
		return ctime[:wall]
	}
	if seconds > 0 {
		return time.Unix(int64(seconds), 0).UTC().Format(time.RFC3339)
	}
	return ""
}
