// Package normalize maps source-shaped raw records onto the canonical Task and
// Event types. Every function here is pure.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/harrisonrobin/friday/pkg/model"
)

// ErrMalformedRecord is matched by every normalization failure.
var ErrMalformedRecord = errors.New("malformed record")

// MalformedRecordError describes why a single record was rejected.
type MalformedRecordError struct {
	Source string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record: %s", e.Source, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

func malformed(rec model.RawRecord, format string, args ...any) error {
	return &MalformedRecordError{Source: rec.Source, Reason: fmt.Sprintf(format, args...)}
}

// Normalizer interprets wall-clock times without an offset in Location.
type Normalizer struct {
	Location *time.Location
}

func New(loc *time.Location) Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return Normalizer{Location: loc}
}

func (n Normalizer) loc() *time.Location {
	if n.Location == nil {
		return time.Local
	}
	return n.Location
}

// Normalize converts one raw record into a Task or an Event.
func (n Normalizer) Normalize(rec model.RawRecord) (model.Entity, error) {
	switch rec.Kind {
	case model.KindTask:
		return n.Task(rec)
	case model.KindEvent:
		return n.Event(rec)
	default:
		return nil, malformed(rec, "unknown record kind %q", rec.Kind)
	}
}

// Task normalizes a task record. The title is mandatory; due date, priority
// and project fall back to defaults.
func (n Normalizer) Task(rec model.RawRecord) (model.Task, error) {
	title := rec.String("title")
	if title == "" {
		return model.Task{}, malformed(rec, "missing title")
	}

	t := model.Task{
		ID:       rec.String("id"),
		Title:    title,
		Priority: n.priority(rec),
		Project:  rec.String("project"),
		Kind:     model.KindText,
		Source:   rec.Source,
	}
	if t.Project == "" {
		t.Project = model.DefaultProject
	}
	if strings.EqualFold(rec.String("kind"), string(model.KindNote)) {
		t.Kind = model.KindNote
	}

	if due := rec.String("due"); due != "" {
		d, err := n.parseDate(due)
		if err != nil {
			return model.Task{}, malformed(rec, "due %q: %v", due, err)
		}
		t.Due = &d
	}
	return t, nil
}

// priority maps numeric and letter priorities onto 0-5.
// Letters follow Taskwarrior (H/M/L) and Org-mode ([#A]/[#B]/[#C]).
func (n Normalizer) priority(rec model.RawRecord) int {
	if p, ok := rec.Number("priority"); ok {
		return model.ClampPriority(p)
	}
	switch strings.ToUpper(rec.String("priority")) {
	case "H", "A":
		return 5
	case "M", "B":
		return 3
	case "L", "C":
		return 1
	}
	return 0
}

// Event normalizes an event record. Title and start are mandatory. A missing
// end makes a point event; an end before the start is zeroed to the start.
// All-day events without a span cover the whole local day.
func (n Normalizer) Event(rec model.RawRecord) (model.Event, error) {
	title := rec.String("title")
	if title == "" {
		return model.Event{}, malformed(rec, "missing title")
	}
	rawStart := rec.String("start")
	if rawStart == "" {
		return model.Event{}, malformed(rec, "missing start")
	}

	allDay := rec.Bool("all_day")
	start, dateOnly, err := n.parseTime(rawStart)
	if err != nil {
		return model.Event{}, malformed(rec, "start %q: %v", rawStart, err)
	}
	if dateOnly {
		allDay = true
	}

	end := start
	if rawEnd := rec.String("end"); rawEnd != "" {
		end, _, err = n.parseTime(rawEnd)
		if err != nil {
			return model.Event{}, malformed(rec, "end %q: %v", rawEnd, err)
		}
	}
	if end.Before(start) {
		end = start
	}
	if allDay && !end.After(start) {
		d := civil.DateOf(start.In(n.loc()))
		start = d.In(n.loc())
		end = d.AddDays(1).In(n.loc())
	}

	calendar := rec.String("calendar")
	if calendar == "" {
		calendar = rec.Source
	}
	return model.Event{
		Title:    title,
		Start:    start,
		End:      end,
		Location: rec.String("location"),
		Calendar: calendar,
		AllDay:   allDay,
		Source:   rec.Source,
	}, nil
}

// Batch normalizes records, dropping malformed ones. Each dropped record is
// reported as one MalformedRecordError.
func (n Normalizer) Batch(recs []model.RawRecord) (tasks []model.Task, events []model.Event, dropped []error) {
	for _, rec := range recs {
		ent, err := n.Normalize(rec)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		switch v := ent.(type) {
		case model.Task:
			tasks = append(tasks, v)
		case model.Event:
			events = append(events, v)
		}
	}
	return tasks, events, dropped
}
