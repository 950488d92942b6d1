// Package aggregate merges normalized records from several sources into one
// deterministic, de-duplicated collection per entity type.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/harrisonrobin/friday/pkg/model"
)

// MergeTasks removes duplicate (source, id) pairs, keeping the first, and
// orders by priority descending, due date ascending (undated last), id,
// source and title. Identifiers are source-scoped so tasks are never matched
// across sources.
func MergeTasks(tasks []model.Task) []model.Task {
	type key struct{ source, id string }
	seen := make(map[key]bool, len(tasks))
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID != "" {
			k := key{t.Source, t.ID}
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return taskLess(out[i], out[j])
	})
	return out
}

func taskLess(a, b model.Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	switch {
	case a.Due != nil && b.Due == nil:
		return true
	case a.Due == nil && b.Due != nil:
		return false
	case a.Due != nil && b.Due != nil && *a.Due != *b.Due:
		return a.Due.Before(*b.Due)
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.Title < b.Title
}

// Merger merges events using an ordered source precedence list.
type Merger struct {
	// Precedence lists source tags from most to least trusted. Sources not
	// listed rank after every listed one, alphabetically.
	Precedence []string
}

func (m Merger) rank(source string) int {
	for i, s := range m.Precedence {
		if strings.EqualFold(s, source) {
			return i
		}
	}
	return len(m.Precedence)
}

// preferred reports whether a should be kept over its duplicate b.
func (m Merger) preferred(a, b model.Event) bool {
	ra, rb := m.rank(a.Source), m.rank(b.Source)
	if ra != rb {
		return ra < rb
	}
	return a.Source < b.Source
}

type eventKey struct {
	start, end int64
	title      string
}

func keyOf(e model.Event) eventKey {
	return eventKey{
		start: e.Start.UnixNano(),
		end:   e.End.UnixNano(),
		title: NormalizeTitle(e.Title),
	}
}

// NormalizeTitle case-folds and trims a title for duplicate detection.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// MergeEvents drops events sharing start, end and normalized title with a
// higher-precedence event, then orders by start, source and title.
func (m Merger) MergeEvents(events []model.Event) []model.Event {
	best := make(map[eventKey]int, len(events))
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		k := keyOf(e)
		if i, ok := best[k]; ok {
			if m.preferred(e, out[i]) {
				out[i] = e
			}
			continue
		}
		best[k] = len(out)
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return eventLess(out[i], out[j])
	})
	return out
}

func eventLess(a, b model.Event) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.End.Before(b.End)
}

// EventsOn returns events overlapping [from, to). Point events count when
// they start inside the window.
func EventsOn(events []model.Event, from, to time.Time) []model.Event {
	var out []model.Event
	window := model.Interval{Start: from, End: to}
	for _, e := range events {
		if e.Span().Overlaps(window) {
			out = append(out, e)
			continue
		}
		if e.Start.Equal(e.End) && !e.Start.Before(from) && e.Start.Before(to) {
			out = append(out, e)
		}
	}
	return out
}
