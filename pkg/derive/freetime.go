// Package derive computes facts from normalized tasks and events: free time,
// deep-work conflicts, Eisenhower quadrants and quick counts. Nothing in this
// package returns an error; empty input degrades to "whole day free".
package derive

import (
	"sort"
	"time"

	"github.com/harrisonrobin/friday/pkg/model"
)

// DefaultMinSlot is the shortest gap still reported as free time.
const DefaultMinSlot = 15 * time.Minute

// block is a maximal busy interval and the events that make it up.
type block struct {
	span   model.Interval
	events []model.Event
}

// coalesce merges overlapping or touching event spans inside bounds into
// maximal busy blocks. Point events occupy no time and are skipped.
func coalesce(events []model.Event, bounds model.Interval) []block {
	type clipped struct {
		span model.Interval
		ev   model.Event
	}
	var spans []clipped
	for _, e := range events {
		iv, ok := e.Span().Intersect(bounds)
		if !ok || iv.Empty() {
			continue
		}
		spans = append(spans, clipped{iv, e})
	}
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].span.Start.Before(spans[j].span.Start)
	})

	var blocks []block
	for _, s := range spans {
		if n := len(blocks); n > 0 && !s.span.Start.After(blocks[n-1].span.End) {
			cur := &blocks[n-1]
			if s.span.End.After(cur.span.End) {
				cur.span.End = s.span.End
			}
			cur.events = append(cur.events, s.ev)
			continue
		}
		blocks = append(blocks, block{span: s.span, events: []model.Event{s.ev}})
	}
	return blocks
}

// Coalesce returns the maximal busy intervals of events, clipped to bounds.
func Coalesce(events []model.Event, bounds model.Interval) []model.Interval {
	blocks := coalesce(events, bounds)
	out := make([]model.Interval, len(blocks))
	for i, b := range blocks {
		out[i] = b.span
	}
	return out
}

// HasAllDay reports whether an all-day event touches bounds.
func HasAllDay(events []model.Event, bounds model.Interval) bool {
	for _, e := range events {
		if e.AllDay && e.Span().Overlaps(bounds) {
			return true
		}
	}
	return false
}

// FreeSlots returns the gaps between busy intervals inside bounds, dropping
// gaps shorter than minSlot. An all-day event blocks the whole day.
func FreeSlots(events []model.Event, bounds model.Interval, minSlot time.Duration) []model.FreeSlot {
	if bounds.Empty() || HasAllDay(events, bounds) {
		return nil
	}

	var slots []model.FreeSlot
	add := func(from, to time.Time) {
		if to.Sub(from) > 0 && to.Sub(from) >= minSlot {
			slots = append(slots, model.FreeSlot{Start: from, End: to})
		}
	}

	cursor := bounds.Start
	for _, busy := range Coalesce(events, bounds) {
		if busy.Start.After(cursor) {
			add(cursor, busy.Start)
		}
		if busy.End.After(cursor) {
			cursor = busy.End
		}
	}
	add(cursor, bounds.End)
	return slots
}

// Conflicts tests every deep-work window against every busy interval inside
// bounds. Each overlap yields one Conflict carrying the intersection and the
// events forming that busy interval. Windows are reported in input order.
func Conflicts(events []model.Event, bounds model.Interval, windows []model.Interval) []model.Conflict {
	blocks := coalesce(events, bounds)
	var out []model.Conflict
	for _, w := range windows {
		for _, b := range blocks {
			overlap, ok := w.Intersect(b.span)
			if !ok {
				continue
			}
			out = append(out, model.Conflict{
				Window:  w,
				Overlap: overlap,
				Events:  append([]model.Event(nil), b.events...),
			})
		}
	}
	return out
}
