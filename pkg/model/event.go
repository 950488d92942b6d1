package model

import "time"

// Event represents a normalized calendar event. End is never before Start.
type Event struct {
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location string    `json:"location,omitempty"`
	Calendar string    `json:"calendar"`
	AllDay   bool      `json:"all_day"`
	Source   string    `json:"source"` // "google" or "icalpal"
}

func (Event) entity() {}

// Span returns the interval the event occupies.
func (e Event) Span() Interval {
	return Interval{Start: e.Start, End: e.End}
}

// Duration returns the length of the event. Point events have zero duration.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// FreeSlot is a gap in the calendar, always inside the queried day's bounds.
type FreeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s FreeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Conflict pairs a deep-work window with the events overlapping it.
// Overlap is the intersection of the window and one coalesced busy interval.
type Conflict struct {
	Window  Interval `json:"window"`
	Overlap Interval `json:"overlap"`
	Events  []Event  `json:"events"`
}
