// Package bundle builds the context bundle handed to prompt templates.
// Serialize only copies; every sequence keeps the order it was given in.
package bundle

import (
	"slices"
	"time"

	"cloud.google.com/go/civil"
	"github.com/harrisonrobin/friday/pkg/derive"
	"github.com/harrisonrobin/friday/pkg/model"
)

type Period string

const (
	Day  Period = "day"
	Week Period = "week"
	// Review looks back over the journal and ahead at the next seven days.
	Review Period = "review"
)

// JournalEntry is one day of the journal quoted into a review.
type JournalEntry struct {
	Date    civil.Date `json:"date"`
	Content string     `json:"content"`
}

// DaySlots are the free slots of one day of the period.
type DaySlots struct {
	Date  civil.Date       `json:"date"`
	Slots []model.FreeSlot `json:"slots"`
}

// StaleSource is a source served from cache after a failed fetch.
type StaleSource struct {
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// UnavailableSource is a source with neither fresh nor cached data.
type UnavailableSource struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Input is everything the pipeline produced for one run.
type Input struct {
	RunID    string
	Period   Period
	Start    civil.Date
	End      civil.Date
	AsOf     time.Time
	Location *time.Location
	WorkDay  derive.Window

	Tasks    []model.Task // actionable, merged order
	Work     []model.Task
	Personal []model.Task
	Other    []model.Task
	Q1       []model.Task
	Q2       []model.Task
	Notes    []model.Task
	Overdue  []model.Task
	Inbox    []model.Task

	Journals []JournalEntry // oldest first

	Events    []model.Event
	FreeSlots []DaySlots
	Conflicts []model.Conflict
	Counts    derive.Counts

	Unavailable []UnavailableSource
	Stale       []StaleSource
	Dropped     int
}

// Bundle is the immutable snapshot of one compile run.
type Bundle struct {
	RunID     string     `json:"run_id"`
	Period    Period     `json:"period"`
	Start     civil.Date `json:"start"`
	End       civil.Date `json:"end"`
	DayOfWeek string     `json:"day_of_week"`
	AsOf      time.Time  `json:"as_of"`
	WorkHours string     `json:"work_hours"`

	Tasks    []model.Task `json:"tasks"`
	Work     []model.Task `json:"work_tasks"`
	Personal []model.Task `json:"personal_tasks"`
	Other    []model.Task `json:"other_tasks"`
	Q1       []model.Task `json:"q1"`
	Q2       []model.Task `json:"q2"`
	Notes    []model.Task `json:"notes"`
	Overdue  []model.Task `json:"overdue,omitempty"`
	Inbox    []model.Task `json:"inbox,omitempty"`

	Journals []JournalEntry `json:"journals,omitempty"`

	Events    []model.Event    `json:"events"`
	FreeSlots []DaySlots       `json:"free_slots"`
	Conflicts []model.Conflict `json:"conflicts"`
	Counts    derive.Counts    `json:"counts"`

	Unavailable []UnavailableSource `json:"unavailable,omitempty"`
	Stale       []StaleSource       `json:"stale,omitempty"`
	Dropped     int                 `json:"dropped_records"`

	loc     *time.Location
	workDay derive.Window
}

// Serialize snapshots in. It never fails and never reorders.
func Serialize(in Input) Bundle {
	loc := in.Location
	if loc == nil {
		loc = time.Local
	}
	period := in.Period
	if period == "" {
		period = Day
	}
	end := in.End
	if end.Before(in.Start) {
		end = in.Start
	}

	slots := make([]DaySlots, len(in.FreeSlots))
	for i, d := range in.FreeSlots {
		slots[i] = DaySlots{Date: d.Date, Slots: slices.Clone(d.Slots)}
	}
	conflicts := make([]model.Conflict, len(in.Conflicts))
	for i, c := range in.Conflicts {
		c.Events = slices.Clone(c.Events)
		conflicts[i] = c
	}

	return Bundle{
		RunID:     in.RunID,
		Period:    period,
		Start:     in.Start,
		End:       end,
		DayOfWeek: in.Start.In(loc).Weekday().String(),
		AsOf:      in.AsOf,
		WorkHours: in.WorkDay.String(),

		Tasks:    slices.Clone(in.Tasks),
		Work:     slices.Clone(in.Work),
		Personal: slices.Clone(in.Personal),
		Other:    slices.Clone(in.Other),
		Q1:       slices.Clone(in.Q1),
		Q2:       slices.Clone(in.Q2),
		Notes:    slices.Clone(in.Notes),
		Overdue:  slices.Clone(in.Overdue),
		Inbox:    slices.Clone(in.Inbox),

		Journals: slices.Clone(in.Journals),

		Events:    slices.Clone(in.Events),
		FreeSlots: slots,
		Conflicts: conflicts,
		Counts:    in.Counts,

		Unavailable: slices.Clone(in.Unavailable),
		Stale:       slices.Clone(in.Stale),
		Dropped:     in.Dropped,

		loc:     loc,
		workDay: in.WorkDay,
	}
}

// Partial reports whether any source was missing or served stale.
func (b Bundle) Partial() bool {
	return len(b.Unavailable) > 0 || len(b.Stale) > 0
}

// Location is the zone every wall-clock field is rendered in.
func (b Bundle) Location() *time.Location {
	if b.loc == nil {
		return time.Local
	}
	return b.loc
}
