package model

import (
	"cloud.google.com/go/civil"
)

const (
	// DefaultProject is used when a source does not name a list or project.
	DefaultProject = "Inbox"

	MinPriority = 0
	MaxPriority = 5
)

// TaskKind distinguishes actionable tasks from time-relevant notes.
type TaskKind string

const (
	KindText TaskKind = "text"
	KindNote TaskKind = "note"
)

// Task represents a normalized task from any task source.
type Task struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Due      *civil.Date `json:"due,omitempty"`
	Priority int         `json:"priority"`
	Project  string      `json:"project"`
	Kind     TaskKind    `json:"kind"`
	Source   string      `json:"source"` // "ticktick", "taskwarrior" or "orgmode"
}

func (Task) entity() {}

// IsNote reports whether the task is a reminder rather than something to complete.
func (t Task) IsNote() bool {
	return t.Kind == KindNote
}

// DaysUntilDue returns the number of days between today and the due date.
// Negative values mean the task is overdue. ok is false for undated tasks.
func (t Task) DaysUntilDue(today civil.Date) (days int, ok bool) {
	if t.Due == nil {
		return 0, false
	}
	return t.Due.DaysSince(today), true
}

// ClampPriority bounds p to [MinPriority, MaxPriority].
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}
