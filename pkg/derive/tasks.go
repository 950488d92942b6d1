package derive

import (
	"slices"

	"cloud.google.com/go/civil"
	"github.com/harrisonrobin/friday/pkg/model"
)

// Quadrant is the Eisenhower bucket of a task. Only Q1 and Q2 can be
// derived from due date and priority; everything else is Unclassified and
// left to the reasoning step.
type Quadrant int

const (
	Unclassified Quadrant = iota
	Q1                    // urgent and important: do
	Q2                    // important, not urgent: schedule
)

func (q Quadrant) String() string {
	switch q {
	case Q1:
		return "Q1"
	case Q2:
		return "Q2"
	default:
		return "-"
	}
}

// Label is the action word shown next to a task.
func (q Quadrant) Label() string {
	switch q {
	case Q1:
		return "Do"
	case Q2:
		return "Schedule"
	default:
		return "Triage"
	}
}

// Classify puts t in Q1 when it is due today or earlier or has priority 4+,
// and in Q2 when it has priority 2 or 3 and is due after today or undated.
func Classify(t model.Task, today civil.Date) Quadrant {
	dueByToday := t.Due != nil && !t.Due.After(today)
	if dueByToday || t.Priority >= 4 {
		return Q1
	}
	if t.Priority == 2 || t.Priority == 3 {
		return Q2
	}
	return Unclassified
}

// Split partitions tasks into Q1 and Q2, keeping their order.
func Split(tasks []model.Task, today civil.Date) (q1, q2 []model.Task) {
	for _, t := range tasks {
		switch Classify(t, today) {
		case Q1:
			q1 = append(q1, t)
		case Q2:
			q2 = append(q2, t)
		}
	}
	return q1, q2
}

// Counts are the quick stats shown at the top of a briefing.
type Counts struct {
	Overdue      int `json:"overdue"`       // due before today
	HighPriority int `json:"high_priority"` // priority 3 or more
	Meetings     int `json:"meetings"`      // number of events
	Urgent       int `json:"urgent"`        // tasks in Q1
}

func Count(tasks []model.Task, events []model.Event, today civil.Date) Counts {
	c := Counts{Meetings: len(events)}
	for _, t := range tasks {
		if t.Due != nil && t.Due.Before(today) {
			c.Overdue++
		}
		if t.Priority >= 3 {
			c.HighPriority++
		}
		if Classify(t, today) == Q1 {
			c.Urgent++
		}
	}
	return c
}

// DefaultUrgentDays is how far ahead a due date makes a task actionable.
const DefaultUrgentDays = 3

// Actionable keeps non-note tasks that are due within urgentDays (or
// overdue) or fall in Q1.
func Actionable(tasks []model.Task, today civil.Date, urgentDays int) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.IsNote() {
			continue
		}
		if days, ok := t.DaysUntilDue(today); (ok && days <= urgentDays) || Classify(t, today) == Q1 {
			out = append(out, t)
		}
	}
	return out
}

// Notes keeps note tasks due within urgentDays. Notes are reminders, never
// work items.
func Notes(tasks []model.Task, today civil.Date, urgentDays int) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if !t.IsNote() {
			continue
		}
		if days, ok := t.DaysUntilDue(today); ok && days <= urgentDays {
			out = append(out, t)
		}
	}
	return out
}

// WeekTasks keeps non-note tasks due on or before end, or with priority 3+.
func WeekTasks(tasks []model.Task, end civil.Date) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.IsNote() {
			continue
		}
		if (t.Due != nil && !t.Due.After(end)) || t.Priority >= 3 {
			out = append(out, t)
		}
	}
	return out
}

// WorkItems drops note tasks.
func WorkItems(tasks []model.Task) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if !t.IsNote() {
			out = append(out, t)
		}
	}
	return out
}

// Categorize splits tasks by project into work, personal and other lists.
func Categorize(tasks []model.Task, workLists, personalLists []string) (work, personal, other []model.Task) {
	for _, t := range tasks {
		switch {
		case slices.Contains(workLists, t.Project):
			work = append(work, t)
		case slices.Contains(personalLists, t.Project):
			personal = append(personal, t)
		default:
			other = append(other, t)
		}
	}
	return work, personal, other
}

// Overdue keeps non-note tasks due before today.
func Overdue(tasks []model.Task, today civil.Date) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if !t.IsNote() && t.Due != nil && t.Due.Before(today) {
			out = append(out, t)
		}
	}
	return out
}

// Inbox keeps non-note tasks nobody has filed into a project yet.
func Inbox(tasks []model.Task) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if !t.IsNote() && t.Project == model.DefaultProject {
			out = append(out, t)
		}
	}
	return out
}
