package bundle

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/harrisonrobin/friday/pkg/derive"
	"github.com/harrisonrobin/friday/pkg/model"
)

// Template placeholder names.
const (
	FieldDate              = "DATE"
	FieldDayOfWeek         = "DAY_OF_WEEK"
	FieldPeriod            = "PERIOD"
	FieldTimeContext       = "TIME_CONTEXT"
	FieldCalendar          = "CALENDAR"
	FieldTasks             = "TASKS"
	FieldNotes             = "NOTES"
	FieldFreeSlots         = "FREE_SLOTS"
	FieldConflicts         = "CONFLICTS"
	FieldOverdueCount      = "OVERDUE_COUNT"
	FieldHighPriorityCount = "HIGH_PRIORITY_COUNT"
	FieldMeetingCount      = "MEETING_COUNT"
	FieldUrgentCount       = "URGENT_COUNT"
	FieldSourceStatus      = "SOURCE_STATUS"

	FieldAccomplishments  = "ACCOMPLISHMENTS"
	FieldOverdueTasks     = "OVERDUE_TASKS"
	FieldInboxTasks       = "INBOX_TASKS"
	FieldNextWeekCalendar = "NEXT_WEEK_CALENDAR"
)

// Fields renders the bundle as plain strings keyed by placeholder name.
func (b Bundle) Fields() map[string]string {
	return map[string]string{
		FieldDate:              b.Start.String(),
		FieldDayOfWeek:         b.DayOfWeek,
		FieldPeriod:            string(b.Period),
		FieldTimeContext:       b.timeContext(),
		FieldCalendar:          b.calendar(),
		FieldTasks:             b.tasks(),
		FieldNotes:             b.notes(),
		FieldFreeSlots:         b.freeSlots(),
		FieldConflicts:         b.conflicts(),
		FieldOverdueCount:      strconv.Itoa(b.Counts.Overdue),
		FieldHighPriorityCount: strconv.Itoa(b.Counts.HighPriority),
		FieldMeetingCount:      strconv.Itoa(b.Counts.Meetings),
		FieldUrgentCount:       strconv.Itoa(b.Counts.Urgent),
		FieldSourceStatus:      b.sourceStatus(),

		FieldAccomplishments:  b.accomplishments(),
		FieldOverdueTasks:     b.overdue(),
		FieldInboxTasks:       b.inbox(),
		FieldNextWeekCalendar: b.calendar(),
	}
}

func (b Bundle) clock(t time.Time) string {
	return t.In(b.Location()).Format("15:04")
}

func (b Bundle) noun() string {
	switch b.Period {
	case Week:
		return "this week"
	case Review:
		return "next week"
	}
	return "today"
}

func (b Bundle) timeContext() string {
	if b.AsOf.IsZero() || b.workDay.End == 0 {
		return ""
	}
	now := b.AsOf.In(b.Location())
	work := b.workDay.On(civil.DateOf(now), b.Location())
	if !now.Before(work.Start) && now.Before(work.End) {
		return fmt.Sprintf("Currently during work hours (%s). Focus on work tasks.", b.WorkHours)
	}
	return fmt.Sprintf("Currently outside work hours (%s). Focus on personal tasks.", b.WorkHours)
}

func (b Bundle) eventLine(e model.Event) string {
	var sb strings.Builder
	sb.WriteString("- ")
	switch {
	case e.AllDay:
		sb.WriteString("All day")
	case e.End.After(e.Start):
		sb.WriteString(b.clock(e.Start) + " - " + b.clock(e.End))
	default:
		sb.WriteString(b.clock(e.Start))
	}
	sb.WriteString(" " + e.Title)
	if e.Location != "" {
		sb.WriteString(" @ " + e.Location)
	}
	return sb.String()
}

func (b Bundle) calendar() string {
	if len(b.Events) == 0 {
		return "No events " + b.noun() + "."
	}
	var lines []string
	if b.Period == Day {
		for _, e := range b.Events {
			lines = append(lines, b.eventLine(e))
		}
		return strings.Join(lines, "\n")
	}

	var current civil.Date
	for i, e := range b.Events {
		d := civil.DateOf(e.Start.In(b.Location()))
		if i == 0 || d != current {
			if i > 0 {
				lines = append(lines, "")
			}
			lines = append(lines, "### "+longDate(d, b.Location()))
			current = d
		}
		lines = append(lines, b.eventLine(e))
	}
	return strings.Join(lines, "\n")
}

func longDate(d civil.Date, loc *time.Location) string {
	return d.In(loc).Format("Monday, January 02")
}

// dueText describes a due date relative to the bundle's start date.
func (b Bundle) dueText(t model.Task) string {
	days, ok := t.DaysUntilDue(b.Start)
	switch {
	case !ok:
		return ""
	case days < 0:
		return fmt.Sprintf("OVERDUE by %dd", -days)
	case days == 0:
		return "due TODAY"
	default:
		return fmt.Sprintf("due in %dd", days)
	}
}

func (b Bundle) taskLine(t model.Task) string {
	q := derive.Classify(t, b.Start)
	detail := "project: " + t.Project
	if due := b.dueText(t); due != "" {
		detail = due + ", " + detail
	}
	return fmt.Sprintf("- [%s] %s (%s)", q.Label(), t.Title, detail)
}

func (b Bundle) taskList(tasks []model.Task) string {
	if len(tasks) == 0 {
		return "None"
	}
	lines := make([]string, len(tasks))
	for i, t := range tasks {
		lines[i] = b.taskLine(t)
	}
	return strings.Join(lines, "\n")
}

func (b Bundle) tasks() string {
	return "### Work Tasks\n" + b.taskList(b.Work) +
		"\n\n### Personal Tasks\n" + b.taskList(b.Personal) +
		"\n\n### Other\n" + b.taskList(b.Other)
}

func (b Bundle) notes() string {
	if len(b.Notes) == 0 {
		return "None"
	}
	lines := make([]string, len(b.Notes))
	for i, t := range b.Notes {
		days, _ := t.DaysUntilDue(b.Start)
		var when string
		switch {
		case days < 0:
			when = fmt.Sprintf("since %dd ago", -days)
		case days == 0:
			when = "today"
		default:
			when = fmt.Sprintf("in %dd", days)
		}
		lines[i] = fmt.Sprintf("- %s (%s, project: %s)", t.Title, when, t.Project)
	}
	return strings.Join(lines, "\n")
}

func (b Bundle) slot(s model.FreeSlot) string {
	return fmt.Sprintf("%s-%s (%d min)", b.clock(s.Start), b.clock(s.End), int(s.Duration().Minutes()))
}

func (b Bundle) freeSlots() string {
	if b.Period != Week {
		var lines []string
		for _, d := range b.FreeSlots {
			for _, s := range d.Slots {
				lines = append(lines, "- "+b.slot(s))
			}
		}
		if len(lines) == 0 {
			return "No free slots today."
		}
		return strings.Join(lines, "\n")
	}

	if len(b.FreeSlots) == 0 {
		return "No workdays remaining this week."
	}
	lines := make([]string, len(b.FreeSlots))
	for i, d := range b.FreeSlots {
		text := "No free slots"
		if len(d.Slots) > 0 {
			parts := make([]string, len(d.Slots))
			for j, s := range d.Slots {
				parts[j] = b.slot(s)
			}
			text = strings.Join(parts, ", ")
		}
		lines[i] = fmt.Sprintf("**%s**: %s", longDate(d.Date, b.Location()), text)
	}
	return strings.Join(lines, "\n")
}

func (b Bundle) conflicts() string {
	if len(b.Conflicts) == 0 {
		return "No conflicts with deep work."
	}
	lines := make([]string, len(b.Conflicts))
	for i, c := range b.Conflicts {
		titles := make([]string, len(c.Events))
		for j, e := range c.Events {
			titles[j] = e.Title
		}
		prefix := ""
		if b.Period == Week {
			prefix = c.Window.Start.In(b.Location()).Format("Mon") + " "
		}
		lines[i] = fmt.Sprintf("- %sdeep work %s-%s overlaps %s-%s: %s",
			prefix,
			b.clock(c.Window.Start), b.clock(c.Window.End),
			b.clock(c.Overlap.Start), b.clock(c.Overlap.End),
			strings.Join(titles, ", "))
	}
	return strings.Join(lines, "\n")
}

func (b Bundle) sourceStatus() string {
	if !b.Partial() && b.Dropped == 0 {
		return "All sources available."
	}
	var parts []string
	if len(b.Unavailable) > 0 {
		names := make([]string, len(b.Unavailable))
		for i, u := range b.Unavailable {
			names[i] = u.Source
		}
		parts = append(parts, "Unavailable: "+strings.Join(names, ", ")+".")
	}
	if len(b.Stale) > 0 {
		names := make([]string, len(b.Stale))
		for i, s := range b.Stale {
			names[i] = fmt.Sprintf("%s (cached %s)", s.Source,
				s.FetchedAt.In(b.Location()).Format("2006-01-02 15:04"))
		}
		parts = append(parts, "Stale: "+strings.Join(names, ", ")+".")
	}
	if b.Dropped > 0 {
		parts = append(parts, fmt.Sprintf("%d malformed records dropped.", b.Dropped))
	}
	return strings.Join(parts, " ")
}

func (b Bundle) accomplishments() string {
	if len(b.Journals) == 0 {
		return "No journal entries this week."
	}
	parts := make([]string, len(b.Journals))
	for i, j := range b.Journals {
		parts[i] = "### " + j.Date.String() + "\n" + j.Content
	}
	return strings.Join(parts, "\n\n")
}

func (b Bundle) overdue() string {
	if len(b.Overdue) == 0 {
		return "None"
	}
	lines := make([]string, len(b.Overdue))
	for i, t := range b.Overdue {
		due := "-"
		if t.Due != nil {
			due = t.Due.String()
		}
		lines[i] = fmt.Sprintf("- %s (due: %s, project: %s)", t.Title, due, t.Project)
	}
	return strings.Join(lines, "\n")
}

func (b Bundle) inbox() string {
	if len(b.Inbox) == 0 {
		return "Inbox is empty."
	}
	lines := make([]string, len(b.Inbox))
	for i, t := range b.Inbox {
		lines[i] = "- " + t.Title
	}
	return strings.Join(lines, "\n")
}
