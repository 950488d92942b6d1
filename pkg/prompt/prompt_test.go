package prompt

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/harrisonrobin/friday/pkg/bundle"
	"github.com/harrisonrobin/friday/pkg/derive"
	"github.com/harrisonrobin/friday/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = civil.Date{Year: 2026, Month: time.October, Day: 16}

func sample(period bundle.Period) bundle.Bundle {
	due := day
	ship := model.Task{ID: "1", Title: "Ship it", Priority: 4, Due: &due, Project: "Work", Source: "ticktick"}
	return bundle.Serialize(bundle.Input{
		Period:   period,
		Start:    day,
		End:      day,
		Location: time.UTC,
		WorkDay:  derive.Window{Start: 9 * time.Hour, End: 17 * time.Hour},
		Tasks:    []model.Task{ship},
		Work:     []model.Task{ship},
		Q1:       []model.Task{ship},
		Events: []model.Event{{
			Title: "Standup",
			Start: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC),
		}},
		Counts: derive.Counts{Urgent: 1, HighPriority: 1, Meetings: 1},
	})
}

func TestRenderBuiltins(t *testing.T) {
	r := NewRenderer("")

	out, err := r.Render(DailyBriefing, sample(bundle.Day))
	require.NoError(t, err)
	assert.Contains(t, out, "Friday, 2026-10-16")
	assert.Contains(t, out, "09:00 - 09:30 Standup")
	assert.Contains(t, out, "[Do] Ship it")
	assert.Contains(t, out, "- Urgent (Q1): 1")
	assert.NotContains(t, out, "{{")

	out, err = r.Render(WeeklyPlanning, sample(bundle.Week))
	require.NoError(t, err)
	assert.Contains(t, out, "Generate a weekly plan")
	assert.Contains(t, out, "### Work Tasks")
}

func TestOverrideDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DailyBriefing+".md"),
		[]byte("{{.DATE}}: {{.MEETING_COUNT}} meetings"), 0o644))

	r := NewRenderer(dir)
	out, err := r.Render(DailyBriefing, sample(bundle.Day))
	require.NoError(t, err)
	assert.Equal(t, "2026-10-16: 1 meetings", out)

	// Templates missing from the directory fall back to the built-in.
	out, err = r.Render(WeeklyPlanning, sample(bundle.Week))
	require.NoError(t, err)
	assert.Contains(t, out, "Generate a weekly plan")
}

func TestUnknownPlaceholderFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.md"), []byte("{{.YESTERDAY_CONTEXT}}"), 0o644))

	_, err := NewRenderer(dir).Render("custom", sample(bundle.Day))
	assert.Error(t, err)

	_, err = NewRenderer("").Render("no-such-template", sample(bundle.Day))
	assert.Error(t, err)
}

func TestBareFieldSyntaxIsExplained(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DailyBriefing+".md"),
		[]byte("Today is {{DAY_OF_WEEK}}, {{ DATE }}"), 0o644))

	_, err := NewRenderer(dir).Render(DailyBriefing, sample(bundle.Day))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{{.DAY_OF_WEEK}}")
}

func TestRenderWeeklyReview(t *testing.T) {
	b := bundle.Serialize(bundle.Input{
		Period:   bundle.Review,
		Start:    day,
		End:      day.AddDays(7),
		Location: time.UTC,
		Inbox:    []model.Task{{Title: "Call plumber", Project: model.DefaultProject}},
		Journals: []bundle.JournalEntry{{Date: day, Content: "Shipped."}},
	})
	out, err := NewRenderer("").Render(ForPeriod(b.Period), b)
	require.NoError(t, err)
	assert.Contains(t, out, "Generate a weekly review")
	assert.Contains(t, out, "### 2026-10-16\nShipped.")
	assert.Contains(t, out, "- Call plumber")
	assert.Contains(t, out, "No events next week.")
	assert.NotContains(t, out, "{{")
}

func TestForPeriod(t *testing.T) {
	assert.Equal(t, DailyBriefing, ForPeriod(bundle.Day))
	assert.Equal(t, WeeklyPlanning, ForPeriod(bundle.Week))
	assert.Equal(t, WeeklyReview, ForPeriod(bundle.Review))
}
