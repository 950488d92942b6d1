package normalize

import (
	"errors"
	"math"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/harrisonrobin/friday/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var toronto = mustLoad("America/Toronto")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func taskRecord(src string, fields map[string]any) model.RawRecord {
	return model.RawRecord{Source: src, Kind: model.KindTask, Fields: fields}
}

func eventRecord(src string, fields map[string]any) model.RawRecord {
	return model.RawRecord{Source: src, Kind: model.KindEvent, Fields: fields}
}

func TestTaskDefaults(t *testing.T) {
	n := New(toronto)
	task, err := n.Task(taskRecord("ticktick", map[string]any{"id": "a1", "title": "  Buy milk "}))
	require.NoError(t, err)

	assert.Equal(t, "a1", task.ID)
	assert.Equal(t, "Buy milk", task.Title)
	assert.Nil(t, task.Due)
	assert.Equal(t, 0, task.Priority)
	assert.Equal(t, model.DefaultProject, task.Project)
	assert.Equal(t, model.KindText, task.Kind)
	assert.Equal(t, "ticktick", task.Source)
}

func TestTaskPriorityIsClamped(t *testing.T) {
	n := New(toronto)
	tests := []struct {
		raw  any
		want int
	}{
		{float64(9), 5},
		{float64(-2), 0},
		{float64(3), 3},
		{"4", 4},
		{"H", 5},
		{"M", 3},
		{"L", 1},
		{"A", 5},
		{"C", 1},
		{"bogus", 0},
		{float64(1e19), 5},
		{float64(1e300), 5},
		{"1e19", 5},
		{"1e400", 5},
		{float64(-1e300), 0},
		{math.NaN(), 0},
		{math.Inf(1), 5},
	}
	for _, tt := range tests {
		task, err := n.Task(taskRecord("x", map[string]any{"title": "t", "priority": tt.raw}))
		require.NoError(t, err)
		assert.Equal(t, tt.want, task.Priority, "priority %v", tt.raw)
	}
}

func TestTaskDueFormats(t *testing.T) {
	n := New(toronto)
	want := civil.Date{Year: 2026, Month: time.October, Day: 16}
	for _, due := range []string{
		"2026-10-16",
		"2026-10-16T04:00:00.000+0000", // TickTick: local midnight in UTC
		"20261016T120000Z",             // Taskwarrior
		"2026-10-16 Fri 09:00",         // Org-mode deadline
	} {
		task, err := n.Task(taskRecord("x", map[string]any{"title": "t", "due": due}))
		require.NoError(t, err, due)
		require.NotNil(t, task.Due, due)
		assert.Equal(t, want, *task.Due, due)
	}
}

func TestTaskNoteKind(t *testing.T) {
	task, err := New(toronto).Task(taskRecord("ticktick", map[string]any{"title": "Mom's birthday", "kind": "NOTE"}))
	require.NoError(t, err)
	assert.True(t, task.IsNote())
}

func TestMissingTitleIsMalformed(t *testing.T) {
	n := New(toronto)
	_, err := n.Task(taskRecord("ticktick", map[string]any{"id": "1"}))
	assert.True(t, errors.Is(err, ErrMalformedRecord))

	_, err = n.Event(eventRecord("google", map[string]any{"start": "2026-10-16T09:00:00-04:00"}))
	assert.True(t, errors.Is(err, ErrMalformedRecord))

	_, err = n.Event(eventRecord("google", map[string]any{"title": "Standup"}))
	assert.True(t, errors.Is(err, ErrMalformedRecord))

	var me *MalformedRecordError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "google", me.Source)
}

func TestEventMissingEndIsPointEvent(t *testing.T) {
	ev, err := New(toronto).Event(eventRecord("google", map[string]any{
		"title": "Call",
		"start": "2026-10-16T09:00:00-04:00",
	}))
	require.NoError(t, err)
	assert.True(t, ev.Start.Equal(ev.End))
	assert.Equal(t, "google", ev.Calendar)
}

func TestEventEndBeforeStartIsZeroed(t *testing.T) {
	ev, err := New(toronto).Event(eventRecord("icalpal", map[string]any{
		"title": "Broken",
		"start": "2026-10-16 10:00:00",
		"end":   "2026-10-16 09:00:00",
	}))
	require.NoError(t, err)
	assert.False(t, ev.End.Before(ev.Start))
	assert.Equal(t, time.Duration(0), ev.Duration())
	assert.Equal(t, toronto, ev.Start.Location())
}

func TestAllDayEventCoversLocalDay(t *testing.T) {
	ev, err := New(toronto).Event(eventRecord("google", map[string]any{
		"title": "Holiday",
		"start": "2026-10-16",
	}))
	require.NoError(t, err)
	assert.True(t, ev.AllDay)
	assert.Equal(t, 24*time.Hour, ev.Duration())
	assert.Equal(t, 0, ev.Start.Hour())

	ev, err = New(toronto).Event(eventRecord("icalpal", map[string]any{
		"title":   "Offsite",
		"start":   "2026-10-16 00:00:00",
		"all_day": float64(1),
	}))
	require.NoError(t, err)
	assert.True(t, ev.AllDay)
	assert.Equal(t, 24*time.Hour, ev.Duration())
}

func TestBatchDropsMalformed(t *testing.T) {
	recs := []model.RawRecord{
		taskRecord("ticktick", map[string]any{"id": "1", "title": "ok"}),
		taskRecord("ticktick", map[string]any{"id": "2"}),
		eventRecord("google", map[string]any{"title": "Standup", "start": "2026-10-16T09:00:00-04:00", "end": "2026-10-16T09:30:00-04:00"}),
		eventRecord("google", map[string]any{"title": "Bad", "start": "yesterday-ish"}),
		{Source: "mystery", Kind: "widget", Fields: map[string]any{"title": "?"}},
	}

	tasks, events, dropped := New(toronto).Batch(recs)
	assert.Len(t, tasks, 1)
	assert.Len(t, events, 1)
	assert.Len(t, dropped, 3)
	for _, err := range dropped {
		assert.True(t, errors.Is(err, ErrMalformedRecord))
	}
}
