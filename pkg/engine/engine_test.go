package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/harrisonrobin/friday/pkg/bundle"
	"github.com/harrisonrobin/friday/pkg/cache"
	"github.com/harrisonrobin/friday/pkg/derive"
	"github.com/harrisonrobin/friday/pkg/model"
	"github.com/harrisonrobin/friday/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Friday.
var friday = civil.Date{Year: 2026, Month: time.October, Day: 16}

func task(src, title string, fields map[string]any) model.RawRecord {
	rec := model.NewRawRecord(src, model.KindTask)
	rec.Set("title", title)
	for k, v := range fields {
		rec.Set(k, v)
	}
	return rec
}

func event(src, title, start, end string) model.RawRecord {
	rec := model.NewRawRecord(src, model.KindEvent)
	rec.Set("title", title)
	rec.Set("start", start)
	rec.Set("end", end)
	return rec
}

func static(name string, kind model.Kind, recs ...model.RawRecord) source.Func {
	return source.Func{
		SourceName: name,
		RecordKind: kind,
		FetchFunc: func(context.Context, source.Range) ([]model.RawRecord, error) {
			return recs, nil
		},
	}
}

func failing(name string, kind model.Kind) source.Func {
	return source.Func{
		SourceName: name,
		RecordKind: kind,
		FetchFunc: func(context.Context, source.Range) ([]model.RawRecord, error) {
			return nil, errors.New("connection refused")
		},
	}
}

func options() Options {
	return Options{
		Location:   time.UTC,
		WorkDay:    derive.Window{Start: 8 * time.Hour, End: 18 * time.Hour},
		DeepWork:   []derive.Window{{Start: 9 * time.Hour, End: 11 * time.Hour}},
		MinSlot:    derive.DefaultMinSlot,
		UrgentDays: derive.DefaultUrgentDays,
		WorkLists:  []string{"Work"},
		Precedence: []string{"google", "icalpal"},
		Timeout:    time.Second,
	}
}

func TestCompileDayScenario(t *testing.T) {
	tasks := static("ticktick", model.KindTask,
		task("ticktick", "Ship it", map[string]any{"id": "1", "priority": 4, "due": "2026-10-16", "project": "Work"}),
		task("ticktick", "Read", map[string]any{"id": "2", "priority": 1}),
	)
	google := static("google", model.KindEvent,
		event("google", "Standup", "2026-10-16T09:00:00Z", "2026-10-16T09:30:00Z"),
		event("google", "Design Review", "2026-10-16T10:00:00Z", "2026-10-16T12:00:00Z"),
	)
	ical := static("icalpal", model.KindEvent,
		event("icalpal", "design review", "2026-10-16T10:00:00", "2026-10-16T12:00:00"),
	)

	c := cache.New(cache.NewFileStore(t.TempDir()), time.Minute, nil)
	e := New(c, []source.Adapter{tasks}, []source.Adapter{google, ical}, options(), nil)

	b, err := e.CompileDay(context.Background(), friday)
	require.NoError(t, err)

	assert.Equal(t, bundle.Day, b.Period)
	assert.NotEmpty(t, b.RunID)
	assert.Empty(t, b.Unavailable)
	assert.Empty(t, b.Stale)

	require.Len(t, b.Q1, 1)
	assert.Equal(t, "Ship it", b.Q1[0].Title)
	require.Len(t, b.Work, 1)
	assert.Equal(t, 1, b.Counts.Urgent)
	assert.Equal(t, 2, b.Counts.Meetings)

	require.Len(t, b.Events, 2)
	assert.Equal(t, "google", b.Events[1].Source)

	require.Len(t, b.Conflicts, 2)
	require.Len(t, b.FreeSlots, 1)
	assert.Len(t, b.FreeSlots[0].Slots, 3)
}

func TestCompileIsIdempotent(t *testing.T) {
	tasks := static("taskwarrior", model.KindTask,
		task("taskwarrior", "B", map[string]any{"id": "b", "priority": 3}),
		task("taskwarrior", "A", map[string]any{"id": "a", "priority": 5, "due": "2026-10-15"}),
	)
	cal := static("google", model.KindEvent,
		event("google", "Lunch", "2026-10-16T12:00:00Z", "2026-10-16T13:00:00Z"))
	e := New(nil, []source.Adapter{tasks}, []source.Adapter{cal}, options(), nil)

	first, err := e.CompileDay(context.Background(), friday)
	require.NoError(t, err)
	second, err := e.CompileDay(context.Background(), friday)
	require.NoError(t, err)

	assert.Equal(t, first.Tasks, second.Tasks)
	assert.Equal(t, first.FreeSlots, second.FreeSlots)
	assert.Equal(t, first.Conflicts, second.Conflicts)
	assert.Equal(t, 1, first.Counts.Overdue)
}

func TestUnavailableSourceYieldsPartialBundle(t *testing.T) {
	tasks := static("ticktick", model.KindTask, task("ticktick", "Pay rent", map[string]any{"priority": 5}))
	e := New(nil, []source.Adapter{tasks}, []source.Adapter{failing("google", model.KindEvent)}, options(), nil)

	b, err := e.CompileDay(context.Background(), friday)
	require.NoError(t, err)
	require.Len(t, b.Unavailable, 1)
	assert.Equal(t, "google", b.Unavailable[0].Source)
	assert.Contains(t, b.Unavailable[0].Error, "connection refused")
	assert.True(t, b.Partial())
	assert.Len(t, b.Tasks, 1)
	assert.Empty(t, b.Events)
}

func TestStrictFailsOnUnavailableSource(t *testing.T) {
	opts := options()
	opts.Strict = true
	e := New(nil, nil, []source.Adapter{failing("google", model.KindEvent)}, opts, nil)

	_, err := e.CompileDay(context.Background(), friday)
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrSourceUnavailable))
}

func TestSlowSourceTimesOut(t *testing.T) {
	slow := source.Func{
		SourceName: "icalpal",
		RecordKind: model.KindEvent,
		FetchFunc: func(ctx context.Context, r source.Range) ([]model.RawRecord, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	opts := options()
	opts.Timeout = 20 * time.Millisecond
	e := New(nil, nil, []source.Adapter{slow}, opts, nil)

	start := time.Now()
	b, err := e.CompileDay(context.Background(), friday)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, b.Unavailable, 1)
	assert.Contains(t, b.Unavailable[0].Error, "timed out")
}

func TestFailedFetchServesStaleCache(t *testing.T) {
	var broken atomic.Bool
	tasks := source.Func{
		SourceName: "ticktick",
		RecordKind: model.KindTask,
		FetchFunc: func(context.Context, source.Range) ([]model.RawRecord, error) {
			if broken.Load() {
				return nil, errors.New("503")
			}
			return []model.RawRecord{task("ticktick", "Cached", map[string]any{"priority": 5})}, nil
		},
	}
	opts := options()
	opts.TTL = time.Nanosecond
	c := cache.New(cache.NewFileStore(t.TempDir()), time.Minute, nil)
	e := New(c, []source.Adapter{tasks}, nil, opts, nil)

	_, err := e.CompileDay(context.Background(), friday)
	require.NoError(t, err)

	broken.Store(true)
	b, err := e.CompileDay(context.Background(), friday)
	require.NoError(t, err)
	assert.Empty(t, b.Unavailable)
	require.Len(t, b.Stale, 1)
	assert.Equal(t, "ticktick", b.Stale[0].Source)
	require.Len(t, b.Tasks, 1)
	assert.Equal(t, "Cached", b.Tasks[0].Title)
}

func TestMalformedRecordsAreDropped(t *testing.T) {
	tasks := static("orgmode", model.KindTask,
		task("orgmode", "", nil),
		task("orgmode", "Valid", map[string]any{"priority": 5}),
	)
	e := New(nil, []source.Adapter{tasks}, nil, options(), nil)

	b, err := e.CompileDay(context.Background(), friday)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Dropped)
	assert.Len(t, b.Tasks, 1)
	assert.Empty(t, b.Unavailable)
}

func TestCompileWeek(t *testing.T) {
	var calls atomic.Int32
	cal := source.Func{
		SourceName: "google",
		RecordKind: model.KindEvent,
		FetchFunc: func(ctx context.Context, r source.Range) ([]model.RawRecord, error) {
			calls.Add(1)
			if r.From == friday {
				return []model.RawRecord{event("google", "Retro", "2026-10-16T15:00:00Z", "2026-10-16T16:00:00Z")}, nil
			}
			return nil, nil
		},
	}
	tasks := static("ticktick", model.KindTask,
		task("ticktick", "By Saturday", map[string]any{"due": "2026-10-17"}),
		task("ticktick", "Next week", map[string]any{"due": "2026-10-21"}),
		task("ticktick", "Big rock", map[string]any{"priority": 3}),
		task("ticktick", "Birthday", map[string]any{"kind": "note", "due": "2026-10-17"}),
	)
	opts := options()
	opts.DeepWork = []derive.Window{{Start: 14 * time.Hour, End: 16 * time.Hour}}
	e := New(nil, []source.Adapter{tasks}, []source.Adapter{cal}, opts, nil)

	b, err := e.CompileWeek(context.Background(), friday)
	require.NoError(t, err)
	assert.Equal(t, bundle.Week, b.Period)
	assert.Equal(t, friday.AddDays(1), b.End)
	assert.EqualValues(t, 2, calls.Load())

	var titles []string
	for _, tk := range b.Tasks {
		titles = append(titles, tk.Title)
	}
	assert.ElementsMatch(t, []string{"By Saturday", "Big rock"}, titles)
	require.Len(t, b.Notes, 1)
	assert.Equal(t, "Birthday", b.Notes[0].Title)

	// Saturday gets no free slots or conflicts.
	require.Len(t, b.FreeSlots, 1)
	assert.Equal(t, friday, b.FreeSlots[0].Date)
	require.Len(t, b.Conflicts, 1)
	assert.Equal(t, "Retro", b.Conflicts[0].Events[0].Title)
}

func TestWeekRange(t *testing.T) {
	r := WeekRange(friday)
	assert.Len(t, r.Days(), 2)

	sunday := friday.AddDays(2)
	assert.Equal(t, friday.AddDays(8), WeekRange(sunday).To)

	saturday := friday.AddDays(1)
	assert.Equal(t, source.Day(saturday), WeekRange(saturday))
}

func TestTasksAndEventsOnly(t *testing.T) {
	var calCalls atomic.Int32
	cal := source.Func{
		SourceName: "google",
		RecordKind: model.KindEvent,
		FetchFunc: func(context.Context, source.Range) ([]model.RawRecord, error) {
			calCalls.Add(1)
			return nil, nil
		},
	}
	tasks := static("ticktick", model.KindTask, task("ticktick", "One", nil))
	e := New(nil, []source.Adapter{tasks}, []source.Adapter{cal}, options(), nil)

	snap, err := e.Tasks(context.Background(), friday)
	require.NoError(t, err)
	assert.Len(t, snap.Tasks, 1)
	assert.Zero(t, calCalls.Load())

	snap, err = e.Events(context.Background(), source.Day(friday))
	require.NoError(t, err)
	assert.Empty(t, snap.Tasks)
	assert.EqualValues(t, 1, calCalls.Load())
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := New(nil, []source.Adapter{static("ticktick", model.KindTask)}, nil, options(), nil)
	_, err := e.CompileDay(ctx, friday)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompileReview(t *testing.T) {
	var days []civil.Date
	var mu sync.Mutex
	cal := source.Func{
		SourceName: "google",
		RecordKind: model.KindEvent,
		FetchFunc: func(ctx context.Context, r source.Range) ([]model.RawRecord, error) {
			mu.Lock()
			days = append(days, r.From)
			mu.Unlock()
			if r.From == friday.AddDays(3) {
				return []model.RawRecord{event("google", "Planning", "2026-10-19T09:00:00Z", "2026-10-19T10:00:00Z")}, nil
			}
			return nil, nil
		},
	}
	tasks := static("ticktick", model.KindTask,
		task("ticktick", "Taxes", map[string]any{"due": "2026-10-13", "project": "Home"}),
		task("ticktick", "Call plumber", nil),
		task("ticktick", "Ship it", map[string]any{"due": "2026-10-20", "project": "Work"}),
	)
	journals := []bundle.JournalEntry{{Date: friday.AddDays(-1), Content: "Shipped."}}
	e := New(nil, []source.Adapter{tasks}, []source.Adapter{cal}, options(), nil)

	b, err := e.CompileReview(context.Background(), friday, journals)
	require.NoError(t, err)
	assert.Equal(t, bundle.Review, b.Period)
	assert.Equal(t, friday, b.Start)
	assert.Equal(t, friday.AddDays(7), b.End)
	assert.Equal(t, journals, b.Journals)

	require.Len(t, b.Overdue, 1)
	assert.Equal(t, "Taxes", b.Overdue[0].Title)
	require.Len(t, b.Inbox, 1)
	assert.Equal(t, "Call plumber", b.Inbox[0].Title)

	require.Len(t, b.Events, 1)
	assert.Equal(t, "Planning", b.Events[0].Title)
	assert.Len(t, days, 7)
	assert.NotContains(t, days, friday, "today's calendar is not part of the review")
}

func TestNewDefaults(t *testing.T) {
	e := New(nil, nil, nil, Options{}, nil)
	assert.Equal(t, derive.DefaultMinSlot, e.opts.MinSlot)
	assert.Equal(t, 0, e.opts.UrgentDays, "zero is a valid horizon")
	assert.Equal(t, DefaultConcurrency, e.opts.Concurrency)
	assert.Equal(t, derive.FullDay, e.opts.WorkDay)

	e = New(nil, nil, nil, Options{UrgentDays: -1}, nil)
	assert.Equal(t, derive.DefaultUrgentDays, e.opts.UrgentDays)
}
