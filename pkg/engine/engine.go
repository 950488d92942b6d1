// Package engine runs one compile: fetch every source concurrently through
// the cache, normalize, merge, derive and snapshot the result as a bundle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/harrisonrobin/friday/pkg/aggregate"
	"github.com/harrisonrobin/friday/pkg/bundle"
	"github.com/harrisonrobin/friday/pkg/cache"
	"github.com/harrisonrobin/friday/pkg/derive"
	"github.com/harrisonrobin/friday/pkg/logging"
	"github.com/harrisonrobin/friday/pkg/metrics"
	"github.com/harrisonrobin/friday/pkg/model"
	"github.com/harrisonrobin/friday/pkg/normalize"
	"github.com/harrisonrobin/friday/pkg/source"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many fetches run at once.
const DefaultConcurrency = 4

// Options are the user settings a compile depends on.
type Options struct {
	Location      *time.Location
	WorkDay       derive.Window
	DeepWork      []derive.Window
	MinSlot       time.Duration // zero uses derive.DefaultMinSlot
	UrgentDays    int           // zero is valid; negative uses derive.DefaultUrgentDays
	WorkLists     []string
	PersonalLists []string
	Precedence    []string

	Timeout     time.Duration // per fetch
	Concurrency int
	TTL         time.Duration // zero uses the cache default

	// Strict fails the whole run when any source is unavailable.
	Strict bool
}

type Engine struct {
	TaskSources     []source.Adapter
	CalendarSources []source.Adapter
	Cache           *cache.Cache // nil fetches every time

	opts Options
	log  *zap.Logger
	now  func() time.Time
}

func New(c *cache.Cache, tasks, calendars []source.Adapter, opts Options, log *zap.Logger) *Engine {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.WorkDay == (derive.Window{}) {
		opts.WorkDay = derive.FullDay
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MinSlot <= 0 {
		opts.MinSlot = derive.DefaultMinSlot
	}
	if opts.UrgentDays < 0 {
		opts.UrgentDays = derive.DefaultUrgentDays
	}
	return &Engine{
		TaskSources:     tasks,
		CalendarSources: calendars,
		Cache:           c,
		opts:            opts,
		log:             logging.OrNop(log),
		now:             time.Now,
	}
}

// Status reports how complete a run's inputs were.
type Status struct {
	Unavailable []bundle.UnavailableSource
	Stale       []bundle.StaleSource
	Dropped     int

	errs []error
}

// Partial reports whether any source was missing or served from cache.
func (s Status) Partial() bool {
	return len(s.Unavailable) > 0 || len(s.Stale) > 0
}

// Err joins the errors of unavailable sources. Each matches
// source.ErrSourceUnavailable.
func (s Status) Err() error {
	return errors.Join(s.errs...)
}

// Snapshot is the merged, normalized state of every source for a range.
type Snapshot struct {
	Tasks  []model.Task
	Events []model.Event
	Status
}

// job is one cache key to fill: a task source for the as-of date, or a
// calendar source for one day.
type job struct {
	adapter source.Adapter
	key     cache.Key
	rng     source.Range
}

type outcome struct {
	res cache.Result
	err error
}

// WeekRange runs from today through the coming Saturday. On a Saturday it is
// a single day.
func WeekRange(today civil.Date) source.Range {
	wd := today.In(time.UTC).Weekday()
	left := (int(time.Saturday) - int(wd) + 7) % 7
	return source.Range{From: today, To: today.AddDays(left)}
}

// Tasks fetches and merges every task source.
func (e *Engine) Tasks(ctx context.Context, today civil.Date) (Snapshot, error) {
	return e.collect(ctx, today, source.Day(today), e.TaskSources, nil)
}

// Events fetches and merges every calendar source over r.
func (e *Engine) Events(ctx context.Context, r source.Range) (Snapshot, error) {
	return e.collect(ctx, r.From, r, nil, e.CalendarSources)
}

func (e *Engine) collect(ctx context.Context, today civil.Date, r source.Range, tasks, calendars []source.Adapter) (Snapshot, error) {
	var jobs []job
	for _, a := range tasks {
		jobs = append(jobs, job{adapter: a, key: cache.Key{Source: a.Name(), Date: today}, rng: r})
	}
	for _, a := range calendars {
		for _, d := range r.Days() {
			jobs = append(jobs, job{adapter: a, key: cache.Key{Source: a.Name(), Date: d}, rng: source.Day(d)})
		}
	}

	outcomes := make([]outcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, j := range jobs {
		i, j := i, j // per-iteration copies (go directive is 1.21)
		g.Go(func() error {
			res, err := e.fetch(ctx, j)
			outcomes[i] = outcome{res: res, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Status: e.status(jobs, outcomes)}
	failed := make(map[string]bool, len(snap.Unavailable))
	for _, u := range snap.Unavailable {
		failed[u.Source] = true
	}

	var raw []model.RawRecord
	for i, o := range outcomes {
		if failed[jobs[i].adapter.Name()] {
			continue
		}
		raw = append(raw, o.res.Records...)
	}

	norm := normalize.New(e.opts.Location)
	ts, evs, dropped := norm.Batch(raw)
	snap.Dropped = e.countDropped(dropped)

	snap.Tasks = aggregate.MergeTasks(ts)
	merged := aggregate.Merger{Precedence: e.opts.Precedence}.MergeEvents(evs)
	from, to := r.Bounds(e.opts.Location)
	snap.Events = aggregate.EventsOn(merged, from, to)

	if e.opts.Strict && len(snap.Unavailable) > 0 {
		return Snapshot{}, fmt.Errorf("strict mode: %w", snap.Err())
	}
	return snap, nil
}

func (e *Engine) fetch(ctx context.Context, j job) (cache.Result, error) {
	fetch := func(ctx context.Context) ([]model.RawRecord, error) {
		start := time.Now()
		recs, err := source.WithTimeout(ctx, j.adapter, j.rng, e.opts.Timeout)
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordFetch(j.adapter.Name(), status, time.Since(start))
		return recs, err
	}
	if e.Cache == nil {
		recs, err := fetch(ctx)
		return cache.Result{Records: recs, FetchedAt: e.now()}, err
	}
	return e.Cache.GetOrFetch(ctx, j.key, e.opts.TTL, fetch)
}

// status folds per-key outcomes into per-source status. A source with any
// failed key is unavailable as a whole; a source with any stale key reports
// its oldest cached time.
func (e *Engine) status(jobs []job, outcomes []outcome) Status {
	var st Status
	seen := make(map[string]bool)
	stale := make(map[string]time.Time)
	for i, o := range outcomes {
		name := jobs[i].adapter.Name()
		if o.err != nil {
			if !seen[name] {
				seen[name] = true
				err := source.Unavailable(name, o.err)
				st.errs = append(st.errs, err)
				st.Unavailable = append(st.Unavailable, bundle.UnavailableSource{Source: name, Error: err.Error()})
				e.log.Warn("source unavailable", zap.String("source", name), zap.Error(o.err))
			}
			continue
		}
		if o.res.Stale {
			if at, ok := stale[name]; !ok || o.res.FetchedAt.Before(at) {
				stale[name] = o.res.FetchedAt
			}
		}
	}
	for name, at := range stale {
		if seen[name] {
			continue
		}
		st.Stale = append(st.Stale, bundle.StaleSource{Source: name, FetchedAt: at})
	}
	sort.Slice(st.Stale, func(i, j int) bool { return st.Stale[i].Source < st.Stale[j].Source })
	sort.Slice(st.Unavailable, func(i, j int) bool { return st.Unavailable[i].Source < st.Unavailable[j].Source })
	return st
}

func (e *Engine) countDropped(dropped []error) int {
	bySource := make(map[string]int)
	for _, err := range dropped {
		var me *normalize.MalformedRecordError
		if errors.As(err, &me) {
			bySource[me.Source]++
		}
		e.log.Debug("dropped record", zap.Error(err))
	}
	for src, n := range bySource {
		metrics.IncrementDropped(src, n)
	}
	return len(dropped)
}

// CompileDay builds the bundle for one day.
func (e *Engine) CompileDay(ctx context.Context, today civil.Date) (bundle.Bundle, error) {
	return e.compile(ctx, bundle.Day, source.Day(today))
}

// CompileWeek builds the bundle for today through Saturday. Free slots and
// deep-work conflicts are only computed for weekdays.
func (e *Engine) CompileWeek(ctx context.Context, today civil.Date) (bundle.Bundle, error) {
	return e.compile(ctx, bundle.Week, WeekRange(today))
}

func (e *Engine) compile(ctx context.Context, period bundle.Period, r source.Range) (bundle.Bundle, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := logging.WithRun(e.log, runID).With(zap.String("period", string(period)))
	log.Debug("compile started", zap.String("from", r.From.String()), zap.String("to", r.To.String()))

	snap, err := e.collect(ctx, r.From, r, e.TaskSources, e.CalendarSources)
	if err != nil {
		return bundle.Bundle{}, err
	}

	today := r.From
	loc := e.opts.Location
	items := derive.WorkItems(snap.Tasks)

	var actionable, notes []model.Task
	if period == bundle.Week {
		actionable = derive.WeekTasks(snap.Tasks, r.To)
		notes = derive.Notes(snap.Tasks, today, len(r.Days())-1)
	} else {
		actionable = derive.Actionable(snap.Tasks, today, e.opts.UrgentDays)
		notes = derive.Notes(snap.Tasks, today, e.opts.UrgentDays)
	}
	work, personal, other := derive.Categorize(actionable, e.opts.WorkLists, e.opts.PersonalLists)
	q1, q2 := derive.Split(actionable, today)

	var slots []bundle.DaySlots
	var conflicts []model.Conflict
	for _, d := range r.Days() {
		if period == bundle.Week && isWeekend(d) {
			continue
		}
		dayBounds := derive.FullDay.On(d, loc)
		dayEvents := aggregate.EventsOn(snap.Events, dayBounds.Start, dayBounds.End)

		slots = append(slots, bundle.DaySlots{
			Date:  d,
			Slots: derive.FreeSlots(dayEvents, e.opts.WorkDay.On(d, loc), e.opts.MinSlot),
		})
		windows := make([]model.Interval, len(e.opts.DeepWork))
		for i, w := range e.opts.DeepWork {
			windows[i] = w.On(d, loc)
		}
		conflicts = append(conflicts, derive.Conflicts(dayEvents, dayBounds, windows)...)
	}

	b := bundle.Serialize(bundle.Input{
		RunID:    runID,
		Period:   period,
		Start:    r.From,
		End:      r.To,
		AsOf:     e.now().In(loc),
		Location: loc,
		WorkDay:  e.opts.WorkDay,

		Tasks:    actionable,
		Work:     work,
		Personal: personal,
		Other:    other,
		Q1:       q1,
		Q2:       q2,
		Notes:    notes,

		Events:    snap.Events,
		FreeSlots: slots,
		Conflicts: conflicts,
		Counts:    derive.Count(items, snap.Events, today),

		Unavailable: snap.Unavailable,
		Stale:       snap.Stale,
		Dropped:     snap.Dropped,
	})

	finished(log, b, start)
	return b, nil
}

// ReviewRange is the seven days after today.
func ReviewRange(today civil.Date) source.Range {
	return source.Range{From: today.AddDays(1), To: today.AddDays(7)}
}

// CompileReview builds the weekly review bundle: the given journal entries,
// overdue and inbox tasks as of today, and the calendar for the next seven
// days.
func (e *Engine) CompileReview(ctx context.Context, today civil.Date, journals []bundle.JournalEntry) (bundle.Bundle, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := logging.WithRun(e.log, runID).With(zap.String("period", string(bundle.Review)))
	ahead := ReviewRange(today)
	log.Debug("compile started", zap.String("from", today.String()), zap.String("to", ahead.To.String()))

	snap, err := e.collect(ctx, today, ahead, e.TaskSources, e.CalendarSources)
	if err != nil {
		return bundle.Bundle{}, err
	}
	items := derive.WorkItems(snap.Tasks)

	b := bundle.Serialize(bundle.Input{
		RunID:    runID,
		Period:   bundle.Review,
		Start:    today,
		End:      ahead.To,
		AsOf:     e.now().In(e.opts.Location),
		Location: e.opts.Location,
		WorkDay:  e.opts.WorkDay,

		Overdue:  derive.Overdue(snap.Tasks, today),
		Inbox:    derive.Inbox(snap.Tasks),
		Journals: journals,

		Events: snap.Events,
		Counts: derive.Count(items, snap.Events, today),

		Unavailable: snap.Unavailable,
		Stale:       snap.Stale,
		Dropped:     snap.Dropped,
	})
	finished(log, b, start)
	return b, nil
}

func finished(log *zap.Logger, b bundle.Bundle, start time.Time) {
	metrics.RecordCompile(string(b.Period), time.Since(start))
	log.Info("compile finished",
		zap.Int("tasks", len(b.Tasks)),
		zap.Int("events", len(b.Events)),
		zap.Int("unavailable", len(b.Unavailable)),
		zap.Int("stale", len(b.Stale)),
		zap.Duration("took", time.Since(start)))
}

func isWeekend(d civil.Date) bool {
	wd := d.In(time.UTC).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
