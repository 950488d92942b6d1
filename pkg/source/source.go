// Package source defines the contract every task or calendar adapter implements.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/harrisonrobin/friday/pkg/model"
)

// ErrSourceUnavailable is matched by every error an adapter returns when its
// backing system is unreachable, times out or answers with malformed data.
var ErrSourceUnavailable = errors.New("source unavailable")

// UnavailableError carries the failing source and the underlying cause.
type UnavailableError struct {
	Source string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// Unavailable wraps err as an UnavailableError for src.
// A context deadline is reported as a timeout.
func Unavailable(src string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out: %w", err)
	}
	return &UnavailableError{Source: src, Err: err}
}

// Range is an inclusive range of calendar days.
type Range struct {
	From civil.Date
	To   civil.Date
}

// Day returns a range covering a single day.
func Day(d civil.Date) Range {
	return Range{From: d, To: d}
}

// Days lists every date in the range in order.
func (r Range) Days() []civil.Date {
	var days []civil.Date
	for d := r.From; !d.After(r.To); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Bounds returns [From 00:00, To+1 00:00) in loc.
func (r Range) Bounds(loc *time.Location) (time.Time, time.Time) {
	return r.From.In(loc), r.To.AddDays(1).In(loc)
}

// Adapter fetches raw records from one external system.
// An empty result is success; failures must match ErrSourceUnavailable.
type Adapter interface {
	Name() string
	Kind() model.Kind
	Fetch(ctx context.Context, r Range) ([]model.RawRecord, error)
}

// Func adapts a plain function to the Adapter interface.
type Func struct {
	SourceName string
	RecordKind model.Kind
	FetchFunc  func(ctx context.Context, r Range) ([]model.RawRecord, error)
}

func (f Func) Name() string     { return f.SourceName }
func (f Func) Kind() model.Kind { return f.RecordKind }
func (f Func) Fetch(ctx context.Context, r Range) ([]model.RawRecord, error) {
	return f.FetchFunc(ctx, r)
}

// WithTimeout bounds a single fetch by d. Exceeding it yields
// ErrSourceUnavailable rather than blocking the pipeline.
func WithTimeout(ctx context.Context, a Adapter, r Range, d time.Duration) ([]model.RawRecord, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	type result struct {
		recs []model.RawRecord
		err  error
	}
	done := make(chan result, 1)
	go func() {
		recs, err := a.Fetch(ctx, r)
		done <- result{recs, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, Unavailable(a.Name(), res.err)
		}
		return res.recs, nil
	case <-ctx.Done():
		return nil, Unavailable(a.Name(), ctx.Err())
	}
}
