package icalpal

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/harrisonrobin/friday/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const output = `[
	{"title":"Standup","calendar":"Work","sctime":"2026-10-16 09:00:00 -0400","ectime":"2026-10-16 09:30:00 -0400","location":"Zoom","all_day":0},
	{"title":"Holiday","calendar":"Holidays","sctime":"2026-10-16 00:00:00 -0400","all_day":1},
	{"title":"Gym","calendar":"Personal","sseconds":1792152000,"eseconds":1792155600,"address":"Main St"},
	{"title":"Broken","calendar":"Work"}
]`

var day = civil.Date{Year: 2026, Month: time.October, Day: 16}

func fake(out string, err error) source.Runner {
	return func(context.Context, string, ...string) ([]byte, error) {
		return []byte(out), err
	}
}

func TestFetch(t *testing.T) {
	a := NewAdapter("", nil, nil)
	var gotArgs []string
	a.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "icalPal", name)
		gotArgs = args
		return []byte(output), nil
	}

	recs, err := a.Fetch(context.Background(), source.Range{From: day, To: day.AddDays(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"events", "--from", "2026-10-16", "--days", "3", "-o", "json"}, gotArgs)
	require.Len(t, recs, 3)

	assert.Equal(t, "2026-10-16 09:00:00", recs[0].String("start"))
	assert.Equal(t, "2026-10-16 09:30:00", recs[0].String("end"))
	assert.Equal(t, "Zoom", recs[0].String("location"))
	assert.Equal(t, "Work", recs[0].String("calendar"))

	assert.True(t, recs[1].Bool("all_day"))
	assert.False(t, recs[1].Has("end"))

	assert.Equal(t, time.Unix(1792152000, 0).UTC().Format(time.RFC3339), recs[2].String("start"))
	assert.Equal(t, "Main St", recs[2].String("location"))
}

func TestCalendarFilters(t *testing.T) {
	a := NewAdapter("icalPal", []string{"Work", "Personal"}, []string{"Personal"})
	a.run = fake(output, nil)
	recs, err := a.Fetch(context.Background(), source.Day(day))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Standup", recs[0].String("title"))

	a = NewAdapter("icalPal", nil, []string{"Holidays"})
	a.run = fake(output, nil)
	recs, err = a.Fetch(context.Background(), source.Day(day))
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestEmptyOutputIsSuccess(t *testing.T) {
	a := NewAdapter("icalPal", nil, nil)
	a.run = fake("\n", nil)
	recs, err := a.Fetch(context.Background(), source.Day(day))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFailuresAreUnavailable(t *testing.T) {
	a := NewAdapter("icalPal", nil, nil)
	a.run = fake("", errors.New("icalPal: executable file not found in $PATH"))
	_, err := a.Fetch(context.Background(), source.Day(day))
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)

	a.run = fake("[{", nil)
	_, err = a.Fetch(context.Background(), source.Day(day))
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
}
