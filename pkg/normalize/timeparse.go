package normalize

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Layouts carrying their own offset, as emitted by the Google and TickTick
// APIs and Taskwarrior exports.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"20060102T150405Z",
}

// Wall-clock layouts interpreted in the normalizer's location
// (icalPal, gcalcli, Org-mode).
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02 Mon 15:04",
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 Mon",
	"20060102",
}

// parseTime parses s into an instant. dateOnly is true when s carried no
// time of day, in which case the result is local midnight.
func (n Normalizer) parseTime(s string) (t time.Time, dateOnly bool, err error) {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc()); err == nil {
			return t, false, nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc()); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized time format")
}

// parseDate returns the local calendar date of s.
func (n Normalizer) parseDate(s string) (civil.Date, error) {
	t, dateOnly, err := n.parseTime(s)
	if err != nil {
		return civil.Date{}, err
	}
	if dateOnly {
		return civil.DateOf(t), nil
	}
	return civil.DateOf(t.In(n.loc())), nil
}
