// Package google reads events from Google Calendar accounts.
package google

import (
	"context"
	"fmt"
	"time"

	"github.com/harrisonrobin/friday/pkg/logging"
	"github.com/harrisonrobin/friday/pkg/model"
	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
)

const (
	SourceName      = "google"
	primaryCalendar = "primary"
)

// CalendarClient reads events from the calendars of one account.
type CalendarClient struct {
	srv       *calendar.Service
	label     string
	calendars []string
	timezone  string
	log       *zap.Logger
}

// NewCalendarClient wraps srv. calendars lists display names to read;
// empty means the primary calendar.
func NewCalendarClient(srv *calendar.Service, label string, calendars []string, timezone string, log *zap.Logger) *CalendarClient {
	return &CalendarClient{
		srv:       srv,
		label:     label,
		calendars: calendars,
		timezone:  timezone,
		log:       logging.OrNop(log).With(zap.String("account", label)),
	}
}

func (c *CalendarClient) Label() string { return c.label }

// CalendarIDs resolves the configured display names to calendar IDs.
// Unknown names are skipped; if none resolve the primary calendar is used.
func (c *CalendarClient) CalendarIDs(ctx context.Context) ([]string, error) {
	if len(c.calendars) == 0 {
		return []string{primaryCalendar}, nil
	}
	calendarList, err := c.srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	byName := make(map[string]string, len(calendarList.Items))
	for _, item := range calendarList.Items {
		byName[item.Summary] = item.Id
	}

	var ids []string
	for _, name := range c.calendars {
		id, ok := byName[name]
		if !ok {
			c.log.Warn("calendar not found", zap.String("calendar", name))
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []string{primaryCalendar}, nil
	}
	return ids, nil
}

// ListEvents fetches single (expanded) events starting before timeMax and
// ending after timeMin, ordered by start.
func (c *CalendarClient) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	call := c.srv.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	if c.timezone != "" {
		call = call.TimeZone(c.timezone)
	}

	var items []*calendar.Event
	err := call.Pages(ctx, func(page *calendar.Events) error {
		items = append(items, page.Items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar %s: %w", calendarID, err)
	}
	return items, nil
}

// Records returns every event of the account's calendars in [from, to).
func (c *CalendarClient) Records(ctx context.Context, from, to time.Time) ([]model.RawRecord, error) {
	ids, err := c.CalendarIDs(ctx)
	if err != nil {
		return nil, err
	}
	var recs []model.RawRecord
	for _, id := range ids {
		events, err := c.ListEvents(ctx, id, from, to)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			if rec, ok := Record(e, c.label); ok {
				recs = append(recs, rec)
			}
		}
	}
	return recs, nil
}

// Record maps an API event onto a raw event record. Cancelled events and
// events without a start are skipped.
func Record(e *calendar.Event, label string) (model.RawRecord, bool) {
	if e == nil || e.Status == "cancelled" || e.Start == nil {
		return model.RawRecord{}, false
	}
	rec := model.NewRawRecord(SourceName, model.KindEvent)
	title := e.Summary
	if title == "" {
		title = "Untitled"
	}
	rec.Set("title", title)
	rec.Set("location", e.Location)
	rec.Set("calendar", label)

	switch {
	case e.Start.Date != "":
		rec.Set("start", e.Start.Date)
		rec.Set("all_day", true)
		if e.End != nil {
			rec.Set("end", e.End.Date)
		}
	case e.Start.DateTime != "":
		rec.Set("start", e.Start.DateTime)
		if e.End != nil {
			rec.Set("end", e.End.DateTime)
		}
	default:
		return model.RawRecord{}, false
	}
	return rec, true
}
