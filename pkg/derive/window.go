package derive

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/harrisonrobin/friday/pkg/model"
)

// Window is a time-of-day range such as 09:00-11:00, independent of date.
type Window struct {
	Start time.Duration // offset from midnight
	End   time.Duration
}

// ParseWindow parses "HH:MM-HH:MM". "24:00" is accepted as an end.
func ParseWindow(s string) (Window, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Window{}, fmt.Errorf("invalid window %q: want HH:MM-HH:MM", s)
	}
	start, err := parseClock(from)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window %q: %w", s, err)
	}
	end, err := parseClock(to)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window %q: %w", s, err)
	}
	if end <= start {
		return Window{}, fmt.Errorf("invalid window %q: end must be after start", s)
	}
	return Window{Start: start, End: end}, nil
}

// ParseWindows parses every entry, failing on the first invalid one.
func ParseWindows(specs []string) ([]Window, error) {
	out := make([]Window, 0, len(specs))
	for _, s := range specs {
		w, err := ParseWindow(s)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func parseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return 24 * time.Hour, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		// Bare hours like "9" or "17" are common in hand-written config.
		t, err = time.Parse("15", s)
		if err != nil {
			return 0, fmt.Errorf("invalid clock time %q", s)
		}
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// On places the window on day d in loc. Offsets are applied to the wall
// clock so DST transitions keep 09:00 at 09:00.
func (w Window) On(d civil.Date, loc *time.Location) model.Interval {
	return model.Interval{
		Start: wallClock(d, w.Start, loc),
		End:   wallClock(d, w.End, loc),
	}
}

func wallClock(d civil.Date, off time.Duration, loc *time.Location) time.Time {
	h := int(off / time.Hour)
	m := int((off % time.Hour) / time.Minute)
	return time.Date(d.Year, d.Month, d.Day, h, m, 0, 0, loc)
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d",
		int(w.Start/time.Hour), int(w.Start%time.Hour/time.Minute),
		int(w.End/time.Hour), int(w.End%time.Hour/time.Minute))
}

// FullDay is 00:00-24:00.
var FullDay = Window{Start: 0, End: 24 * time.Hour}
