package taskwarrior

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Task statuses as exported.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusWaiting   = "waiting"
	StatusDeleted   = "deleted"
)

// exportLayouts are tried in order. Taskwarrior writes the compact UTC form;
// hooks and older exports sometimes write ISO 8601.
var exportLayouts = []string{
	"20060102T150405Z",
	time.RFC3339,
}

// CustomTime is a timestamp in export format. An empty or "0" value is unset.
type CustomTime struct {
	time.Time
}

func (ct *CustomTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "0" {
		ct.Time = time.Time{}
		return nil
	}
	for _, layout := range exportLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ct.Time = t
			return nil
		}
	}
	return fmt.Errorf("invalid taskwarrior time %q", s)
}

// String formats the time in the compact export layout, or "" when unset.
func (ct *CustomTime) String() string {
	if ct == nil || ct.Time.IsZero() {
		return ""
	}
	return ct.Time.UTC().Format(exportLayouts[0])
}

// Task is the subset of a `task export` entry friday reads.
type Task struct {
	UUID        string      `json:"uuid"`
	ID          int         `json:"id"`
	Description string      `json:"description"`
	Due         *CustomTime `json:"due,omitempty"`
	Scheduled   *CustomTime `json:"scheduled,omitempty"`
	Status      string      `json:"status"`
	Project     string      `json:"project,omitempty"`
	Priority    string      `json:"priority,omitempty"` // H, M or L
	Tags        []string    `json:"tags,omitempty"`
	Urgency     float64     `json:"urgency,omitempty"`
}

// HasTag reports whether the task carries tag.
func (t Task) HasTag(tag string) bool {
	return slices.Contains(t.Tags, tag)
}
