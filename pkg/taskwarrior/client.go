// Package taskwarrior reads pending tasks from the local Taskwarrior
// database through `task export`.
package taskwarrior

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harrisonrobin/friday/pkg/model"
	"github.com/harrisonrobin/friday/pkg/source"
)

// SourceName tags every record this adapter produces.
const SourceName = "taskwarrior"

// NoteTag marks a task as a reminder rather than a work item.
const NoteTag = "note"

type Client struct {
	Command string
	Filter  []string
	run     source.Runner
}

// NewClient runs command (usually "task") with filter prepended to the
// export arguments.
func NewClient(command string, filter []string) *Client {
	if command == "" {
		command = "task"
	}
	return &Client{Command: command, Filter: filter, run: source.Exec}
}

func (c *Client) Name() string     { return SourceName }
func (c *Client) Kind() model.Kind { return model.KindTask }

// GetTasks exports pending tasks matching the client's filter.
func (c *Client) GetTasks(ctx context.Context) ([]Task, error) {
	args := append([]string{}, c.Filter...)
	args = append(args, "status:pending", "export", "rc.hooks=0", "rc.confirmation=off")

	output, err := c.run(ctx, c.Command, args...)
	if err != nil {
		return nil, fmt.Errorf("taskwarrior command failed: %w", err)
	}
	return ParseExport(output)
}

// ParseExport decodes the JSON array written by `task export`.
func ParseExport(b []byte) ([]Task, error) {
	var tasks []Task
	if err := json.Unmarshal(b, &tasks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal taskwarrior output: %w", err)
	}
	return tasks, nil
}

// Fetch ignores the range: pending tasks are read as of now.
func (c *Client) Fetch(ctx context.Context, _ source.Range) ([]model.RawRecord, error) {
	tasks, err := c.GetTasks(ctx)
	if err != nil {
		return nil, source.Unavailable(SourceName, err)
	}
	recs := make([]model.RawRecord, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != "" && t.Status != StatusPending {
			continue
		}
		recs = append(recs, Record(t))
	}
	return recs, nil
}

// Record maps an exported task onto a raw task record. Due falls back to
// the scheduled date.
func Record(t Task) model.RawRecord {
	rec := model.NewRawRecord(SourceName, model.KindTask)
	rec.Set("id", t.UUID)
	rec.Set("title", t.Description)
	rec.Set("project", t.Project)
	rec.Set("priority", t.Priority)
	due := t.Due.String()
	if due == "" {
		due = t.Scheduled.String()
	}
	rec.Set("due", due)
	if t.HasTag(NoteTag) {
		rec.Set("kind", string(model.KindNote))
	}
	return rec
}
