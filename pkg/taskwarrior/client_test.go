package taskwarrior

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/harrisonrobin/friday/pkg/model"
	"github.com/harrisonrobin/friday/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const export = `[
{
	"id": 1,
	"uuid": "f45a05b3-c12e-42e5-9c9c-333333333333",
	"description": "Buy milk",
	"status": "pending",
	"due": "20230101T120000Z",
	"project": "Groceries",
	"priority": "H",
	"tags": ["buy", "food"],
	"urgency": 9.2
},
{
	"id": 2,
	"uuid": "a0000000-0000-0000-0000-000000000002",
	"description": "Dentist on Friday",
	"status": "pending",
	"scheduled": "20230103T000000Z",
	"tags": ["note"]
},
{
	"id": 0,
	"uuid": "a0000000-0000-0000-0000-000000000003",
	"description": "Already done",
	"status": "completed"
}
]`

func TestParseExport(t *testing.T) {
	tasks, err := ParseExport([]byte(export))
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	task := tasks[0]
	assert.Equal(t, "f45a05b3-c12e-42e5-9c9c-333333333333", task.UUID)
	assert.Equal(t, "Buy milk", task.Description)
	assert.Equal(t, "Groceries", task.Project)
	assert.Equal(t, "H", task.Priority)
	assert.Len(t, task.Tags, 2)
	expectedDue, _ := time.Parse(time.RFC3339, "2023-01-01T12:00:00Z")
	assert.True(t, task.Due.Time.Equal(expectedDue))
	assert.Nil(t, task.Scheduled)
}

func TestFetchMapsPendingTasks(t *testing.T) {
	var gotName string
	var gotArgs []string
	c := NewClient("task", []string{"+work"})
	c.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte(export), nil
	}

	recs, err := c.Fetch(context.Background(), source.Range{})
	require.NoError(t, err)
	assert.Equal(t, "task", gotName)
	assert.Equal(t, []string{"+work", "status:pending", "export", "rc.hooks=0", "rc.confirmation=off"}, gotArgs)

	require.Len(t, recs, 2)
	assert.Equal(t, SourceName, recs[0].Source)
	assert.Equal(t, model.KindTask, recs[0].Kind)
	assert.Equal(t, "Buy milk", recs[0].String("title"))
	assert.Equal(t, "20230101T120000Z", recs[0].String("due"))
	assert.Equal(t, "H", recs[0].String("priority"))
	assert.False(t, recs[0].Has("kind"))

	assert.Equal(t, "20230103T000000Z", recs[1].String("due"))
	assert.Equal(t, "note", recs[1].String("kind"))
	assert.False(t, recs[1].Has("project"))
}

func TestFetchFailureIsUnavailable(t *testing.T) {
	c := NewClient("", nil)
	c.run = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("task: command not found")
	}
	_, err := c.Fetch(context.Background(), source.Range{})
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)

	c.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Configuration override rc.hooks:0\n[not json"), nil
	}
	_, err = c.Fetch(context.Background(), source.Range{})
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
}

func TestEmptyExportIsSuccess(t *testing.T) {
	c := NewClient("task", nil)
	c.run = func(context.Context, string, ...string) ([]byte, error) { return []byte("[]"), nil }
	recs, err := c.Fetch(context.Background(), source.Range{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCustomTimeLayouts(t *testing.T) {
	var ct CustomTime
	require.NoError(t, json.Unmarshal([]byte(`"20261016T150000Z"`), &ct))
	assert.Equal(t, "20261016T150000Z", ct.String())

	require.NoError(t, json.Unmarshal([]byte(`"2026-10-16T15:00:00Z"`), &ct))
	assert.Equal(t, "20261016T150000Z", ct.String())

	require.NoError(t, json.Unmarshal([]byte(`""`), &ct))
	assert.True(t, ct.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ct))

	var unset *CustomTime
	assert.Equal(t, "", unset.String())
}
