// Package ticktick reads tasks from the TickTick Open API.
package ticktick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/harrisonrobin/friday/pkg/model"
	"github.com/harrisonrobin/friday/pkg/source"
	"golang.org/x/sync/errgroup"
)

const (
	SourceName     = "ticktick"
	DefaultBaseURL = "https://api.ticktick.com/open/v1"

	// statusOpen is the API status of an uncompleted task.
	statusOpen = 0
)

type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed,omitempty"`
}

type Task struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Title     string `json:"title"`
	DueDate   string `json:"dueDate,omitempty"`
	Priority  int    `json:"priority"`
	Kind      string `json:"kind,omitempty"` // TEXT, NOTE or CHECKLIST
	Status    int    `json:"status"`
}

type projectData struct {
	Tasks []Task `json:"tasks"`
}

// Client talks to the API with an HTTP client that already carries the
// bearer token (see auth.Client).
type Client struct {
	http    *http.Client
	baseURL string

	// Concurrency bounds parallel project requests.
	Concurrency int
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimSuffix(baseURL, "/"), Concurrency: 4}
}

func (c *Client) Name() string     { return SourceName }
func (c *Client) Kind() model.Kind { return model.KindTask }

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("GET %s: failed to decode response: %w", path, err)
	}
	return nil
}

func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.get(ctx, "/project", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) ProjectTasks(ctx context.Context, projectID string) ([]Task, error) {
	var data projectData
	if err := c.get(ctx, "/project/"+url.PathEscape(projectID)+"/data", &data); err != nil {
		return nil, err
	}
	return data.Tasks, nil
}

// Fetch reads the open tasks of every open project. The range is ignored:
// tasks are fetched as of now and filtered by due date downstream.
func (c *Client) Fetch(ctx context.Context, _ source.Range) ([]model.RawRecord, error) {
	projects, err := c.Projects(ctx)
	if err != nil {
		return nil, source.Unavailable(SourceName, err)
	}

	var open []Project
	for _, p := range projects {
		if !p.Closed {
			open = append(open, p)
		}
	}

	perProject := make([][]Task, len(open))
	g, gctx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}
	for i, p := range open {
		i, p := i, p // per-iteration copies (go directive is 1.21)
		g.Go(func() error {
			tasks, err := c.ProjectTasks(gctx, p.ID)
			if err != nil {
				return fmt.Errorf("project %s: %w", p.Name, err)
			}
			perProject[i] = tasks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, source.Unavailable(SourceName, err)
	}

	var recs []model.RawRecord
	for i, tasks := range perProject {
		for _, t := range tasks {
			if t.Status != statusOpen {
				continue
			}
			recs = append(recs, Record(t, open[i].Name))
		}
	}
	return recs, nil
}

// Record maps an API task onto a raw task record.
func Record(t Task, project string) model.RawRecord {
	rec := model.NewRawRecord(SourceName, model.KindTask)
	rec.Set("id", t.ID)
	rec.Set("title", t.Title)
	rec.Set("due", t.DueDate)
	rec.Set("priority", t.Priority)
	rec.Set("project", project)
	rec.Set("kind", strings.ToLower(t.Kind))
	return rec
}
