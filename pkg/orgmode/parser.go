// Package orgmode reads TODO headings from Org files as tasks.
package orgmode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/harrisonrobin/friday/pkg/model"
	"github.com/harrisonrobin/friday/pkg/source"
)

const SourceName = "orgmode"

// NoteTag marks a heading as a reminder rather than a work item.
const NoteTag = "note"

// Heading is one TODO entry. Deadline keeps the Org timestamp text,
// e.g. "2026-10-16 Fri" or "2026-10-16 Fri 15:00".
type Heading struct {
	ID       string
	Title    string
	Priority string // A, B or C
	Tags     []string
	Deadline string
	File     string
	Line     int
}

var (
	todoRegex     = regexp.MustCompile(`^\*+\s+TODO\s+(?:\[#([A-Z])\]\s*)?(.*?)(?:\s+(:[\w@:]+:))?\s*$`)
	headingRegex  = regexp.MustCompile(`^\*+\s`)
	deadlineRegex = regexp.MustCompile(`DEADLINE:\s+<(\d{4}-\d{2}-\d{2}(?:\s+[A-Za-z]{2,3})?(?:\s+\d{1,2}:\d{2})?)[^>]*>`)
	scheduleRegex = regexp.MustCompile(`SCHEDULED:\s+<(\d{4}-\d{2}-\d{2}(?:\s+[A-Za-z]{2,3})?(?:\s+\d{1,2}:\d{2})?)[^>]*>`)
	idRegex       = regexp.MustCompile(`^:ID:\s+(\S+)`)
)

// Parse reads every TODO heading from r. A heading ends at the next
// heading of any level.
func Parse(r io.Reader, file string) ([]Heading, error) {
	scanner := bufio.NewScanner(r)
	var headings []Heading
	var current *Heading
	var scheduled string

	flush := func() {
		if current == nil {
			return
		}
		if current.Deadline == "" {
			current.Deadline = scheduled
		}
		headings = append(headings, *current)
		current, scheduled = nil, ""
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		if headingRegex.MatchString(raw) {
			flush()
			if m := todoRegex.FindStringSubmatch(raw); m != nil {
				current = &Heading{
					Priority: m[1],
					Title:    strings.TrimSpace(m[2]),
					File:     file,
					Line:     lineNo,
				}
				if m[3] != "" {
					current.Tags = strings.Split(strings.Trim(m[3], ":"), ":")
				}
			}
			continue
		}
		if current == nil {
			continue
		}
		line := strings.TrimSpace(raw)
		if m := deadlineRegex.FindStringSubmatch(line); m != nil {
			current.Deadline = m[1]
		}
		if m := scheduleRegex.FindStringSubmatch(line); m != nil {
			scheduled = m[1]
		}
		if m := idRegex.FindStringSubmatch(line); m != nil {
			current.ID = m[1]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return headings, nil
}

// ParseFiles parses every file, failing on the first unreadable one.
func ParseFiles(paths []string) ([]Heading, error) {
	var all []Heading
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		hs, err := Parse(f, path)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		all = append(all, hs...)
	}
	return all, nil
}

// Adapter serves the TODO headings of a fixed set of files.
type Adapter struct {
	Files []string
}

func NewAdapter(files []string) *Adapter {
	return &Adapter{Files: files}
}

func (a *Adapter) Name() string     { return SourceName }
func (a *Adapter) Kind() model.Kind { return model.KindTask }

func (a *Adapter) Fetch(ctx context.Context, _ source.Range) ([]model.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, source.Unavailable(SourceName, err)
	}
	headings, err := ParseFiles(a.Files)
	if err != nil {
		return nil, source.Unavailable(SourceName, err)
	}
	recs := make([]model.RawRecord, 0, len(headings))
	for _, h := range headings {
		recs = append(recs, Record(h))
	}
	return recs, nil
}

// Record maps a heading onto a raw task record. Headings without an :ID:
// property are identified by file and line. The first tag names the
// project, else the file name does.
func Record(h Heading) model.RawRecord {
	rec := model.NewRawRecord(SourceName, model.KindTask)
	id := h.ID
	if id == "" {
		id = fmt.Sprintf("%s:%d", filepath.Base(h.File), h.Line)
	}
	rec.Set("id", id)
	rec.Set("title", h.Title)
	rec.Set("priority", h.Priority)
	rec.Set("due", h.Deadline)

	var project string
	for _, tag := range h.Tags {
		if tag == NoteTag {
			rec.Set("kind", string(model.KindNote))
			continue
		}
		if project == "" {
			project = tag
		}
	}
	if project == "" {
		project = strings.TrimSuffix(filepath.Base(h.File), filepath.Ext(h.File))
	}
	rec.Set("project", project)
	return rec
}
