// Package journal stores the reasoner's output as one markdown file per day.
package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/civil"
)

// Section headers written by the CLI.
const (
	MorningBriefing = "Morning Briefing"
	WeeklyPlan      = "Weekly Plan"
	WeeklyReview    = "Weekly Review"
)

// Entry is one day's journal file.
type Entry struct {
	Date    civil.Date
	Content string
}

// FileJournal keeps <Dir>/<YYYY-MM-DD>.md.
type FileJournal struct {
	Dir string
}

func NewFileJournal(dir string) *FileJournal {
	return &FileJournal{Dir: dir}
}

func (j *FileJournal) path(d civil.Date) string {
	return filepath.Join(j.Dir, d.String()+".md")
}

// Read returns the entry for d, or ok=false when there is none.
func (j *FileJournal) Read(d civil.Date) (content string, ok bool, err error) {
	data, err := os.ReadFile(j.path(d))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read journal %s: %w", d, err)
	}
	return string(data), true, nil
}

// Append adds a "## header" section to the entry for d, separated from any
// existing content by a horizontal rule.
func (j *FileJournal) Append(d civil.Date, header, content string) error {
	existing, ok, err := j.Read(d)
	if err != nil {
		return err
	}
	section := "## " + header + "\n\n" + content
	if ok {
		section = existing + "\n\n---\n\n" + section
	}
	return j.write(d, section)
}

func (j *FileJournal) write(d civil.Date, content string) error {
	if err := os.MkdirAll(j.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}
	f, err := os.CreateTemp(j.Dir, ".tmp-*.md")
	if err != nil {
		return fmt.Errorf("failed to create journal file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write journal %s: %w", d, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, j.path(d)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write journal %s: %w", d, err)
	}
	return nil
}

// HasSection reports whether the entry for d has a line that is exactly
// "## header".
func (j *FileJournal) HasSection(d civil.Date, header string) (bool, error) {
	content, ok, err := j.Read(d)
	if err != nil || !ok {
		return false, err
	}
	want := "## " + header
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimRight(line, " \t\r") == want {
			return true, nil
		}
	}
	return false, nil
}

// ListDates returns the dates in [from, to] that have an entry, oldest first.
// Files not named after a date are ignored.
func (j *FileJournal) ListDates(from, to civil.Date) ([]civil.Date, error) {
	entries, err := os.ReadDir(j.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var dates []civil.Date
	for _, de := range entries {
		stem, ok := strings.CutSuffix(de.Name(), ".md")
		if de.IsDir() || !ok {
			continue
		}
		d, err := civil.ParseDate(stem)
		if err != nil {
			continue
		}
		if !d.Before(from) && !d.After(to) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })
	return dates, nil
}

// ReadRange returns every non-empty entry in [from, to], oldest first.
func (j *FileJournal) ReadRange(from, to civil.Date) ([]Entry, error) {
	dates, err := j.ListDates(from, to)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, d := range dates {
		content, ok, err := j.Read(d)
		if err != nil {
			return nil, err
		}
		if ok && strings.TrimSpace(content) != "" {
			out = append(out, Entry{Date: d, Content: content})
		}
	}
	return out, nil
}
