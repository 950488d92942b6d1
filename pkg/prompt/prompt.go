// Package prompt renders a bundle into the text handed to the reasoner.
//
// Templates use text/template with the bundle's field names as keys, e.g.
// {{.DATE}} or {{.FREE_SLOTS}}. A file named <name>.md in the override
// directory replaces the built-in template of the same name.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/harrisonrobin/friday/pkg/bundle"
)

// Built-in template names.
const (
	DailyBriefing  = "daily-briefing"
	WeeklyPlanning = "weekly-planning"
	WeeklyReview   = "weekly-review"
)

// bareField matches {{DATE}}, which text/template reads as a function call.
var bareField = regexp.MustCompile(`\{\{\s*([A-Z][A-Z0-9_]*)\s*\}\}`)

//go:embed templates/*.md
var builtin embed.FS

// ForPeriod picks the template for a bundle period.
func ForPeriod(p bundle.Period) string {
	switch p {
	case bundle.Week:
		return WeeklyPlanning
	case bundle.Review:
		return WeeklyReview
	}
	return DailyBriefing
}

type Renderer struct {
	// Dir holds user overrides. Empty means built-ins only.
	Dir string
}

func NewRenderer(dir string) *Renderer {
	return &Renderer{Dir: dir}
}

// source returns the template text for name, preferring an override file.
func (r *Renderer) source(name string) (string, error) {
	if r.Dir != "" {
		data, err := os.ReadFile(filepath.Join(r.Dir, name+".md"))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to read template %s: %w", name, err)
		}
	}
	data, err := builtin.ReadFile("templates/" + name + ".md")
	if err != nil {
		return "", fmt.Errorf("unknown template %q", name)
	}
	return string(data), nil
}

// Load parses the template. Unknown placeholders are an error at render time.
func (r *Renderer) Load(name string) (*template.Template, error) {
	text, err := r.source(name)
	if err != nil {
		return nil, err
	}
	if m := bareField.FindStringSubmatch(text); m != nil {
		return nil, fmt.Errorf("failed to parse template %s: placeholder %s must be written {{.%s}}", name, m[0], m[1])
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// Render fills template name with b's fields.
func (r *Renderer) Render(name string, b bundle.Bundle) (string, error) {
	tmpl, err := r.Load(name)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, b.Fields()); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return sb.String(), nil
}
