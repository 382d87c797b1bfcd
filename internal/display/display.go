// Package display renders a code cell's outputs: stream text, rich mime
// bundles and error tracebacks.
//
// Rich outputs are rendered by the first mime type in the display order that
// both the bundle carries and a transform exists for, the way notebook
// front-ends pick the richest representation they can show.
package display

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/daviddao/nbview/internal/logger"
	"github.com/daviddao/nbview/internal/notebook"
)

// DefaultCollapsedLines is how many lines a collapsed output area shows.
const DefaultCollapsedLines = 12

// Models maps a widget model id to its saved state.
type Models map[string]notebook.WidgetModel

// Props is everything the display needs for one render.
type Props struct {
	Outputs      []notebook.Output
	DisplayOrder []string
	Transforms   Transforms
	Theme        string
	Tip          bool
	Expanded     bool
	IsHidden     bool
	Models       Models
	Width        int

	// CollapsedLines overrides DefaultCollapsedLines when positive.
	CollapsedLines int
}

var (
	stderrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

// Display renders output lists.
type Display struct {
	log *logger.Entry
}

// New returns a Display that logs transform failures.
func New() *Display {
	return &Display{log: logger.Named("display")}
}

// Render returns the rendered outputs, or "" when hidden or empty.
func (d *Display) Render(p Props) string {
	if p.IsHidden || len(p.Outputs) == 0 {
		return ""
	}
	order := p.DisplayOrder
	if len(order) == 0 {
		order = DefaultDisplayOrder
	}
	transforms := p.Transforms
	if transforms == nil {
		transforms = DefaultTransforms()
	}

	parts := make([]string, 0, len(p.Outputs))
	for _, out := range p.Outputs {
		if s := d.renderOutput(out, order, transforms, p); s != "" {
			parts = append(parts, s)
		}
	}
	body := strings.Join(parts, "\n")
	if !p.Expanded {
		limit := p.CollapsedLines
		if limit <= 0 {
			limit = DefaultCollapsedLines
		}
		body = collapse(body, limit)
	}
	return body
}

func (d *Display) renderOutput(out notebook.Output, order []string, transforms Transforms, p Props) string {
	switch out.OutputType {
	case notebook.OutputStream:
		text := strings.TrimRight(out.Text.String(), "\n")
		if out.Name == "stderr" {
			return renderLines(text, stderrStyle)
		}
		return text
	case notebook.OutputExecuteResult, notebook.OutputDisplayData:
		mime, ok := SelectMime(out.Data, order, transforms)
		if !ok {
			return ""
		}
		s, err := transforms[mime](Request{
			MimeType: mime,
			Bundle:   out.Data,
			Metadata: out.Metadata,
			Theme:    p.Theme,
			Width:    p.Width,
			Models:   p.Models,
		})
		if err != nil {
			d.log.WithError(err).WithField("mime", mime).Warn("transform failed")
			return dimStyle.Render(fmt.Sprintf("[%s: %v]", mime, err))
		}
		return strings.TrimRight(s, "\n")
	case notebook.OutputError:
		var b strings.Builder
		b.WriteString(errorStyle.Render(out.EName + ": " + out.EValue))
		if len(out.Traceback) > 0 {
			b.WriteRune('\n')
			// Tracebacks carry their own ANSI colouring.
			b.WriteString(strings.Join(out.Traceback, "\n"))
		}
		return b.String()
	}
	return dimStyle.Render(fmt.Sprintf("[unsupported output type %q]", out.OutputType))
}

// SelectMime returns the first mime type in order that bundle carries and
// transforms can render.
func SelectMime(bundle notebook.MimeBundle, order []string, transforms Transforms) (string, bool) {
	for _, mime := range order {
		if !bundle.Has(mime) {
			continue
		}
		if _, ok := transforms[mime]; ok {
			return mime, true
		}
	}
	return "", false
}

// collapse keeps the first limit lines and summarises the rest.
func collapse(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	hidden := len(lines) - limit
	noun := "lines"
	if hidden == 1 {
		noun = "line"
	}
	lines = append(lines[:limit], dimStyle.Render(fmt.Sprintf("… %d more %s", hidden, noun)))
	return strings.Join(lines, "\n")
}

// renderLines styles each line separately so a later per-line truncation
// never splits a style sequence across lines.
func renderLines(s string, style lipgloss.Style) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = style.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

// rawString decodes a JSON string payload, falling back to the raw bytes.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}
