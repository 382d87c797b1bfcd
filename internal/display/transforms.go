package display

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/net/html"

	"github.com/daviddao/nbview/internal/notebook"
)

// Well-known mime types.
const (
	MimeWidget   = "application/vnd.jupyter.widget-view+json"
	MimeJSON     = "application/json"
	MimeMarkdown = "text/markdown"
	MimeLatex    = "text/latex"
	MimePlain    = "text/plain"
	MimeHTML     = "text/html"
	MimeSVG      = "image/svg+xml"
	MimePNG      = "image/png"
	MimeJPEG     = "image/jpeg"
	MimeGIF      = "image/gif"
)

// DefaultDisplayOrder prefers representations that read well in a terminal.
var DefaultDisplayOrder = []string{
	MimeWidget,
	MimeMarkdown,
	MimeLatex,
	MimePlain,
	MimeJSON,
	MimeHTML,
	MimeSVG,
	MimePNG,
	MimeJPEG,
	MimeGIF,
}

// Request is the input to a Transform.
type Request struct {
	MimeType string
	Bundle   notebook.MimeBundle
	Metadata map[string]json.RawMessage
	Theme    string
	Width    int
	Models   Models
}

// Transform renders one mime type of a bundle.
type Transform func(Request) (string, error)

// Transforms maps a mime type to its renderer.
type Transforms map[string]Transform

// DefaultTransforms returns a fresh map of the built-in renderers.
func DefaultTransforms() Transforms {
	return Transforms{
		MimeWidget:   renderWidget,
		MimeMarkdown: renderMarkdown,
		MimeLatex:    renderText,
		MimePlain:    renderText,
		MimeJSON:     renderJSON,
		MimeHTML:     renderHTML,
		MimeSVG:      renderImage,
		MimePNG:      renderImage,
		MimeJPEG:     renderImage,
		MimeGIF:      renderImage,
	}
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89B4FA"))
	widgetStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CBA6F7"))
)

func renderText(r Request) (string, error) {
	return r.Bundle.Text(r.MimeType), nil
}

func renderMarkdown(r Request) (string, error) {
	return Markdown(r.Bundle.Text(r.MimeType)), nil
}

// Markdown renders markdown text for the terminal. Only headings are
// styled; everything else is already readable as written.
func Markdown(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		trimmed := strings.TrimLeft(l, " ")
		if strings.HasPrefix(trimmed, "#") {
			lines[i] = headingStyle.Render(strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
		}
	}
	return strings.Join(lines, "\n")
}

func renderJSON(r Request) (string, error) {
	raw := r.Bundle[r.MimeType]
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", fmt.Errorf("indent json: %w", err)
	}
	return buf.String(), nil
}

// renderHTML extracts the visible text of an HTML fragment.
func renderHTML(r Request) (string, error) {
	z := html.NewTokenizer(strings.NewReader(r.Bundle.Text(r.MimeType)))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tidyLines(b.String()), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "div", "tr", "li", "h1", "h2", "h3", "h4", "table":
				b.WriteRune('\n')
			case "td", "th":
				b.WriteRune('\t')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div", "tr", "table", "h1", "h2", "h3", "h4":
				b.WriteRune('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// tidyLines trims each line and collapses runs of blank lines.
func tidyLines(s string) string {
	var out []string
	blank := false
	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, l)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func renderImage(r Request) (string, error) {
	payload := r.Bundle.Text(r.MimeType)
	size := len(payload)
	if r.MimeType != MimeSVG {
		clean := strings.Map(func(c rune) rune {
			if c == '\n' || c == '\r' || c == ' ' {
				return -1
			}
			return c
		}, payload)
		data, err := base64.StdEncoding.DecodeString(clean)
		if err != nil {
			return "", fmt.Errorf("decode image: %w", err)
		}
		size = len(data)
	}
	dims := ""
	if meta, ok := r.Metadata[r.MimeType]; ok {
		var m struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		}
		if json.Unmarshal(meta, &m) == nil && m.Width > 0 && m.Height > 0 {
			dims = fmt.Sprintf(" %dx%d", m.Width, m.Height)
		}
	}
	return dimStyle.Render(fmt.Sprintf("[%s%s, %s]", r.MimeType, dims, humanize.Bytes(uint64(size)))), nil
}

// renderWidget resolves a widget view against the saved widget models.
func renderWidget(r Request) (string, error) {
	var ref struct {
		ModelID string `json:"model_id"`
	}
	if err := json.Unmarshal(r.Bundle[r.MimeType], &ref); err != nil {
		return "", fmt.Errorf("decode widget view: %w", err)
	}
	model, ok := r.Models[ref.ModelID]
	if !ok {
		return dimStyle.Render(fmt.Sprintf("[widget %s: state not saved]", ref.ModelID)), nil
	}
	name := strings.TrimSuffix(model.ModelName, "Model")
	if name == "" {
		name = "widget"
	}
	var attrs []string
	for _, k := range widgetAttrs(model.State) {
		attrs = append(attrs, fmt.Sprintf("%s=%s", k, rawString(model.State[k])))
	}
	label := name
	if len(attrs) > 0 {
		label += " " + strings.Join(attrs, " ")
	}
	return widgetStyle.Render("[" + label + "]"), nil
}

// widgetAttrs picks the human-relevant keys of a widget's state, in a
// fixed order.
func widgetAttrs(state map[string]json.RawMessage) []string {
	var keys []string
	for _, k := range []string{"description", "value", "min", "max"} {
		raw, ok := state[k]
		if !ok || len(raw) == 0 || string(raw) == `""` || string(raw) == "null" {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}
