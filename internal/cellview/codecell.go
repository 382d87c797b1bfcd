// Package cellview renders notebook cells for the terminal.
//
// CodeCell composes four collaborators: an execution-count prompt, a
// read-only editor, an output display and a math post-processor applied to
// the outputs. It reads the cell record and never mutates it; everything it
// shows is derived from the props of the current render.
package cellview

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/daviddao/nbview/internal/display"
	"github.com/daviddao/nbview/internal/editor"
	"github.com/daviddao/nbview/internal/latex"
	"github.com/daviddao/nbview/internal/notebook"
)

// ClassRunning marks a cell that is executing.
const ClassRunning = "cell-running"

// ExecutionState is what the editor is told about the kernel. A viewer is
// never attached to one.
const ExecutionState = "not connected"

// Config is the render configuration shared by every cell of a notebook.
type Config struct {
	Language     string
	Theme        string
	Tip          bool
	DisplayOrder []string
	Transforms   display.Transforms
	Models       display.Models

	// Width is the column budget of a rendered cell; 0 means unbounded.
	Width int
	// CollapsedLines is passed to the display for non-expanded outputs.
	CollapsedLines int
}

// Props is the input of a code cell render. Props is comparable; two equal
// values render identically.
type Props struct {
	Cell         *notebook.Cell
	ID           string
	Running      bool
	SourceHidden bool
	Config       *Config
}

// State holds the flags a render derives from Props.
type State struct {
	Running        bool
	InputHidden    bool
	OutputHidden   bool
	OutputExpanded bool
}

// Derive computes the display flags of a cell.
func Derive(p Props) State {
	md := p.Cell.Metadata
	return State{
		Running:        p.Running || p.Cell.PapermillStatus() == notebook.StatusRunning,
		InputHidden:    p.SourceHidden || md.InputHidden.True() || md.HideInput.True(),
		OutputHidden:   md.OutputHidden.True(),
		OutputExpanded: md.OutputExpanded.Or(true),
	}
}

// Prompt renders the execution-count indicator.
type Prompt interface {
	Render(PromptProps) string
}

// Editor renders cell source.
type Editor interface {
	Render(editor.Props) string
}

// Display renders cell outputs.
type Display interface {
	Render(display.Props) string
}

// PostProcessor rewrites rendered output, e.g. to typeset math.
type PostProcessor interface {
	Process(string) string
}

// CodeCell renders code cells.
type CodeCell struct {
	Prompt  Prompt
	Editor  Editor
	Display Display
	Math    PostProcessor
}

// NewCodeCell returns a CodeCell wired to the default collaborators.
func NewCodeCell() *CodeCell {
	return &CodeCell{
		Prompt:  Inputs{},
		Editor:  editor.New(),
		Display: display.New(),
		Math:    latex.New(),
	}
}

// Rendered is the rendered subtree of one cell.
type Rendered struct {
	Classes []string
	Banner  string
	// Input is the prompt and editor row; empty when input is hidden.
	Input  string
	Output string
}

// HasClass reports whether the cell carries class c.
func (r Rendered) HasClass(c string) bool {
	for _, have := range r.Classes {
		if have == c {
			return true
		}
	}
	return false
}

var (
	cellStyle = lipgloss.NewStyle().
			Border(lipgloss.HiddenBorder(), false, false, false, true)
	runningCellStyle = lipgloss.NewStyle().
				Border(lipgloss.ThickBorder(), false, false, false, true).
				BorderForeground(lipgloss.Color("#F9E2AF"))
)

// View joins the parts into the final block.
func (r Rendered) View() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{r.Banner, r.Input, r.Output} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	body := strings.Join(parts, "\n")
	if r.HasClass(ClassRunning) {
		return runningCellStyle.Render(body)
	}
	return cellStyle.Render(body)
}

func noopChange(string)    {}
func noopFocusChange(bool) {}
func noopFocus()           {}

// Render renders a code cell. A nil Config renders with defaults.
func (c *CodeCell) Render(p Props) Rendered {
	if p.Cell == nil {
		return Rendered{}
	}
	cfg := p.Config
	if cfg == nil {
		cfg = &Config{}
	}
	st := Derive(p)

	var r Rendered
	if st.Running {
		r.Classes = append(r.Classes, ClassRunning)
	}

	// The cell border takes one column.
	width := cfg.Width
	if width > 0 {
		width--
	}
	r.Banner = PapermillBanner(BannerPropsFromMetadata(p.Cell.Metadata.Papermill, width))

	editorWidth := 0
	if width > GutterWidth {
		editorWidth = width - GutterWidth
	}

	if !st.InputHidden {
		prompt := c.Prompt.Render(PromptProps{
			ExecutionCount: p.Cell.ExecutionCount,
			Running:        st.Running,
		})
		src := c.Editor.Render(editor.Props{
			ID:              p.ID,
			Input:           p.Cell.Source.String(),
			Language:        cfg.Language,
			Theme:           cfg.Theme,
			Tip:             cfg.Tip,
			Completion:      true,
			CellFocused:     false,
			EditorFocused:   false,
			CursorBlinkRate: 0,
			ExecutionState:  ExecutionState,
			Width:           editorWidth,
			OnChange:        noopChange,
			OnFocusChange:   noopFocusChange,
			FocusAbove:      noopFocus,
			FocusBelow:      noopFocus,
		})
		r.Input = lipgloss.JoinHorizontal(lipgloss.Top, prompt, src)
	}

	out := c.Display.Render(display.Props{
		Outputs:        p.Cell.Outputs,
		DisplayOrder:   cfg.DisplayOrder,
		Transforms:     cfg.Transforms,
		Theme:          cfg.Theme,
		Tip:            cfg.Tip,
		Expanded:       st.OutputExpanded,
		IsHidden:       st.OutputHidden,
		Models:         cfg.Models,
		Width:          editorWidth,
		CollapsedLines: cfg.CollapsedLines,
	})
	if out != "" {
		out = c.Math.Process(out)
		r.Output = indent(out, GutterWidth)
	}
	return r
}

// indent prefixes every non-empty line with n spaces.
func indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}
