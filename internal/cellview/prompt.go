package cellview

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// GutterWidth is the column budget of the execution-count prompt.
const GutterWidth = 9

// PromptProps is the input of a Prompt.
type PromptProps struct {
	ExecutionCount *int
	Running        bool
}

// Inputs is the default execution-count indicator.
type Inputs struct{}

var (
	promptStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	promptRunningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")).Bold(true)
)

// Label returns the bare prompt text: "In [*]:" while running, "In [n]:"
// once executed and "In [ ]:" otherwise.
func Label(p PromptProps) string {
	switch {
	case p.Running:
		return "In [*]:"
	case p.ExecutionCount != nil:
		return fmt.Sprintf("In [%d]:", *p.ExecutionCount)
	}
	return "In [ ]:"
}

// Render returns the prompt right-aligned in the gutter.
func (Inputs) Render(p PromptProps) string {
	label := runewidth.FillLeft(Label(p), GutterWidth-1) + " "
	if p.Running {
		return promptRunningStyle.Render(label)
	}
	return promptStyle.Render(label)
}
