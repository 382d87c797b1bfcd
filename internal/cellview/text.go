package cellview

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/daviddao/nbview/internal/display"
	"github.com/daviddao/nbview/internal/latex"
	"github.com/daviddao/nbview/internal/notebook"
)

var rawCellStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))

// TextCell renders markdown and raw cells, which carry no prompt or outputs.
// Hidden input hides the whole cell.
func TextCell(cell *notebook.Cell, sourceHidden bool) string {
	if cell == nil || sourceHidden || cell.Metadata.InputHidden.True() || cell.Metadata.HideInput.True() {
		return ""
	}
	src := strings.TrimRight(cell.Source.String(), "\n")
	var body string
	switch cell.CellType {
	case notebook.CellMarkdown:
		body = latex.New().Process(display.Markdown(src))
	default:
		body = rawCellStyle.Render(src)
	}
	return indent(body, GutterWidth)
}
