package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/daviddao/nbview/internal/cellview"
	"github.com/daviddao/nbview/internal/notebook"
	"github.com/daviddao/nbview/internal/snapshot"
)

// --- Styles ---

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1E1E2E")).
			Padding(0, 1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6C7086")).
				Background(lipgloss.Color("#313244")).
				Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#89B4FA"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4")).
			Bold(true)

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E3A1"))

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9E2AF")).
			Bold(true)

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#1E1E2E"))
)

// --- View rendering ---

func (m uiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	// Title bar.
	b.WriteString(m.renderTitleBar())
	b.WriteRune('\n')

	// Tab bar.
	b.WriteString(m.renderTabBar())
	b.WriteRune('\n')
	b.WriteRune('\n')

	// Content area.
	contentHeight := m.height - 5 // title + tabs + status + padding
	if m.showHelp {
		contentHeight -= 3
	}

	var content string
	scrollPos := m.scrollPos
	switch m.activeView {
	case viewNotebook:
		var selLine int
		content, selLine = m.renderNotebook()
		// Keep the selected cell in view with some context above it.
		scrollPos = max(0, selLine-contentHeight/3)
	case viewPapermill:
		content = m.renderPapermill()
	case viewMetadata:
		content = m.renderMetadata()
	case viewCellDetail:
		content = m.renderCellDetail(m.detailCellID)
	}

	// Apply scroll using a local variable. View() is a value receiver so
	// mutating m.scrollPos here would be dead code.
	lines := strings.Split(content, "\n")
	if scrollPos >= len(lines) {
		scrollPos = max(0, len(lines)-1)
	}
	if scrollPos > 0 && scrollPos < len(lines) {
		lines = lines[scrollPos:]
	}
	if contentHeight > 0 && len(lines) > contentHeight {
		lines = lines[:contentHeight]
	}
	content = strings.Join(lines, "\n")

	// Truncate each line to terminal width so content doesn't wrap
	// on resize. Uses ANSI-aware width measurement.
	content = truncateLines(content, m.width)

	b.WriteString(content)

	// Pad to fill screen.
	rendered := strings.Count(b.String(), "\n")
	for rendered < m.height-2 {
		b.WriteRune('\n')
		rendered++
	}

	// Help / status bar.
	if m.showHelp {
		b.WriteString(m.help.View(keys))
	} else {
		b.WriteString(m.renderStatusBar())
	}

	return b.String()
}

func (m uiModel) renderTitleBar() string {
	title := titleStyle.Render("nbview " + filepath.Base(m.path))
	if m.running() {
		title += " " + runningStyle.Render(m.spinner.View()+"running")
	}
	stats := dimStyle.Render(fmt.Sprintf(
		"%d cells | %d executed | %d outputs",
		len(m.snap.Notebook.Cells),
		m.snap.Executed,
		m.snap.Outputs,
	))
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(title)-lipgloss.Width(stats)-2))
	return title + gap + stats
}

func (m uiModel) renderTabBar() string {
	var tabs []string
	for i := viewID(0); i < viewCount; i++ {
		if i == m.activeView {
			tabs = append(tabs, tabActiveStyle.Render(i.String()))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(i.String()))
		}
	}
	// Show Cell Detail as active tab when drilled in.
	if m.activeView == viewCellDetail {
		tabs = append(tabs, tabActiveStyle.Render("Cell: "+shortID(m.detailCellID)))
	}
	return strings.Join(tabs, " ")
}

func (m uiModel) renderStatusBar() string {
	if m.filtering {
		return statusBarStyle.Render(" " + m.filter.View())
	}
	left := " " + contextHelp(m.activeView)
	switch {
	case m.err != nil:
		left = " " + failedStyle.Render("refresh failed: "+m.err.Error())
	case m.status != "":
		left = " " + m.status
	case m.filter.Value() != "":
		left = fmt.Sprintf(" filter %q (%d cells) | esc: clear", m.filter.Value(), len(m.visibleCells()))
	}
	right := fmt.Sprintf("refreshed %s ", humanize.Time(m.lastRefresh))
	// The refresh age wins over help text on narrow terminals.
	if room := m.width - lipgloss.Width(right) - 1; lipgloss.Width(left) > room {
		left = ansi.Truncate(left, max(0, room), "…")
	}
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)))
	return statusBarStyle.Render(left + gap + right)
}

// --- Notebook view ---

// renderNotebook renders the visible cells and returns the line on which the
// selected cell starts.
func (m uiModel) renderNotebook() (string, int) {
	visible := m.visibleCells()
	if len(visible) == 0 {
		if m.filter.Value() != "" {
			return dimStyle.Render(fmt.Sprintf("  (no cells match %q)", m.filter.Value())), 0
		}
		return dimStyle.Render("  (empty notebook)"), 0
	}

	var b strings.Builder
	selLine := 0
	lineCount := 0
	for i, idx := range visible {
		c := m.snap.Notebook.Cells[idx]
		if i == m.selected {
			selLine = lineCount
		}
		header := m.cellHeader(idx, c, i == m.selected)
		body := m.renderCell(c)

		b.WriteString(header)
		b.WriteRune('\n')
		lineCount++
		if body != "" {
			b.WriteString(body)
			b.WriteRune('\n')
			lineCount += strings.Count(body, "\n") + 1
		}
		b.WriteRune('\n')
		lineCount++
	}
	return b.String(), selLine
}

// cellHeader is the one-line label above a cell.
func (m uiModel) cellHeader(idx int, c *notebook.Cell, selected bool) string {
	parts := []string{fmt.Sprintf("[%d]", idx+1), cellTypeLabel(c.CellType), shortID(c.ID)}
	if st := c.PapermillStatus(); st != "" {
		parts = append(parts, string(st))
	}
	if len(c.Metadata.Tags) > 0 {
		parts = append(parts, "#"+strings.Join(c.Metadata.Tags, " #"))
	}
	label := strings.Join(parts, " ")
	if selected {
		return selectedStyle.Render("▶ " + label)
	}
	return dimStyle.Render("  " + label)
}

// renderCell renders one cell through the memoised code cell view or, for
// markdown and raw cells, as text.
func (m uiModel) renderCell(c *notebook.Cell) string {
	if !c.IsCode() {
		return cellview.TextCell(c, m.sourceHidden)
	}
	r := m.cells.Render(cellview.Props{
		Cell:         c,
		ID:           c.ID,
		Running:      c.ID == m.runningID,
		SourceHidden: m.sourceHidden,
		Config:       m.renderCfg,
	})
	return r.View()
}

// --- Papermill view ---

func (m uiModel) renderPapermill() string {
	var b strings.Builder
	nb := m.snap.Notebook

	b.WriteString(headerStyle.Render("Papermill Run"))
	b.WriteRune('\n')
	run := nb.Metadata.Papermill
	if run == nil {
		b.WriteString(dimStyle.Render("  (notebook was not executed by papermill)"))
		b.WriteRune('\n')
	} else {
		writeField(&b, "input", run.InputPath)
		writeField(&b, "output", run.OutputPath)
		writeField(&b, "started", run.StartTime)
		writeField(&b, "ended", run.EndTime)
		if run.Duration != nil {
			writeField(&b, "duration", shortDuration(seconds(*run.Duration)))
		}
		if run.Exception.True() {
			b.WriteString("  " + failedStyle.Render("run raised an exception"))
			b.WriteRune('\n')
		}
	}
	b.WriteRune('\n')

	b.WriteString(headerStyle.Render(fmt.Sprintf("Cells (%d pending, %d running, %d completed)",
		m.snap.Pending, m.snap.Running, m.snap.Completed)))
	b.WriteRune('\n')
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-5s %-10s %-10s %-9s %s", "#", "ID", "Status", "Duration", "Source")))
	b.WriteRune('\n')

	count := 0
	for i, c := range nb.Cells {
		if !c.IsCode() {
			continue
		}
		status := c.PapermillStatus()
		statusStr := fmt.Sprintf("%-10s", status)
		if status == "" {
			statusStr = fmt.Sprintf("%-10s", "-")
		}
		switch {
		case snapshot.Failed(c):
			statusStr = failedStyle.Render(fmt.Sprintf("%-10s", "failed"))
		case status == notebook.StatusRunning || c.ID == m.runningID:
			statusStr = runningStyle.Render(fmt.Sprintf("%-10s", notebook.StatusRunning))
		case status == notebook.StatusCompleted:
			statusStr = completedStyle.Render(statusStr)
		default:
			statusStr = dimStyle.Render(statusStr)
		}
		dur := "-"
		if pm := c.Metadata.Papermill; pm != nil && pm.Duration != nil {
			dur = shortDuration(seconds(*pm.Duration))
		}
		first, _, _ := strings.Cut(c.Source.String(), "\n")
		b.WriteString(fmt.Sprintf("  %-5d %-10s %s %-9s %s\n",
			i+1, shortID(c.ID), statusStr, dur, truncate(first, 40)))
		count++
	}
	if count == 0 {
		b.WriteString(dimStyle.Render("  (no code cells)"))
		b.WriteRune('\n')
	}
	return b.String()
}

// seconds converts a papermill duration to a time.Duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// --- Metadata view ---

func (m uiModel) renderMetadata() string {
	var b strings.Builder
	nb := m.snap.Notebook
	md := nb.Metadata

	b.WriteString(headerStyle.Render("File"))
	b.WriteRune('\n')
	writeField(&b, "path", m.path)
	writeField(&b, "nbformat", fmt.Sprintf("%d.%d", nb.NBFormat, nb.NBFormatMinor))
	if !m.snap.ModTime.IsZero() {
		writeField(&b, "modified", humanize.Time(m.snap.ModTime))
	}
	b.WriteRune('\n')

	b.WriteString(headerStyle.Render("Kernel"))
	b.WriteRune('\n')
	writeField(&b, "name", md.KernelSpec.Name)
	writeField(&b, "display", md.KernelSpec.DisplayName)
	writeField(&b, "language", m.snap.Language)
	if md.LanguageInfo.Version != "" {
		writeField(&b, "version", md.LanguageInfo.Version)
	}
	b.WriteRune('\n')

	b.WriteString(headerStyle.Render("Cells"))
	b.WriteRune('\n')
	writeField(&b, "code", fmt.Sprint(m.snap.CodeCells))
	writeField(&b, "markdown", fmt.Sprint(m.snap.MarkdownCells))
	writeField(&b, "raw", fmt.Sprint(m.snap.RawCells))
	writeField(&b, "outputs", fmt.Sprint(m.snap.Outputs))
	if m.snap.Errors > 0 {
		writeField(&b, "errors", failedStyle.Render(fmt.Sprint(m.snap.Errors)))
	}
	if len(m.snap.Models) > 0 {
		writeField(&b, "widgets", fmt.Sprint(len(m.snap.Models)))
	}

	if run := md.Papermill; run != nil && len(run.Parameters) > 0 {
		b.WriteRune('\n')
		b.WriteString(headerStyle.Render("Parameters"))
		b.WriteRune('\n')
		names := make([]string, 0, len(run.Parameters))
		for name := range run.Parameters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			writeField(&b, name, compactJSON(run.Parameters[name]))
		}
	}
	return b.String()
}

// --- Cell detail view ---

func (m uiModel) renderCellDetail(id string) string {
	c, ok := m.snap.Notebook.Cell(id)
	if !ok {
		return dimStyle.Render(fmt.Sprintf("  cell %q not found", id))
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("Cell " + c.ID))
	b.WriteRune('\n')
	writeField(&b, "type", string(c.CellType))
	if c.IsCode() {
		exec := "-"
		if c.ExecutionCount != nil {
			exec = fmt.Sprint(*c.ExecutionCount)
		}
		writeField(&b, "executed", exec)
	}
	if len(c.Metadata.Tags) > 0 {
		writeField(&b, "tags", strings.Join(c.Metadata.Tags, ", "))
	}
	if pm := c.Metadata.Papermill; pm != nil {
		writeField(&b, "papermill", string(pm.Status))
		if pm.Duration != nil {
			writeField(&b, "duration", shortDuration(seconds(*pm.Duration)))
		}
		if pm.Exception.True() {
			writeField(&b, "exception", failedStyle.Render("yes"))
		}
	}
	for i, out := range c.Outputs {
		desc := string(out.OutputType)
		switch out.OutputType {
		case notebook.OutputStream:
			desc += " " + out.Name
		case notebook.OutputError:
			desc += " " + out.EName
		default:
			if types := out.Data.Types(); len(types) > 0 {
				desc += " " + strings.Join(types, ", ")
			}
		}
		writeField(&b, fmt.Sprintf("output %d", i+1), desc)
	}
	b.WriteRune('\n')

	if !c.IsCode() {
		b.WriteString(cellview.TextCell(c, m.sourceHidden))
		return b.String()
	}
	// Outputs are never clipped here.
	r := m.detail.Render(cellview.Props{
		Cell:         c,
		ID:           c.ID,
		Running:      c.ID == m.runningID,
		SourceHidden: m.sourceHidden,
		Config:       m.detailCfg,
	})
	b.WriteString(r.View())
	return b.String()
}

// --- Helpers ---

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		value = dimStyle.Render("-")
	}
	b.WriteString(fmt.Sprintf("  %-10s %s\n", name, value))
}

// compactJSON renders a raw JSON value on one line.
func compactJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// shortID abbreviates generated UUID cell ids.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncateLines truncates each line in content to at most width visible
// characters, preserving ANSI escape codes. This prevents terminal line
// wrapping when the window is resized narrower.
func truncateLines(content string, width int) string {
	if width <= 0 {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if lipgloss.Width(line) > width {
			lines[i] = ansi.Truncate(line, width, "")
		}
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to n display cells and appends "...".
func truncate(s string, n int) string {
	if ansi.StringWidth(s) <= n {
		return s
	}
	return ansi.Truncate(s, n, "") + "..."
}

func shortDuration(d time.Duration) string {
	if d < 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
