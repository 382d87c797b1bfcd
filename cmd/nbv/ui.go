package main

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/daviddao/nbview/internal/cellview"
	"github.com/daviddao/nbview/internal/config"
	"github.com/daviddao/nbview/internal/datasource"
	"github.com/daviddao/nbview/internal/display"
	"github.com/daviddao/nbview/internal/notebook"
	"github.com/daviddao/nbview/internal/snapshot"
)

// --- Messages ---

type notebookChangedMsg struct{}

type snapshotReadyMsg struct {
	snap *snapshot.DataSnapshot
	err  error
}

type tickMsg struct{}

// --- Key bindings ---

type keyMap struct {
	Quit    key.Binding
	Tab     key.Binding
	Refresh key.Binding
	Up      key.Binding
	Down    key.Binding
	Help    key.Binding
	Enter   key.Binding
	Esc     key.Binding
	Filter  key.Binding
	Source  key.Binding
	Copy    key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "down")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open cell")),
	Esc:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Filter:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter cells")),
	Source:  key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "hide source")),
	Copy:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy source")),
}

// viewKeys maps single keys to views for fast navigation.
var viewKeys = map[string]viewID{
	"n": viewNotebook,
	"p": viewPapermill,
	"i": viewMetadata,
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Refresh, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Refresh, k.Up, k.Down},
		{k.Enter, k.Esc, k.Filter, k.Source},
		{k.Copy, k.Help, k.Quit},
	}
}

// contextHelp returns help text appropriate for the current view.
func contextHelp(v viewID) string {
	switch v {
	case viewNotebook:
		return "j/k: select cell | enter: open | /: filter | h: source | y: copy | n/p/i: views | ?: help | q: quit"
	case viewCellDetail:
		return "j/k: scroll | esc: back to notebook | y: copy | n/p/i: views | ?: help | q: quit"
	default:
		return "j/k: scroll | n/p/i: views | tab: next | ?: help | q: quit"
	}
}

// --- Views ---

type viewID int

const (
	viewNotebook viewID = iota
	viewPapermill
	viewMetadata
	viewCount // sentinel: views below here are not in the tab bar
	viewCellDetail
)

func (v viewID) String() string {
	switch v {
	case viewNotebook:
		return "Notebook"
	case viewPapermill:
		return "Papermill"
	case viewMetadata:
		return "Metadata"
	case viewCellDetail:
		return "Cell Detail"
	}
	return "?"
}

// --- Model ---

type uiModel struct {
	watcher *datasource.Watcher
	snap    *snapshot.DataSnapshot
	path    string
	cfg     config.Config

	// cells memoises code cell renders across frames; renderCfg and
	// detailCfg are replaced, never mutated, so memo entries see the change.
	cells     *cellview.Cache
	detail    *cellview.Memo
	renderCfg *cellview.Config
	detailCfg *cellview.Config

	activeView   viewID
	width        int
	height       int
	scrollPos    int
	selected     int    // index into visibleCells()
	detailCellID string // cell ID for detail view
	runningID    string // cell the host marks as running
	sourceHidden bool

	filter    textinput.Model
	filtering bool
	spinner   spinner.Model
	help      help.Model
	showHelp  bool

	copy   func(string) error
	status string // one-shot message shown in the status bar
	err    error  // last refresh error

	lastRefresh time.Time
}

func newModel(w *datasource.Watcher, snap *snapshot.DataSnapshot, path string, cfg config.Config) uiModel {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter cell sources"

	cell := cellview.NewCodeCell()
	m := uiModel{
		watcher:      w,
		snap:         snap,
		path:         path,
		cfg:          cfg,
		cells:        cellview.NewCache(cell),
		detail:       cellview.NewMemo(cell),
		sourceHidden: cfg.HideSource,
		filter:       ti,
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:         help.New(),
		copy:         clipboard.WriteAll,
		lastRefresh:  time.Now(),
	}
	return m.withRenderConfig()
}

// withRenderConfig rebuilds the render configurations from the snapshot,
// the settings and the terminal width.
func (m uiModel) withRenderConfig() uiModel {
	base := cellview.Config{
		Language:       m.snap.Language,
		Theme:          m.cfg.Theme,
		Tip:            m.cfg.Tip,
		DisplayOrder:   m.cfg.DisplayOrder,
		Transforms:     display.DefaultTransforms(),
		Models:         m.snap.Models,
		Width:          max(0, m.width-1),
		CollapsedLines: m.cfg.CollapsedLines,
	}
	detail := base
	detail.CollapsedLines = math.MaxInt
	m.renderCfg = &base
	m.detailCfg = &detail
	return m
}

func (m uiModel) Init() tea.Cmd {
	return tea.Batch(
		tickEvery(),
		m.spinner.Tick,
	)
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		m.status = ""

		// Check single-key view shortcuts first (always available).
		if v, ok := viewKeys[msg.String()]; ok {
			m.activeView = v
			m.scrollPos = 0
			m.detailCellID = ""
			return m, nil
		}

		switch {
		case key.Matches(msg, keys.Quit):
			if m.watcher != nil {
				m.watcher.Close()
			}
			return m, tea.Quit

		case key.Matches(msg, keys.Esc):
			switch {
			case m.activeView == viewCellDetail:
				m.activeView = viewNotebook
				m.detailCellID = ""
				m.scrollPos = 0
			case m.filter.Value() != "":
				m.filter.SetValue("")
				m.selected = 0
			}

		case key.Matches(msg, keys.Enter):
			// Drill into cell detail from the notebook.
			if m.activeView == viewNotebook {
				if c := m.selectedCell(); c != nil {
					m = m.openDetail(c.ID)
				}
			}

		case key.Matches(msg, keys.Tab):
			if m.activeView == viewCellDetail {
				m.activeView = viewNotebook
				m.detailCellID = ""
			} else {
				m.activeView = (m.activeView + 1) % viewCount
			}
			m.scrollPos = 0

		case key.Matches(msg, keys.Refresh):
			return m, m.refreshSnapshot()

		case key.Matches(msg, keys.Up):
			if m.activeView == viewNotebook {
				if m.selected > 0 {
					m.selected--
				}
			} else if m.scrollPos > 0 {
				m.scrollPos--
			}

		case key.Matches(msg, keys.Down):
			if m.activeView == viewNotebook {
				if m.selected < len(m.visibleCells())-1 {
					m.selected++
				}
			} else {
				// View() clamps if we overshoot.
				maxScroll := m.maxScroll()
				if m.scrollPos < maxScroll {
					m.scrollPos++
				}
			}

		case key.Matches(msg, keys.Filter):
			if m.activeView == viewNotebook {
				m.filtering = true
				cmd := m.filter.Focus()
				return m, cmd
			}

		case key.Matches(msg, keys.Source):
			m.sourceHidden = !m.sourceHidden

		case key.Matches(msg, keys.Copy):
			m = m.copySelected()

		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m = m.withRenderConfig()

	case notebookChangedMsg:
		return m, m.refreshSnapshot()

	case snapshotReadyMsg:
		if msg.err != nil {
			// Keep showing the last good snapshot; a save may be half written.
			m.err = msg.err
			log.WithError(msg.err).Warn("refresh failed")
			break
		}
		if msg.snap != nil {
			m.err = nil
			m = m.applySnapshot(msg.snap)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		return m, tickEvery()
	}

	return m, nil
}

// updateFilter routes keys to the filter input while it has focus.
func (m uiModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.selected = 0
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.selected = 0
	return m, cmd
}

// applySnapshot swaps in a new snapshot and clamps selection state.
func (m uiModel) applySnapshot(snap *snapshot.DataSnapshot) uiModel {
	m.snap = snap
	m.lastRefresh = time.Now()
	m = m.withRenderConfig()

	keep := make(map[string]bool, len(snap.Notebook.Cells))
	for _, c := range snap.Notebook.Cells {
		keep[c.ID] = true
	}
	m.cells.Prune(keep)

	// Clamp selected to avoid index-out-of-bounds after the cell count
	// changes between snapshots.
	n := len(m.visibleCells())
	if n == 0 {
		m.selected = 0
	} else if m.selected >= n {
		m.selected = n - 1
	}
	if m.activeView == viewCellDetail && !keep[m.detailCellID] {
		m.activeView = viewNotebook
		m.detailCellID = ""
	}
	return m
}

func (m uiModel) refreshSnapshot() tea.Cmd {
	path := m.path
	return func() tea.Msg {
		snap, err := snapshot.Build(path)
		return snapshotReadyMsg{snap: snap, err: err}
	}
}

// openDetail switches to the detail view for the cell with the given id.
func (m uiModel) openDetail(id string) uiModel {
	m.detailCellID = id
	m.activeView = viewCellDetail
	m.scrollPos = 0
	return m
}

// visibleCells returns the indexes of the cells matching the filter, in
// notebook order.
func (m uiModel) visibleCells() []int {
	cells := m.snap.Notebook.Cells
	query := m.filter.Value()
	if query == "" {
		idx := make([]int, len(cells))
		for i := range cells {
			idx[i] = i
		}
		return idx
	}
	sources := make([]string, len(cells))
	for i, c := range cells {
		sources[i] = c.Source.String()
	}
	matches := fuzzy.Find(query, sources)
	idx := make([]int, len(matches))
	for i, match := range matches {
		idx[i] = match.Index
	}
	sort.Ints(idx)
	return idx
}

// selectedCell returns the cell under the cursor in the notebook view.
func (m uiModel) selectedCell() *notebook.Cell {
	visible := m.visibleCells()
	if m.selected < 0 || m.selected >= len(visible) {
		return nil
	}
	return m.snap.Notebook.Cells[visible[m.selected]]
}

// targetCell is the cell that cell actions apply to in the current view.
func (m uiModel) targetCell() *notebook.Cell {
	if m.activeView == viewCellDetail {
		c, _ := m.snap.Notebook.Cell(m.detailCellID)
		return c
	}
	if m.activeView == viewNotebook {
		return m.selectedCell()
	}
	return nil
}

func (m uiModel) copySelected() uiModel {
	c := m.targetCell()
	if c == nil {
		return m
	}
	if err := m.copy(c.Source.String()); err != nil {
		log.WithError(err).Warn("copy to clipboard failed")
		m.status = fmt.Sprintf("copy failed: %v", err)
		return m
	}
	m.status = fmt.Sprintf("copied %s to clipboard", shortID(c.ID))
	return m
}

// maxScroll estimates a scroll bound generously; View() clamps.
func (m uiModel) maxScroll() int {
	n := 20
	for _, c := range m.snap.Notebook.Cells {
		n += 4 + len(c.Outputs)*8
	}
	return n
}

// running reports whether any cell is executing.
func (m uiModel) running() bool {
	if m.snap.Running > 0 {
		return true
	}
	if m.runningID != "" {
		_, ok := m.snap.Notebook.Cell(m.runningID)
		return ok
	}
	return false
}
