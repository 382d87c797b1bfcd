package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/daviddao/nbview/internal/cellview"
	"github.com/daviddao/nbview/internal/config"
	"github.com/daviddao/nbview/internal/datasource"
	"github.com/daviddao/nbview/internal/notebook"
	"github.com/daviddao/nbview/internal/snapshot"
)

const testNotebookJSON = `{
 "nbformat": 4,
 "nbformat_minor": 5,
 "metadata": {
  "kernelspec": {"name": "python3", "display_name": "Python 3", "language": "python"},
  "language_info": {"name": "python", "version": "3.12.1"},
  "papermill": {"input_path": "in.ipynb", "output_path": "out.ipynb", "parameters": {"alpha": 0.5}, "duration": 2.5}
 },
 "cells": [
  {"id": "md", "cell_type": "markdown", "source": "# Title", "metadata": {}},
  {"id": "c1", "cell_type": "code", "source": "a = 1", "execution_count": 1, "outputs": [],
   "metadata": {"papermill": {"status": "completed", "duration": 0.5}}},
  {"id": "c2", "cell_type": "code", "source": "print(a)", "execution_count": 2,
   "outputs": [{"output_type": "stream", "name": "stdout", "text": "1\n"}],
   "metadata": {"papermill": {"status": "running"}, "tags": ["parameters"]}},
  {"id": "c3", "cell_type": "code", "source": "1/0", "execution_count": null, "outputs": [],
   "metadata": {"papermill": {"status": "pending"}}}
 ]
}`

// testSnapshot creates a snapshot with test data for rendering tests.
func testSnapshot(t *testing.T) *snapshot.DataSnapshot {
	t.Helper()
	nb, err := notebook.Parse(strings.NewReader(testNotebookJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	snap := snapshot.FromNotebook(nb)
	snap.Path = "/tmp/run.ipynb"
	snap.ModTime = time.Now()
	return snap
}

// testModel creates a uiModel with test data (no watcher needed for render tests).
func testModel(t *testing.T) uiModel {
	m := newModel(nil, testSnapshot(t), "/tmp/run.ipynb", config.Default())
	m.width = 80
	m.height = 24
	m.help.Width = 80
	m.copy = func(string) error { return nil }
	return m.withRenderConfig()
}

// plain strips styling, including syntax highlighting.
func plain(s string) string { return ansi.Strip(s) }

func press(m uiModel, keys ...string) uiModel {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		updated, _ := m.Update(msg)
		m = updated.(uiModel)
	}
	return m
}

func TestParseViewFlag(t *testing.T) {
	tests := []struct {
		input string
		want  viewID
		err   bool
	}{
		{"notebook", viewNotebook, false},
		{"Notebook", viewNotebook, false},
		{"n", viewNotebook, false},
		{"papermill", viewPapermill, false},
		{"p", viewPapermill, false},
		{"metadata", viewMetadata, false},
		{"i", viewMetadata, false},
		{"bogus", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseViewFlag(tt.input)
			if tt.err {
				if err == nil {
					t.Errorf("parseViewFlag(%q) expected error, got nil", tt.input)
				}
			} else {
				if err != nil {
					t.Errorf("parseViewFlag(%q) unexpected error: %v", tt.input, err)
				}
				if got != tt.want {
					t.Errorf("parseViewFlag(%q) = %v, want %v", tt.input, got, tt.want)
				}
			}
		})
	}
}

func TestViewIDString(t *testing.T) {
	tests := []struct {
		v    viewID
		want string
	}{
		{viewNotebook, "Notebook"},
		{viewPapermill, "Papermill"},
		{viewMetadata, "Metadata"},
		{viewCellDetail, "Cell Detail"},
		{viewID(99), "?"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("viewID(%d).String() = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestViewLoading(t *testing.T) {
	m := uiModel{}
	if got := m.View(); got != "Loading..." {
		t.Errorf("View() with zero width = %q, want Loading...", got)
	}
}

func TestRenderNotebookContainsCells(t *testing.T) {
	m := testModel(t)
	out, _ := m.renderNotebook()
	out = plain(out)

	for _, want := range []string{"Title", "In [1]:", "a = 1", "print(a)", "In [*]:", "In [ ]:", cellview.BannerText, "#parameters"} {
		if !strings.Contains(out, want) {
			t.Errorf("notebook view missing %q", want)
		}
	}
	if strings.Count(out, cellview.BannerText) != 1 {
		t.Errorf("expected one papermill banner, got %d", strings.Count(out, cellview.BannerText))
	}
}

func TestRenderNotebookSelection(t *testing.T) {
	m := testModel(t)
	m.selected = 2
	out, selLine := m.renderNotebook()
	lines := strings.Split(plain(out), "\n")
	if selLine <= 0 || selLine >= len(lines) {
		t.Fatalf("selected line %d out of range", selLine)
	}
	if !strings.HasPrefix(lines[selLine], "▶ [3] code c2") {
		t.Errorf("selected line = %q, want header of cell 3", lines[selLine])
	}
}

func TestRenderNotebookRunningCell(t *testing.T) {
	m := testModel(t)
	m.runningID = "c1"
	out, _ := m.renderNotebook()
	out = plain(out)
	if strings.Contains(out, "In [1]:") {
		t.Error("cell marked running should not show its execution count")
	}
	if got := strings.Count(out, "In [*]:"); got != 2 {
		t.Errorf("expected 2 running prompts, got %d", got)
	}
	// The banner follows papermill metadata only.
	if got := strings.Count(out, cellview.BannerText); got != 1 {
		t.Errorf("expected 1 banner, got %d", got)
	}
}

func TestUpdateToggleSourceHidden(t *testing.T) {
	m := press(testModel(t), "h")
	if !m.sourceHidden {
		t.Fatal("h should hide source")
	}
	out, _ := m.renderNotebook()
	out = plain(out)
	if strings.Contains(out, "a = 1") || strings.Contains(out, "In [1]:") {
		t.Error("source and prompt should be hidden")
	}
	if !strings.Contains(out, "1") {
		t.Error("outputs should still render")
	}
	if strings.Contains(out, "Title") {
		t.Error("markdown cells should be hidden with their source")
	}

	m = press(m, "h")
	if m.sourceHidden {
		t.Error("second h should show source again")
	}
}

func TestRenderNotebookMemoises(t *testing.T) {
	m := testModel(t)
	m.renderNotebook()
	if m.cells.Len() != 3 {
		t.Fatalf("expected 3 memoised code cells, got %d", m.cells.Len())
	}
	// A resize replaces the render config, so cells re-render.
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m2 := updated.(uiModel)
	if m2.renderCfg == m.renderCfg {
		t.Error("resize should replace the render config")
	}
	if m2.renderCfg.Width != 119 {
		t.Errorf("render width = %d, want 119", m2.renderCfg.Width)
	}
}

func TestRenderNotebookEmptyFilter(t *testing.T) {
	m := testModel(t)
	m.filter.SetValue("zzzzqqq")
	out, _ := m.renderNotebook()
	if !strings.Contains(plain(out), "no cells match") {
		t.Errorf("expected no-match message, got %q", out)
	}
}

func TestRenderPapermill(t *testing.T) {
	m := testModel(t)
	out := plain(m.renderPapermill())

	for _, want := range []string{"in.ipynb", "out.ipynb", "2.5s", "completed", "running", "pending", "500ms", "print(a)", "1 pending, 1 running, 1 completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("papermill view missing %q", want)
		}
	}
}

func TestRenderPapermillNoRun(t *testing.T) {
	m := testModel(t)
	m.snap.Notebook.Metadata.Papermill = nil
	out := plain(m.renderPapermill())
	if !strings.Contains(out, "not executed by papermill") {
		t.Error("expected no-run message")
	}
}

func TestRenderPapermillFailedCell(t *testing.T) {
	m := testModel(t)
	c, _ := m.snap.Notebook.Cell("c3")
	c.Outputs = []notebook.Output{{OutputType: notebook.OutputError, EName: "ZeroDivisionError"}}
	out := plain(m.renderPapermill())
	if !strings.Contains(out, "failed") {
		t.Error("cell with an error output should show as failed")
	}
}

func TestRenderMetadata(t *testing.T) {
	m := testModel(t)
	out := plain(m.renderMetadata())

	for _, want := range []string{"/tmp/run.ipynb", "4.5", "python3", "Python 3", "3.12.1", "alpha", "0.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("metadata view missing %q", want)
		}
	}
}

func TestRenderCellDetail(t *testing.T) {
	m := testModel(t)
	out := plain(m.renderCellDetail("c2"))

	for _, want := range []string{"Cell c2", "running", "parameters", "stream stdout", "print(a)", cellview.BannerText} {
		if !strings.Contains(out, want) {
			t.Errorf("cell detail missing %q", want)
		}
	}
}

func TestRenderCellDetailUnknown(t *testing.T) {
	m := testModel(t)
	out := m.renderCellDetail("nope")
	if !strings.Contains(out, "not found") {
		t.Error("unknown cell should show not found")
	}
}

func TestRenderCellDetailMarkdown(t *testing.T) {
	m := testModel(t)
	out := plain(m.renderCellDetail("md"))
	if !strings.Contains(out, "Title") {
		t.Error("markdown detail should render the text")
	}
}

func TestRenderTitleBar(t *testing.T) {
	m := testModel(t)
	out := plain(m.renderTitleBar())
	if !strings.Contains(out, "run.ipynb") {
		t.Error("title should name the notebook")
	}
	if !strings.Contains(out, "running") {
		t.Error("title should show running indicator")
	}
	if !strings.Contains(out, "4 cells") {
		t.Error("title should count cells")
	}

	m.snap.Running = 0
	if strings.Contains(plain(m.renderTitleBar()), "running") {
		t.Error("no running indicator when nothing runs")
	}
}

func TestRenderTabBar(t *testing.T) {
	m := testModel(t)
	out := m.renderTabBar()
	for _, name := range []string{"Notebook", "Papermill", "Metadata"} {
		if !strings.Contains(out, name) {
			t.Errorf("tab bar missing %q", name)
		}
	}
	if strings.Contains(out, "Cell:") {
		t.Error("tab bar should not show a cell tab outside detail view")
	}
}

func TestRenderTabBarCellDetail(t *testing.T) {
	m := testModel(t).openDetail("c2")
	if !strings.Contains(m.renderTabBar(), "Cell: c2") {
		t.Error("tab bar should show the open cell")
	}
}

func TestContextHelp(t *testing.T) {
	for _, v := range []viewID{viewNotebook, viewPapermill, viewMetadata, viewCellDetail} {
		if contextHelp(v) == "" {
			t.Errorf("contextHelp(%s) is empty", v)
		}
	}
	if !strings.Contains(contextHelp(viewCellDetail), "esc") {
		t.Error("cell detail help should mention esc")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 7, "this is..."},
		{"", 5, ""},
		{"héllo wörld", 5, "héllo..."},
		{"日本語のテキスト", 6, "日本語..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.s, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
		}
	}
}

func TestShortDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "-"},
		{250 * time.Millisecond, "250ms"},
		{2500 * time.Millisecond, "2.5s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}
	for _, tt := range tests {
		if got := shortDuration(tt.d); got != tt.want {
			t.Errorf("shortDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("c1"); got != "c1" {
		t.Errorf("shortID(c1) = %q", got)
	}
	if got := shortID("0b5a3c1e-9f7d-4f3a-8d2e-1c2b3a4d5e6f"); got != "0b5a3c1e" {
		t.Errorf("shortID(uuid) = %q", got)
	}
}

func TestTruncateLines(t *testing.T) {
	out := truncateLines("abcdef\nab", 4)
	if out != "abcd\nab" {
		t.Errorf("truncateLines = %q", out)
	}
	if truncateLines("abc", 0) != "abc" {
		t.Error("width 0 should leave content alone")
	}
}

func TestBuildJSONOutput(t *testing.T) {
	snap := testSnapshot(t)
	out := buildJSONOutput(snap)

	if out.Path != "/tmp/run.ipynb" {
		t.Errorf("path = %q", out.Path)
	}
	if out.Language != "python" || out.Kernel != "python3" || out.NBFormat != "4.5" {
		t.Errorf("unexpected header: %+v", out)
	}
	if len(out.Cells) != 4 {
		t.Fatalf("expected 4 cells, got %d", len(out.Cells))
	}
	if !out.Cells[2].Running || out.Cells[1].Running {
		t.Error("only the papermill running cell should be running")
	}
	if out.Cells[1].Duration == nil || *out.Cells[1].Duration != 0.5 {
		t.Error("expected duration of completed cell")
	}
	if out.Stats.CodeCells != 3 || out.Stats.MarkdownCells != 1 || out.Stats.Running != 1 {
		t.Errorf("unexpected stats: %+v", out.Stats)
	}
	if out.Papermill == nil || string(out.Papermill.Parameters["alpha"]) != "0.5" {
		t.Errorf("unexpected papermill: %+v", out.Papermill)
	}

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if !json.Valid(data) {
		t.Error("JSON output is invalid")
	}
}

func TestViewFullRender(t *testing.T) {
	m := testModel(t)

	out := m.View()
	if out == "" {
		t.Error("full View() render should not be empty")
	}
	if !strings.Contains(out, "run.ipynb") {
		t.Error("full View() should contain title")
	}
	if !strings.Contains(out, "refreshed") {
		t.Error("full View() should contain the status bar")
	}
}

func TestViewFullRenderEachView(t *testing.T) {
	views := []viewID{viewNotebook, viewPapermill, viewMetadata, viewCellDetail}

	for _, v := range views {
		t.Run(v.String(), func(t *testing.T) {
			m := testModel(t)
			m.activeView = v
			m.detailCellID = "c2"

			out := m.View()
			if out == "" {
				t.Errorf("View() for %s should not be empty", v)
			}
			for i, line := range strings.Split(out, "\n") {
				if w := ansi.StringWidth(line); w > m.width {
					t.Errorf("line %d is %d wide, terminal is %d", i, w, m.width)
				}
			}
		})
	}
}

// TestScrollPosClampedInView verifies that View() handles scrollPos beyond
// content length gracefully without panicking.
func TestScrollPosClampedInView(t *testing.T) {
	m := testModel(t)
	m.activeView = viewMetadata
	m.scrollPos = 9999

	if out := m.View(); out == "" {
		t.Error("View() with excessive scrollPos should not be empty")
	}
}

func TestScrollPosBoundedOnDown(t *testing.T) {
	m := testModel(t)
	m.activeView = viewPapermill

	for i := 0; i < 500; i++ {
		m = press(m, "down")
	}
	if m.scrollPos > m.maxScroll() {
		t.Errorf("scrollPos = %d after 500 Down presses, expected <= %d", m.scrollPos, m.maxScroll())
	}
}

func TestSelectedClampedOnSnapshotRefresh(t *testing.T) {
	m := testModel(t)
	m.selected = 3

	nb, err := notebook.Parse(strings.NewReader(`{"nbformat": 4, "nbformat_minor": 5, "metadata": {},
		"cells": [{"id": "only", "cell_type": "code", "source": "x", "outputs": [], "metadata": {}}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	updated, _ := m.Update(snapshotReadyMsg{snap: snapshot.FromNotebook(nb)})
	m = updated.(uiModel)
	if m.selected != 0 {
		t.Errorf("selected = %d after shrinking snapshot, want 0", m.selected)
	}
}

func TestSnapshotRefreshDropsVanishedDetail(t *testing.T) {
	m := testModel(t).openDetail("c3")

	nb, err := notebook.Parse(strings.NewReader(`{"nbformat": 4, "nbformat_minor": 5, "metadata": {}, "cells": []}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	updated, _ := m.Update(snapshotReadyMsg{snap: snapshot.FromNotebook(nb)})
	m = updated.(uiModel)
	if m.activeView != viewNotebook {
		t.Errorf("activeView = %s, want Notebook", m.activeView)
	}
	if m.cells.Len() != 0 {
		t.Errorf("memo cache should be pruned, has %d", m.cells.Len())
	}
}

func TestQuitThenDeferredCloseDoesNotPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.ipynb")
	if err := os.WriteFile(path, []byte(testNotebookJSON), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	w, err := datasource.NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	m := newModel(w, testSnapshot(t), path, config.Default())
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return tea.Quit")
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close after quit: %v", err)
	}
}

const idlessNotebookJSON = `{"nbformat": 4, "nbformat_minor": 4, "metadata": {}, "cells": [
	{"cell_type": "code", "source": "a = 1", "execution_count": 1, "outputs": [], "metadata": {}},
	{"cell_type": "code", "source": "print(a)", "execution_count": 2, "outputs": [], "metadata": {}}
]}`

func TestRefreshUnchangedIdlessNotebookKeepsDetail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.ipynb")
	if err := os.WriteFile(path, []byte(idlessNotebookJSON), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	first, err := snapshot.Build(path)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	m := newModel(nil, first, path, config.Default())
	m.width, m.height = 80, 24
	m = m.withRenderConfig()
	id := first.Notebook.Cells[1].ID
	m = m.openDetail(id)

	second, err := snapshot.Build(path)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := second.Notebook.Cells[1].ID; got != id {
		t.Fatalf("id changed across reloads: %s then %s", id, got)
	}
	updated, _ := m.Update(snapshotReadyMsg{snap: second})
	m = updated.(uiModel)
	if m.activeView != viewCellDetail || m.detailCellID != id {
		t.Errorf("activeView = %s, detail = %q; want CellDetail on %q", m.activeView, m.detailCellID, id)
	}
}

func TestSnapshotRefreshErrorKeepsSnapshot(t *testing.T) {
	m := testModel(t)
	old := m.snap
	updated, _ := m.Update(snapshotReadyMsg{err: errors.New("unexpected EOF")})
	m = updated.(uiModel)
	if m.snap != old {
		t.Error("failed refresh should keep the previous snapshot")
	}
	if !strings.Contains(plain(m.renderStatusBar()), "unexpected EOF") {
		t.Error("status bar should show the refresh error")
	}
}

func TestUpdateTabCyclesViews(t *testing.T) {
	m := testModel(t)
	want := []viewID{viewPapermill, viewMetadata, viewNotebook}
	for _, v := range want {
		m = press(m, "tab")
		if m.activeView != v {
			t.Errorf("after tab activeView = %s, want %s", m.activeView, v)
		}
	}
}

func TestUpdateTabFromCellDetailGoesToNotebook(t *testing.T) {
	m := press(testModel(t).openDetail("c1"), "tab")
	if m.activeView != viewNotebook || m.detailCellID != "" {
		t.Errorf("tab from detail: view=%s cell=%q", m.activeView, m.detailCellID)
	}
}

func TestUpdateUpDownNotebook(t *testing.T) {
	m := testModel(t)
	m = press(m, "j", "j", "j", "j", "j")
	if m.selected != 3 {
		t.Errorf("selected = %d after many j, want 3", m.selected)
	}
	m = press(m, "k")
	if m.selected != 2 {
		t.Errorf("selected = %d after k, want 2", m.selected)
	}
	m = press(m, "k", "k", "k")
	if m.selected != 0 {
		t.Errorf("selected = %d, want 0", m.selected)
	}
}

func TestUpdateEnterAndEsc(t *testing.T) {
	m := press(testModel(t), "j", "enter")
	if m.activeView != viewCellDetail || m.detailCellID != "c1" {
		t.Fatalf("enter: view=%s cell=%q", m.activeView, m.detailCellID)
	}
	m = press(m, "esc")
	if m.activeView != viewNotebook || m.detailCellID != "" {
		t.Errorf("esc: view=%s cell=%q", m.activeView, m.detailCellID)
	}
}

func TestUpdateViewShortcuts(t *testing.T) {
	tests := map[string]viewID{"p": viewPapermill, "i": viewMetadata, "n": viewNotebook}
	for k, v := range tests {
		m := press(testModel(t).openDetail("c1"), k)
		if m.activeView != v {
			t.Errorf("key %q: activeView = %s, want %s", k, m.activeView, v)
		}
		if m.detailCellID != "" {
			t.Errorf("key %q should leave detail view", k)
		}
	}
}

func TestUpdateHelpToggle(t *testing.T) {
	m := press(testModel(t), "?")
	if !m.showHelp {
		t.Fatal("? should show help")
	}
	m = press(m, "?")
	if m.showHelp {
		t.Error("second ? should hide help")
	}
}

func TestUpdateFilter(t *testing.T) {
	m := press(testModel(t), "/")
	if !m.filtering {
		t.Fatal("/ should start filtering")
	}
	// Keys go to the filter input, not the key map.
	m = press(m, "p", "r", "i", "n", "t")
	if m.activeView != viewNotebook {
		t.Fatal("typing in the filter should not switch views")
	}
	m = press(m, "enter")
	if m.filtering {
		t.Fatal("enter should close the filter input")
	}
	if got := m.filter.Value(); got != "print" {
		t.Fatalf("filter = %q, want print", got)
	}
	visible := m.visibleCells()
	if len(visible) != 1 || visible[0] != 2 {
		t.Fatalf("visible = %v, want [2]", visible)
	}
	if c := m.selectedCell(); c == nil || c.ID != "c2" {
		t.Errorf("selected cell = %v, want c2", c)
	}

	m = press(m, "esc")
	if m.filter.Value() != "" || len(m.visibleCells()) != 4 {
		t.Error("esc should clear the filter")
	}
}

func TestUpdateCopy(t *testing.T) {
	m := testModel(t)
	var copied string
	m.copy = func(s string) error {
		copied = s
		return nil
	}
	m = press(m, "j", "y")
	if copied != "a = 1" {
		t.Errorf("copied %q, want source of c1", copied)
	}
	if !strings.Contains(m.status, "copied c1") {
		t.Errorf("status = %q", m.status)
	}

	m.copy = func(string) error { return errors.New("no clipboard") }
	m = press(m, "y")
	if !strings.Contains(m.status, "no clipboard") {
		t.Errorf("status = %q, want copy error", m.status)
	}

	// Nothing to copy outside cell views.
	copied = ""
	m.copy = func(s string) error {
		copied = s
		return nil
	}
	m = press(m, "p", "y")
	if copied != "" {
		t.Error("copy should do nothing in the papermill view")
	}
}

func TestUpdateWindowSizeMsg(t *testing.T) {
	m := testModel(t)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 50})
	m = updated.(uiModel)
	if m.width != 100 || m.height != 50 || m.help.Width != 100 {
		t.Errorf("size = %dx%d help=%d", m.width, m.height, m.help.Width)
	}
}

func TestViewScrollDoesNotMutateModel(t *testing.T) {
	m := testModel(t)
	m.activeView = viewMetadata
	m.scrollPos = 500
	_ = m.View()
	if m.scrollPos != 500 {
		t.Errorf("View() mutated scrollPos to %d", m.scrollPos)
	}
}

func TestRunning(t *testing.T) {
	m := testModel(t)
	if !m.running() {
		t.Error("snapshot with a running cell should be running")
	}
	m.snap.Running = 0
	if m.running() {
		t.Error("nothing should be running")
	}
	m.runningID = "c1"
	if !m.running() {
		t.Error("host-marked cell should count as running")
	}
	m.runningID = "gone"
	if m.running() {
		t.Error("unknown running id should not count")
	}
}

// --- CLI ---

// hermetic points config discovery at an empty directory.
func hermetic(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvConfig, filepath.Join(t.TempDir(), "config.toml"))
	t.Setenv(config.EnvTheme, "")
}

func writeTestNotebook(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(testNotebookJSON), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestCLIJSONSingle(t *testing.T) {
	hermetic(t)
	path := writeTestNotebook(t, t.TempDir(), "run.ipynb")

	var buf bytes.Buffer
	cmd := newRootCmd(&buf)
	cmd.SetArgs([]string{"--json", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var out jsonOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Unmarshal: %v\n%s", err, buf.String())
	}
	if out.Path != path || len(out.Cells) != 4 {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestCLIJSONMany(t *testing.T) {
	hermetic(t)
	dir := t.TempDir()
	a := writeTestNotebook(t, dir, "a.ipynb")
	b := writeTestNotebook(t, dir, "b.ipynb")

	var buf bytes.Buffer
	cmd := newRootCmd(&buf)
	cmd.SetArgs([]string{"--json", a, b})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var out []jsonOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(out) != 2 || out[0].Path != a || out[1].Path != b {
		t.Errorf("unexpected output order: %+v", out)
	}
}

func TestCLIJSONMissing(t *testing.T) {
	hermetic(t)
	var buf bytes.Buffer
	cmd := newRootCmd(&buf)
	cmd.SetArgs([]string{"--json", filepath.Join(t.TempDir(), "missing.ipynb")})
	if err := cmd.Execute(); err == nil {
		t.Error("Execute should fail for a missing notebook")
	}
}

func TestCLIRejectsBadRefresh(t *testing.T) {
	hermetic(t)
	path := writeTestNotebook(t, t.TempDir(), "run.ipynb")
	var buf bytes.Buffer
	cmd := newRootCmd(&buf)
	cmd.SetArgs([]string{"--json", "--refresh", "10ms", path})
	if err := cmd.Execute(); err == nil {
		t.Error("refresh below the minimum should be rejected")
	}
}

func TestCLIVersion(t *testing.T) {
	var buf bytes.Buffer
	cmd := newRootCmd(&buf)
	cmd.SetArgs([]string{"--version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := buf.String(); got != "nbv dev\n" {
		t.Errorf("version output = %q", got)
	}
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	hermetic(t)
	cmd := newRootCmd(&bytes.Buffer{})
	if err := cmd.ParseFlags([]string{"--theme", "light", "--hide-source", "--refresh", "5s"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	opts := options{theme: "light", hideSource: true, refresh: 5 * time.Second}
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Theme != "light" || !cfg.HideSource || time.Duration(cfg.Refresh) != 5*time.Second {
		t.Errorf("flags not applied: %+v", cfg)
	}

	cmd = newRootCmd(&bytes.Buffer{})
	cfg, err = loadConfig(cmd, options{theme: "ignored"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Theme != config.Default().Theme {
		t.Errorf("unset flag should not override theme, got %q", cfg.Theme)
	}
}

func TestRunTUIRejectsFlagsBeforeSetup(t *testing.T) {
	dir := t.TempDir()
	nbPath := writeTestNotebook(t, dir, "run.ipynb")
	logPath := filepath.Join(dir, "nbv.log")
	cfg := config.Default()
	cfg.LogFile = logPath

	tests := map[string]options{
		"bad view":     {view: "bogus"},
		"missing cell": {cell: "nope"},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			if err := runTUI(cfg, opts, []string{nbPath}); err == nil {
				t.Fatal("runTUI should fail")
			}
			if _, err := os.Stat(logPath); !os.IsNotExist(err) {
				t.Errorf("log file should not be created, stat err = %v", err)
			}
		})
	}
}
