// nbv is a terminal viewer for Jupyter notebooks.
//
// It watches a notebook file for changes and renders its cells with
// execution-count prompts, highlighted source and outputs, following
// Papermill's per-cell progress while a notebook executes.
//
// Usage:
//
//	nbv                         # Auto-discover the notebook in CWD
//	nbv run.ipynb               # View a specific notebook
//	nbv --json a.ipynb b.ipynb  # Dump notebook summaries as JSON and exit
//	nbv --cell <id>             # Open a cell in detail view on startup
//	nbv --view papermill        # Start in a specific view
//	nbv --refresh 5s            # Set polling fallback interval
//	nbv --version               # Print version and exit
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/daviddao/nbview/internal/cellview"
	"github.com/daviddao/nbview/internal/config"
	"github.com/daviddao/nbview/internal/datasource"
	"github.com/daviddao/nbview/internal/logger"
	"github.com/daviddao/nbview/internal/notebook"
	"github.com/daviddao/nbview/internal/snapshot"
)

// Version is set via ldflags at build time (e.g. -X main.Version=v0.1.0).
var Version = "dev"

var log = logger.Named("nbv")

// parseViewFlag maps a --view flag string to a viewID.
func parseViewFlag(s string) (viewID, error) {
	switch strings.ToLower(s) {
	case "notebook", "n":
		return viewNotebook, nil
	case "papermill", "p":
		return viewPapermill, nil
	case "metadata", "i":
		return viewMetadata, nil
	default:
		return 0, fmt.Errorf("unknown view %q (valid: notebook, papermill, metadata)", s)
	}
}

type options struct {
	jsonMode   bool
	theme      string
	view       string
	cell       string
	running    string
	hideSource bool
	refresh    time.Duration
	configPath string
	logFile    string
}

func newRootCmd(out io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "nbv [notebook.ipynb...]",
		Short:         "View a Jupyter notebook in the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if opts.jsonMode {
				return runJSON(cmd.Context(), out, args)
			}
			return runTUI(cfg, opts, args)
		},
	}
	cmd.SetOut(out)
	cmd.SetVersionTemplate("nbv {{.Version}}\n")

	f := cmd.Flags()
	f.BoolVar(&opts.jsonMode, "json", false, "dump notebook summaries as JSON and exit (no TUI)")
	f.StringVar(&opts.theme, "theme", "", "highlight theme: light, dark or a chroma style name")
	f.StringVar(&opts.view, "view", "", "start in specific view (notebook|papermill|metadata)")
	f.StringVar(&opts.cell, "cell", "", "open the cell with this id in detail view on startup")
	f.StringVar(&opts.running, "running", "", "mark the cell with this id as running")
	f.BoolVar(&opts.hideSource, "hide-source", false, "hide the source of every cell")
	f.DurationVar(&opts.refresh, "refresh", 0, "polling fallback interval (default from config, 2s)")
	f.StringVar(&opts.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/nbview/config.toml)")
	f.StringVar(&opts.logFile, "log-file", "", "log file (default: $TMPDIR/nbview.log)")
	return cmd
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command, opts options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	f := cmd.Flags()
	if f.Changed("theme") {
		cfg.Theme = opts.theme
	}
	if f.Changed("hide-source") {
		cfg.HideSource = opts.hideSource
	}
	if f.Changed("refresh") {
		cfg.Refresh = config.Duration(opts.refresh)
	}
	if f.Changed("log-file") {
		cfg.LogFile = opts.logFile
	}
	return cfg, cfg.Validate()
}

func main() {
	if err := newRootCmd(os.Stdout).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "nbv: %v\n", err)
		os.Exit(1)
	}
}

// runJSON builds a snapshot per notebook and prints the summaries.
func runJSON(ctx context.Context, out io.Writer, args []string) error {
	paths := args
	if len(paths) == 0 {
		path, err := datasource.Discover("")
		if err != nil {
			return err
		}
		paths = []string{path}
	}
	snaps, err := snapshot.BuildAll(ctx, paths)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	var v any
	if len(snaps) == 1 {
		v = buildJSONOutput(snaps[0])
	} else {
		all := make([]jsonOutput, len(snaps))
		for i, snap := range snaps {
			all[i] = buildJSONOutput(snap)
		}
		v = all
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

func runTUI(cfg config.Config, opts options, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("the viewer opens one notebook, got %d (use --json for several)", len(args))
	}
	var arg string
	if len(args) == 1 {
		arg = args[0]
	}
	view := viewNotebook
	if opts.view != "" {
		v, err := parseViewFlag(opts.view)
		if err != nil {
			return err
		}
		view = v
	}

	path, err := datasource.Discover(arg)
	if err != nil {
		return err
	}
	snap, err := snapshot.Build(path)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if opts.cell != "" {
		if _, ok := snap.Notebook.Cell(opts.cell); !ok {
			return fmt.Errorf("no cell with id %q in %s", opts.cell, path)
		}
	}

	closer, logPath, err := logger.SetupFile(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log: %w", err)
	}
	defer closer.Close()
	log.WithField("path", path).WithField("log", logPath).Info("opened notebook")

	w, err := datasource.NewWatcher(path)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	m := newModel(w, snap, path, cfg)
	m.runningID = opts.running
	m.activeView = view
	if opts.cell != "" {
		m = m.openDetail(opts.cell)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Feed notebook change events into the TUI.
	go func() {
		for range w.Changes() {
			p.Send(notebookChangedMsg{})
		}
	}()

	// Polling fallback: refresh at the configured interval even if fsnotify
	// misses events.
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Refresh))
		defer ticker.Stop()
		for range ticker.C {
			p.Send(notebookChangedMsg{})
		}
	}()

	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

// jsonOutput is the structure for --json mode.
type jsonOutput struct {
	Path      string         `json:"path"`
	Language  string         `json:"language"`
	Kernel    string         `json:"kernel,omitempty"`
	NBFormat  string         `json:"nbformat"`
	Papermill *jsonPapermill `json:"papermill,omitempty"`
	Cells     []jsonCell     `json:"cells"`
	Stats     jsonStats      `json:"stats"`
}

type jsonPapermill struct {
	InputPath  string                     `json:"input_path,omitempty"`
	OutputPath string                     `json:"output_path,omitempty"`
	Parameters map[string]json.RawMessage `json:"parameters,omitempty"`
	Duration   *float64                   `json:"duration,omitempty"`
	Exception  bool                       `json:"exception"`
}

type jsonCell struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	ExecutionCount *int     `json:"execution_count"`
	Status         string   `json:"status,omitempty"`
	Duration       *float64 `json:"duration,omitempty"`
	Running        bool     `json:"running"`
	InputHidden    bool     `json:"input_hidden"`
	OutputHidden   bool     `json:"output_hidden"`
	Outputs        int      `json:"outputs"`
	Failed         bool     `json:"failed"`
}

type jsonStats struct {
	CodeCells     int    `json:"code_cells"`
	MarkdownCells int    `json:"markdown_cells"`
	RawCells      int    `json:"raw_cells"`
	Pending       int    `json:"pending"`
	Running       int    `json:"running"`
	Completed     int    `json:"completed"`
	Executed      int    `json:"executed"`
	Outputs       int    `json:"outputs"`
	Errors        int    `json:"errors"`
	Modified      string `json:"modified"`
}

// buildJSONOutput converts a snapshot into the JSON output structure.
func buildJSONOutput(snap *snapshot.DataSnapshot) jsonOutput {
	nb := snap.Notebook
	cells := make([]jsonCell, len(nb.Cells))
	for i, c := range nb.Cells {
		st := cellview.Derive(cellview.Props{Cell: c})
		jc := jsonCell{
			ID:             c.ID,
			Type:           string(c.CellType),
			ExecutionCount: c.ExecutionCount,
			Status:         string(c.PapermillStatus()),
			Running:        st.Running,
			InputHidden:    st.InputHidden,
			OutputHidden:   st.OutputHidden,
			Outputs:        len(c.Outputs),
			Failed:         snapshot.Failed(c),
		}
		if c.Metadata.Papermill != nil {
			jc.Duration = c.Metadata.Papermill.Duration
		}
		cells[i] = jc
	}

	out := jsonOutput{
		Path:     snap.Path,
		Language: snap.Language,
		Kernel:   nb.Metadata.KernelSpec.Name,
		NBFormat: fmt.Sprintf("%d.%d", nb.NBFormat, nb.NBFormatMinor),
		Cells:    cells,
		Stats: jsonStats{
			CodeCells:     snap.CodeCells,
			MarkdownCells: snap.MarkdownCells,
			RawCells:      snap.RawCells,
			Pending:       snap.Pending,
			Running:       snap.Running,
			Completed:     snap.Completed,
			Executed:      snap.Executed,
			Outputs:       snap.Outputs,
			Errors:        snap.Errors,
			Modified:      snap.ModTime.Format(time.RFC3339),
		},
	}
	if run := nb.Metadata.Papermill; run != nil {
		out.Papermill = &jsonPapermill{
			InputPath:  run.InputPath,
			OutputPath: run.OutputPath,
			Parameters: run.Parameters,
			Duration:   run.Duration,
			Exception:  run.Exception.True(),
		}
	}
	return out
}

// cellTypeLabel is the short label shown next to a cell.
func cellTypeLabel(t notebook.CellType) string {
	switch t {
	case notebook.CellCode:
		return "code"
	case notebook.CellMarkdown:
		return "md"
	case notebook.CellRaw:
		return "raw"
	}
	return string(t)
}
