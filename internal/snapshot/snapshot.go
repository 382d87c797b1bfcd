// Package snapshot builds immutable data snapshots from notebook files.
//
// A DataSnapshot captures a loaded notebook together with pre-computed
// counts at a point in time. Snapshots are rebuilt on each file change
// and swapped atomically into the UI model.
package snapshot

import (
	"context"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daviddao/nbview/internal/notebook"
)

// DataSnapshot is an immutable, self-contained view of a notebook.
type DataSnapshot struct {
	Path     string             `json:"path"`
	Notebook *notebook.Notebook `json:"-"`
	Language string             `json:"language"`

	// Counts.
	CodeCells     int `json:"code_cells"`
	MarkdownCells int `json:"markdown_cells"`
	RawCells      int `json:"raw_cells"`
	Pending       int `json:"pending"`
	Running       int `json:"running"`
	Completed     int `json:"completed"`
	Executed      int `json:"executed"`
	Outputs       int `json:"outputs"`
	Errors        int `json:"errors"`

	// Models are the saved widget models, keyed by model id.
	Models map[string]notebook.WidgetModel `json:"-"`

	ModTime time.Time `json:"mod_time"`
	// Timestamp of snapshot creation.
	BuiltAt time.Time `json:"built_at"`
}

// Build loads the notebook at path and returns a complete snapshot.
func Build(path string) (*DataSnapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	nb, err := notebook.Load(path)
	if err != nil {
		return nil, err
	}
	snap := FromNotebook(nb)
	snap.Path = path
	snap.ModTime = info.ModTime()
	return snap, nil
}

// FromNotebook computes a snapshot of an already loaded notebook.
func FromNotebook(nb *notebook.Notebook) *DataSnapshot {
	snap := &DataSnapshot{
		Notebook: nb,
		Language: nb.Language(),
		Models:   nb.WidgetModels(),
		BuiltAt:  time.Now(),
	}
	for _, c := range nb.Cells {
		switch c.CellType {
		case notebook.CellCode:
			snap.CodeCells++
		case notebook.CellMarkdown:
			snap.MarkdownCells++
		default:
			snap.RawCells++
		}
		switch c.PapermillStatus() {
		case notebook.StatusPending:
			snap.Pending++
		case notebook.StatusRunning:
			snap.Running++
		case notebook.StatusCompleted:
			snap.Completed++
		}
		if c.ExecutionCount != nil {
			snap.Executed++
		}
		snap.Outputs += len(c.Outputs)
		if Failed(c) {
			snap.Errors++
		}
	}
	return snap
}

// Failed reports whether a cell raised: an error output or a Papermill
// exception mark.
func Failed(c *notebook.Cell) bool {
	if c.Metadata.Papermill != nil && c.Metadata.Papermill.Exception.True() {
		return true
	}
	for _, o := range c.Outputs {
		if o.OutputType == notebook.OutputError {
			return true
		}
	}
	return false
}

// BuildAll builds snapshots for paths concurrently. Results keep the order
// of paths; the first error cancels the rest.
func BuildAll(ctx context.Context, paths []string) ([]*DataSnapshot, error) {
	snaps := make([]*DataSnapshot, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			snap, err := Build(path)
			if err != nil {
				return err
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}
