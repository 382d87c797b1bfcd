// Package notebook decodes Jupyter notebook files (nbformat 4) into typed
// records.
//
// The records are read-only once loaded: the viewer renders them but never
// mutates or writes them back.
package notebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
)

// ErrUnsupportedFormat is returned for notebooks older than nbformat 4.
var ErrUnsupportedFormat = errors.New("unsupported nbformat")

// CellType is the kind of a notebook cell.
type CellType string

const (
	CellCode     CellType = "code"
	CellMarkdown CellType = "markdown"
	CellRaw      CellType = "raw"
)

// PapermillStatus is the execution progress Papermill records per cell.
type PapermillStatus string

const (
	StatusPending   PapermillStatus = "pending"
	StatusRunning   PapermillStatus = "running"
	StatusCompleted PapermillStatus = "completed"
)

// Notebook is a decoded .ipynb document.
type Notebook struct {
	NBFormat      int              `json:"nbformat"`
	NBFormatMinor int              `json:"nbformat_minor"`
	Metadata      NotebookMetadata `json:"metadata"`
	Cells         []*Cell          `json:"cells"`
}

// NotebookMetadata holds the notebook-level metadata the viewer reads.
type NotebookMetadata struct {
	KernelSpec   KernelSpec    `json:"kernelspec"`
	LanguageInfo LanguageInfo  `json:"language_info"`
	Papermill    *PapermillRun `json:"papermill,omitempty"`

	// Widgets is keyed by mime type; the saved widget state lives under
	// WidgetStateMime.
	Widgets map[string]WidgetState `json:"widgets,omitempty"`
}

// WidgetStateMime is the metadata key Jupyter saves widget models under.
const WidgetStateMime = "application/vnd.jupyter.widget-state+json"

// WidgetState is the saved state of the notebook's widget models.
type WidgetState struct {
	State map[string]WidgetModel `json:"state"`
}

// WidgetModel is one saved widget model.
type WidgetModel struct {
	ModelName   string                     `json:"model_name"`
	ModelModule string                     `json:"model_module"`
	State       map[string]json.RawMessage `json:"state"`
}

type KernelSpec struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
}

type LanguageInfo struct {
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	FileExtension string         `json:"file_extension"`
	CodeMirror    CodeMirrorMode `json:"codemirror_mode"`
}

// CodeMirrorMode is either a bare mode name or an object with a name.
type CodeMirrorMode struct {
	Name string
}

func (c *CodeMirrorMode) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		c.Name = name
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// Unknown shapes are ignored; the mode is only a language hint.
		return nil
	}
	c.Name = obj.Name
	return nil
}

// PapermillRun is the notebook-level record Papermill writes for a run.
type PapermillRun struct {
	Parameters map[string]json.RawMessage `json:"parameters,omitempty"`
	InputPath  string                     `json:"input_path,omitempty"`
	OutputPath string                     `json:"output_path,omitempty"`
	StartTime  string                     `json:"start_time,omitempty"`
	EndTime    string                     `json:"end_time,omitempty"`
	Duration   *float64                   `json:"duration,omitempty"`
	Exception  Flag                       `json:"exception"`
}

// Cell is one notebook cell.
type Cell struct {
	ID             string          `json:"id"`
	CellType       CellType        `json:"cell_type"`
	Source         MultilineString `json:"source"`
	ExecutionCount *int            `json:"execution_count"`
	Outputs        []Output        `json:"outputs"`
	Metadata       CellMetadata    `json:"metadata"`
}

// CellMetadata holds the per-cell flags front-ends use to control display.
type CellMetadata struct {
	OutputHidden   Flag               `json:"outputHidden"`
	InputHidden    Flag               `json:"inputHidden"`
	HideInput      Flag               `json:"hide_input"`
	OutputExpanded Flag               `json:"outputExpanded"`
	Papermill      *PapermillMetadata `json:"papermill,omitempty"`
	Tags           []string           `json:"tags,omitempty"`
}

// PapermillMetadata is the per-cell progress record Papermill writes while
// executing a notebook.
type PapermillMetadata struct {
	Status    PapermillStatus `json:"status,omitempty"`
	StartTime string          `json:"start_time,omitempty"`
	EndTime   string          `json:"end_time,omitempty"`
	Duration  *float64        `json:"duration,omitempty"`
	Exception Flag            `json:"exception"`
}

// IsCode reports whether c is a code cell.
func (c *Cell) IsCode() bool { return c.CellType == CellCode }

// PapermillStatus returns the cell's Papermill status, or "" when the cell
// carries no Papermill record.
func (c *Cell) PapermillStatus() PapermillStatus {
	if c.Metadata.Papermill == nil {
		return ""
	}
	return c.Metadata.Papermill.Status
}

// HasTag reports whether the cell is tagged with tag.
func (c *Cell) HasTag(tag string) bool {
	for _, t := range c.Metadata.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Language returns the language used to highlight code cells.
func (nb *Notebook) Language() string {
	li := nb.Metadata.LanguageInfo
	switch {
	case li.CodeMirror.Name != "":
		return li.CodeMirror.Name
	case li.Name != "":
		return li.Name
	case nb.Metadata.KernelSpec.Language != "":
		return nb.Metadata.KernelSpec.Language
	}
	return "text"
}

// WidgetModels returns the saved widget models keyed by model id.
func (nb *Notebook) WidgetModels() map[string]WidgetModel {
	ws, ok := nb.Metadata.Widgets[WidgetStateMime]
	if !ok {
		return nil
	}
	return ws.State
}

// Cell returns the cell with the given id.
func (nb *Notebook) Cell(id string) (*Cell, bool) {
	for _, c := range nb.Cells {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Parse decodes a notebook from r.
// Cells without an id are assigned one derived from their position, so
// reloading an unchanged file yields the same ids.
func Parse(r io.Reader) (*Notebook, error) {
	var nb Notebook
	if err := json.NewDecoder(r).Decode(&nb); err != nil {
		return nil, fmt.Errorf("decode notebook: %w", err)
	}
	if nb.NBFormat < 4 {
		return nil, fmt.Errorf("%w %d (need 4)", ErrUnsupportedFormat, nb.NBFormat)
	}
	cells := nb.Cells[:0]
	for i, c := range nb.Cells {
		if c == nil {
			continue
		}
		if c.ID == "" {
			c.ID = positionID(i)
		}
		cells = append(cells, c)
	}
	nb.Cells = cells
	return &nb, nil
}

// cellIDSpace namespaces ids generated for cells that carry none.
var cellIDSpace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("nbview.cell"))

func positionID(i int) string {
	return uuid.NewSHA1(cellIDSpace, []byte(strconv.Itoa(i))).String()
}

// Load reads and decodes the notebook at path.
func Load(path string) (*Notebook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	nb, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nb, nil
}
