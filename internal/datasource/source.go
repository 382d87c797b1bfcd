// Package datasource discovers, loads and watches notebook files.
package datasource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/daviddao/nbview/internal/notebook"
)

// EnvNotebook names a notebook to open when no path is given.
const EnvNotebook = "NBVIEW_NOTEBOOK"

// ErrNoNotebook is returned when discovery finds nothing to open.
var ErrNoNotebook = errors.New("no notebook found")

// Discover finds the notebook path.
// Priority: explicit arg > NBVIEW_NOTEBOOK env var > the only *.ipynb in CWD.
func Discover(arg string) (string, error) {
	if arg != "" {
		return existing(arg)
	}
	if env := os.Getenv(EnvNotebook); env != "" {
		path, err := existing(env)
		if err != nil {
			return "", fmt.Errorf("%s=%q: %w", EnvNotebook, env, err)
		}
		return path, nil
	}

	matches, err := filepath.Glob("*.ipynb")
	if err != nil {
		return "", fmt.Errorf("glob working directory: %w", err)
	}
	// Jupyter keeps checkpoints and temp saves next to the notebook.
	var found []string
	for _, m := range matches {
		if !strings.HasPrefix(m, ".") {
			found = append(found, m)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w (looked for %s, then *.ipynb in the working directory)", ErrNoNotebook, EnvNotebook)
	case 1:
		return existing(found[0])
	default:
		return "", fmt.Errorf("%w: %d notebooks in the working directory, pass one of %s", ErrNoNotebook, len(found), strings.Join(found, ", "))
	}
}

func existing(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %s: %w", path, err)
	}
	return abs, nil
}

// Open discovers and loads the notebook.
func Open(arg string) (*notebook.Notebook, string, error) {
	path, err := Discover(arg)
	if err != nil {
		return nil, "", err
	}
	// Load names the path in its errors.
	nb, err := notebook.Load(path)
	if err != nil {
		return nil, "", err
	}
	return nb, path, nil
}
