// Package logger configures the process-wide logrus logger.
//
// The viewer owns the terminal, so log lines go to a file rather than
// stderr. Components log through Named so every line carries its source.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry is a logger with attached fields.
type Entry = logrus.Entry

// DefaultFile is the log file name used when none is configured.
const DefaultFile = "nbview.log"

var root = logrus.New()

func init() {
	root.SetFormatter(PlainFormatter{})
	// Discard until SetupFile is called so the TUI is never scribbled on.
	root.SetOutput(io.Discard)
}

// DefaultPath returns the log path used when none is configured.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), DefaultFile)
}

// SetupFile redirects the root logger to path (DefaultPath when empty) and
// sets the level. The returned closer releases the file.
func SetupFile(path string, level string) (io.Closer, string, error) {
	if path == "" {
		path = DefaultPath()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("open log file: %w", err)
	}
	lvl := logrus.InfoLevel
	if level != "" {
		lvl, err = logrus.ParseLevel(level)
		if err != nil {
			f.Close()
			return nil, "", err
		}
	}
	root.SetLevel(lvl)
	root.SetOutput(f)
	return f, path, nil
}

// SetOutput redirects the root logger, mainly for tests.
func SetOutput(w io.Writer) {
	root.SetOutput(w)
}

// Named returns an entry tagged with component.
func Named(component string) *Entry {
	entry := logrus.NewEntry(root)
	if component != "" {
		entry = entry.WithField("component", component)
	}
	return entry
}

// PlainFormatter writes one line per entry:
// [timestamp] [LEVEL] [component] message k=v ...
type PlainFormatter struct{}

// Format implements logrus.Formatter.
func (PlainFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	parts := make([]string, 0, 5)
	parts = append(parts, fmt.Sprintf("[%s]", entry.Time.UTC().Format(time.RFC3339Nano)))
	parts = append(parts, fmt.Sprintf("[%s]", strings.ToUpper(entry.Level.String())))
	if c, ok := entry.Data["component"].(string); ok && c != "" {
		parts = append(parts, fmt.Sprintf("[%s]", c))
	}
	parts = append(parts, entry.Message)
	if fields := formatFields(entry.Data); fields != "" {
		parts = append(parts, fields)
	}
	return []byte(strings.Join(parts, " ") + "\n"), nil
}

func formatFields(fields logrus.Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "component" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}
