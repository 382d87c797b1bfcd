// Package editor shows cell source the way a code editor would, without
// accepting input.
package editor

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/daviddao/nbview/internal/logger"
)

// Props mirrors the prop contract of an interactive notebook editor. The
// viewer never edits, so the handlers are accepted but never invoked.
type Props struct {
	ID              string
	Input           string
	Language        string
	Theme           string
	Tip             bool
	Completion      bool
	CellFocused     bool
	EditorFocused   bool
	CursorBlinkRate int
	ExecutionState  string
	Width           int

	OnChange      func(string)
	OnFocusChange func(bool)
	FocusAbove    func()
	FocusBelow    func()
}

// Editor renders highlighted source.
type Editor struct {
	log *logger.Entry
}

// New returns an Editor.
func New() *Editor {
	return &Editor{log: logger.Named("editor")}
}

// language aliases notebooks use that chroma registers under another name.
var languageAliases = map[string]string{
	"ipython":  "python",
	"ipython2": "python",
	"ipython3": "python",
	"python3":  "python",
	"text":     "plaintext",
	"":         "plaintext",
}

// themeStyles maps notebook theme names to chroma styles.
var themeStyles = map[string]string{
	"light": "github",
	"dark":  "monokai",
}

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#45475A")).
			PaddingLeft(1)
	focusedFrameStyle = frameStyle.BorderForeground(lipgloss.Color("#7C3AED"))
)

// Lexer returns the chroma lexer for a notebook language name.
func Lexer(language string) chroma.Lexer {
	name := strings.ToLower(language)
	if alias, ok := languageAliases[name]; ok {
		name = alias
	}
	l := lexers.Get(name)
	if l == nil {
		l = lexers.Fallback
	}
	return chroma.Coalesce(l)
}

// Style returns the chroma style for a theme: "light", "dark" or any chroma
// style name. Unknown themes use the dark style.
func Style(theme string) *chroma.Style {
	name := theme
	if mapped, ok := themeStyles[theme]; ok {
		name = mapped
	}
	if s, ok := styles.Registry[name]; ok {
		return s
	}
	return styles.Get(themeStyles["dark"])
}

// Highlight returns source with terminal colour escapes.
func Highlight(source, language, theme string) (string, error) {
	it, err := Lexer(language).Tokenise(nil, source)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := formatters.TTY256.Format(&b, Style(theme), it); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Render returns the framed, highlighted source.
func (e *Editor) Render(p Props) string {
	src := strings.TrimRight(p.Input, "\n")
	out, err := Highlight(src, p.Language, p.Theme)
	if err != nil {
		e.log.WithError(err).WithField("cell", p.ID).Warn("highlight failed")
		out = src
	}
	out = trimBlankTail(out)
	frame := frameStyle
	if p.CellFocused || p.EditorFocused {
		frame = focusedFrameStyle
	}
	if p.Width > 0 {
		frame = frame.MaxWidth(p.Width)
	}
	return frame.Render(out)
}

// trimBlankTail drops trailing lines that hold nothing but escape codes,
// which formatters leave behind after the final newline.
func trimBlankTail(s string) string {
	lines := strings.Split(s, "\n")
	trimmed := false
	for len(lines) > 1 && strings.TrimSpace(ansi.Strip(lines[len(lines)-1])) == "" {
		lines = lines[:len(lines)-1]
		trimmed = true
	}
	if trimmed {
		lines[len(lines)-1] += "\x1b[0m"
	}
	return strings.Join(lines, "\n")
}
