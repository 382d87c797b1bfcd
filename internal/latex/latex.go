// Package latex rewrites TeX math spans in rendered output into Unicode so
// that formulas read naturally in a terminal.
package latex

import (
	"sort"
	"strings"
)

// Processor rewrites math spans. The zero value is ready to use.
type Processor struct{}

// New returns a Processor.
func New() Processor { return Processor{} }

type delim struct {
	open, close string
}

// Longest openers first so "$$" wins over "$".
var delims = []delim{
	{"$$", "$$"},
	{`\[`, `\]`},
	{`\(`, `\)`},
	{"$", "$"},
}

// Process returns s with every math span converted. Text outside math spans
// and unterminated spans are left untouched.
func (Processor) Process(s string) string {
	if !strings.ContainsAny(s, `$\`) {
		return s
	}
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == '$' {
			b.WriteByte('$')
			i += 2
			continue
		}
		d, ok := openerAt(s, i)
		if !ok {
			b.WriteByte(s[i])
			i++
			continue
		}
		start := i + len(d.open)
		end := strings.Index(s[start:], d.close)
		if end < 0 || (d.open == "$" && end == 0) {
			b.WriteString(d.open)
			i = start
			continue
		}
		b.WriteString(Convert(s[start : start+end]))
		i = start + end + len(d.close)
	}
	return b.String()
}

func openerAt(s string, i int) (delim, bool) {
	for _, d := range delims {
		if strings.HasPrefix(s[i:], d.open) {
			return d, true
		}
	}
	return delim{}, false
}

var symbols = map[string]string{
	`\alpha`: "α", `\beta`: "β", `\gamma`: "γ", `\delta`: "δ", `\epsilon`: "ε",
	`\varepsilon`: "ε", `\zeta`: "ζ", `\eta`: "η", `\theta`: "θ", `\iota`: "ι",
	`\kappa`: "κ", `\lambda`: "λ", `\mu`: "μ", `\nu`: "ν", `\xi`: "ξ", `\pi`: "π",
	`\rho`: "ρ", `\sigma`: "σ", `\tau`: "τ", `\upsilon`: "υ", `\phi`: "φ",
	`\varphi`: "φ", `\chi`: "χ", `\psi`: "ψ", `\omega`: "ω",
	`\Gamma`: "Γ", `\Delta`: "Δ", `\Theta`: "Θ", `\Lambda`: "Λ", `\Xi`: "Ξ",
	`\Pi`: "Π", `\Sigma`: "Σ", `\Phi`: "Φ", `\Psi`: "Ψ", `\Omega`: "Ω",
	`\times`: "×", `\cdot`: "·", `\div`: "÷", `\pm`: "±", `\mp`: "∓",
	`\leq`: "≤", `\le`: "≤", `\geq`: "≥", `\ge`: "≥", `\neq`: "≠", `\ne`: "≠",
	`\approx`: "≈", `\equiv`: "≡", `\sim`: "∼", `\propto`: "∝",
	`\infty`: "∞", `\partial`: "∂", `\nabla`: "∇", `\sum`: "∑", `\prod`: "∏",
	`\int`: "∫", `\in`: "∈", `\notin`: "∉", `\subset`: "⊂", `\subseteq`: "⊆",
	`\cup`: "∪", `\cap`: "∩", `\forall`: "∀", `\exists`: "∃", `\emptyset`: "∅",
	`\rightarrow`: "→", `\to`: "→", `\leftarrow`: "←", `\Rightarrow`: "⇒",
	`\Leftrightarrow`: "⇔", `\mapsto`: "↦", `\ldots`: "…", `\cdots`: "⋯",
	`\left`: "", `\right`: "", `\,`: " ", `\;`: " ", `\quad`: "  ", `\!`: "",
}

// Longest names first so `\in` does not eat the front of `\infty`.
var symbolNames = func() []string {
	names := make([]string, 0, len(symbols))
	for k := range symbols {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}()

var superscripts = map[rune]rune{
	'0': '⁰', '1': '¹', '2': '²', '3': '³', '4': '⁴', '5': '⁵', '6': '⁶',
	'7': '⁷', '8': '⁸', '9': '⁹', '+': '⁺', '-': '⁻', 'n': 'ⁿ', 'i': 'ⁱ',
}

var subscripts = map[rune]rune{
	'0': '₀', '1': '₁', '2': '₂', '3': '₃', '4': '₄', '5': '₅', '6': '₆',
	'7': '₇', '8': '₈', '9': '₉', '+': '₊', '-': '₋',
}

// Convert rewrites the body of one math span.
func Convert(tex string) string {
	s := strings.TrimSpace(tex)
	s = rewriteCommand(s, `\frac`, 2, func(args []string) string {
		return group(args[0]) + "/" + group(args[1])
	})
	s = rewriteCommand(s, `\sqrt`, 1, func(args []string) string {
		return "√(" + args[0] + ")"
	})
	for _, cmd := range []string{`\mathrm`, `\mathbf`, `\text`, `\mathit`, `\operatorname`} {
		s = rewriteCommand(s, cmd, 1, func(args []string) string { return args[0] })
	}
	s = replaceSymbols(s)
	s = scripts(s, '^', superscripts)
	s = scripts(s, '_', subscripts)
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	return s
}

func group(s string) string {
	if strings.ContainsAny(s, "+-*/ ") {
		return "(" + s + ")"
	}
	return s
}

func replaceSymbols(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			i++
			continue
		}
		matched := false
		for _, name := range symbolNames {
			if !strings.HasPrefix(s[i:], name) {
				continue
			}
			next := i + len(name)
			// A letter command must not be a prefix of a longer command.
			if isLetter(name[len(name)-1]) && next < len(s) && isLetter(s[next]) {
				continue
			}
			b.WriteString(symbols[name])
			i = next
			matched = true
			break
		}
		if !matched {
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// rewriteCommand replaces every cmd{a}{b}... with fn(args). Occurrences with
// fewer than n brace groups are left alone.
func rewriteCommand(s, cmd string, n int, fn func([]string) string) string {
	var b strings.Builder
	for {
		idx := strings.Index(s, cmd)
		if idx < 0 {
			b.WriteString(s)
			return b.String()
		}
		rest := s[idx+len(cmd):]
		if rest != "" && isLetter(rest[0]) {
			b.WriteString(s[:idx+len(cmd)])
			s = rest
			continue
		}
		args := make([]string, 0, n)
		pos := 0
		for len(args) < n {
			arg, consumed, ok := braceGroup(rest[pos:])
			if !ok {
				break
			}
			args = append(args, Convert(arg))
			pos += consumed
		}
		b.WriteString(s[:idx])
		if len(args) < n {
			b.WriteString(cmd)
			s = rest
			continue
		}
		b.WriteString(fn(args))
		s = rest[pos:]
	}
}

// braceGroup reads a balanced {…} group after optional spaces.
func braceGroup(s string) (string, int, bool) {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	if i >= len(s) || s[i] != '{' {
		return "", 0, false
	}
	depth := 0
	for j := i; j < len(s); j++ {
		switch s[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[i+1 : j], j + 1, true
			}
		}
	}
	return "", 0, false
}

// scripts converts ^x, ^{xy}, _x and _{xy} when every rune has a Unicode
// form; otherwise the marker is kept.
func scripts(s string, marker byte, table map[rune]rune) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] != marker || i+1 >= len(s) {
			b.WriteByte(s[i])
			i++
			continue
		}
		body, consumed := "", 0
		if arg, n, ok := braceGroup(s[i+1:]); ok && s[i+1] == '{' {
			body, consumed = arg, n
		} else {
			body, consumed = s[i+1:i+2], 1
		}
		if conv, ok := mapRunes(body, table); ok {
			b.WriteString(conv)
			i += 1 + consumed
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func mapRunes(s string, table map[rune]rune) (string, bool) {
	if s == "" {
		return "", false
	}
	var b strings.Builder
	for _, r := range s {
		m, ok := table[r]
		if !ok {
			return "", false
		}
		b.WriteRune(m)
	}
	return b.String(), true
}
