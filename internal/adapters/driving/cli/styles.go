package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// palette mirrors the colours used across Minutes output.
var palette = struct {
	Primary, Secondary, Muted, Success, Warning lipgloss.Color
}{
	Primary:   lipgloss.Color("#7C3AED"),
	Secondary: lipgloss.Color("#06B6D4"),
	Muted:     lipgloss.Color("#6C7086"),
	Success:   lipgloss.Color("#A6E3A1"),
	Warning:   lipgloss.Color("#F9E2AF"),
}

// styles renders command output. Colour is only applied when the
// destination is a terminal, so piped and captured output stays plain.
type styles struct {
	color bool

	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	score   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
}

func newStyles(w io.Writer) styles {
	return styles{
		color:   isTerminal(w),
		title:   lipgloss.NewStyle().Bold(true).Foreground(palette.Primary),
		label:   lipgloss.NewStyle().Bold(true).Foreground(palette.Secondary),
		muted:   lipgloss.NewStyle().Foreground(palette.Muted),
		score:   lipgloss.NewStyle().Foreground(palette.Success),
		success: lipgloss.NewStyle().Foreground(palette.Success),
		warning: lipgloss.NewStyle().Foreground(palette.Warning),
	}
}

func (s styles) render(style lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return style.Render(text)
}

func (s styles) Title(text string) string { return s.render(s.title, text) }
func (s styles) Label(text string) string { return s.render(s.label, text) }
func (s styles) Muted(text string) string { return s.render(s.muted, text) }
func (s styles) Score(text string) string { return s.render(s.score, text) }
func (s styles) Success(text string) string { return s.render(s.success, text) }
func (s styles) Warning(text string) string { return s.render(s.warning, text) }

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// truncate shortens s to n runes, appending "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
