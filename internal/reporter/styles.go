package reporter

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme colors
var (
	Primary   = lipgloss.Color("#7C3AED")
	Secondary = lipgloss.Color("#A78BFA")
	Success   = lipgloss.Color("#10B981")
	Warning   = lipgloss.Color("#F59E0B")
	Danger    = lipgloss.Color("#EF4444")
	Info      = lipgloss.Color("#3B82F6")
	TextDim   = lipgloss.Color("#9CA3AF")
)

// styles are bound to the renderer of one writer so color is only emitted
// when that writer is a terminal
type styles struct {
	title    lipgloss.Style
	category lipgloss.Style
	path     lipgloss.Style
	size     lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	err      lipgloss.Style
	dim      lipgloss.Style
	bar      lipgloss.Style
}

func newStyles(w io.Writer, noColor bool) styles {
	r := lipgloss.NewRenderer(w)
	if noColor {
		r.SetColorProfile(termenv.Ascii)
	}

	return styles{
		title:    r.NewStyle().Bold(true).Foreground(Primary),
		category: r.NewStyle().Foreground(Secondary).Bold(true),
		path:     r.NewStyle().Foreground(Info),
		size:     r.NewStyle().Foreground(Warning),
		success:  r.NewStyle().Foreground(Success).Bold(true),
		warning:  r.NewStyle().Foreground(Warning).Bold(true),
		err:      r.NewStyle().Foreground(Danger).Bold(true),
		dim:      r.NewStyle().Foreground(TextDim),
		bar:      r.NewStyle().Foreground(Primary),
	}
}

// progressBar renders current/total as a bar of width cells
func (s styles) progressBar(current, total int64, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	if current > total {
		current = total
	}

	filled := int(float64(current) / float64(total) * float64(width))
	return s.bar.Render(strings.Repeat("█", filled) + strings.Repeat("░", width-filled))
}
