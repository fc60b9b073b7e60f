package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// theme is the colour palette for terminal output.
type theme struct {
	Primary lipgloss.Color
	Muted   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Border  lipgloss.Color
}

func defaultTheme() theme {
	return theme{
		Primary: lipgloss.Color("#7C3AED"), // Purple
		Muted:   lipgloss.Color("#6C7086"), // Medium gray
		Success: lipgloss.Color("#A6E3A1"), // Green
		Warning: lipgloss.Color("#F9E2AF"), // Yellow
		Error:   lipgloss.Color("#F38BA8"), // Red
		Border:  lipgloss.Color("#45475A"), // Border gray
	}
}

// outputStyles are lipgloss styles bound to one writer, so colour is only
// emitted when that writer is a terminal.
type outputStyles struct {
	theme    theme
	renderer *lipgloss.Renderer

	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Border  lipgloss.Style
}

func newStyles(w io.Writer) outputStyles {
	r := lipgloss.NewRenderer(w)
	t := defaultTheme()
	return outputStyles{
		theme:    t,
		renderer: r,
		Title:    r.NewStyle().Bold(true).Foreground(t.Primary),
		Label:    r.NewStyle().Width(20),
		Muted:    r.NewStyle().Foreground(t.Muted),
		Success:  r.NewStyle().Foreground(t.Success),
		Warning:  r.NewStyle().Foreground(t.Warning),
		Error:    r.NewStyle().Foreground(t.Error),
		Border:   r.NewStyle().Foreground(t.Border),
	}
}

// status renders a run status in its semantic colour.
func (s outputStyles) status(status string) string {
	switch status {
	case "completed", "persisted":
		return s.Success.Render(status)
	case "running", "aborted":
		return s.Warning.Render(status)
	default:
		return s.Error.Render(status)
	}
}
