package output

import "github.com/charmbracelet/lipgloss"

// Styles is the terminal style set for a renderer. When output is not
// a TTY every style renders as plain text.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Success lipgloss.Style

	// ScriptTitle accents script titles in lists and summaries.
	ScriptTitle lipgloss.Style

	// StatusSuccess and StatusFailed carry their icon as the styled
	// string, so a bare String() call renders it.
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
}

func newStyles(lr *lipgloss.Renderer) Styles {
	return Styles{
		Header1: lr.NewStyle().Bold(true).Underline(true),
		Header2: lr.NewStyle().Bold(true),
		Bold:    lr.NewStyle().Bold(true),
		Muted:   lr.NewStyle().Foreground(lipgloss.Color("240")),
		Warning: lr.NewStyle().Foreground(lipgloss.Color("214")),
		Error:   lr.NewStyle().Foreground(lipgloss.Color("196")),
		Info:    lr.NewStyle().Foreground(lipgloss.Color("39")),
		Success: lr.NewStyle().Foreground(lipgloss.Color("42")),

		ScriptTitle: lr.NewStyle().Foreground(lipgloss.Color("45")),

		StatusSuccess: lr.NewStyle().Foreground(lipgloss.Color("42")).SetString("✓"),
		StatusFailed:  lr.NewStyle().Foreground(lipgloss.Color("196")).SetString("✗"),
	}
}
