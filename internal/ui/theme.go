package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme is the style set the dashboard renders with. Two palettes exist;
// which one applies depends on the terminal background.
type Theme struct {
	Title    lipgloss.Style
	Header   lipgloss.Style
	Selected lipgloss.Style
	Dim      lipgloss.Style
	Accent   lipgloss.Style
	Active   lipgloss.Style
	Warn     lipgloss.Style
}

// DetectTheme picks the dark or light palette from the terminal background.
func DetectTheme() Theme {
	return NewTheme(termenv.HasDarkBackground())
}

// NewTheme builds the palette for a dark or light background.
func NewTheme(dark bool) Theme {
	if dark {
		return Theme{
			Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
			Header:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
			Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8")),
			Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
			Accent:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
			Active:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
			Warn:     lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		}
	}
	return Theme{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
		Header:   lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("7")),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		Accent:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		Active:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Warn:     lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	}
}
