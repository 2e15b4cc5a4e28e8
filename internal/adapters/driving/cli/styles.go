package cli

import "github.com/charmbracelet/lipgloss"

// Colour palette for terminal output.
var (
	colourPrimary = lipgloss.Color("#7C3AED")
	colourMuted   = lipgloss.Color("#6C7086")
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted)
	answerStyle  = lipgloss.NewStyle().PaddingLeft(2)
	sourceStyle  = lipgloss.NewStyle().PaddingLeft(2).Foreground(colourMuted)
	errorStyle   = lipgloss.NewStyle().Foreground(colourError)
	highStyle    = lipgloss.NewStyle().Foreground(colourSuccess)
	mediumStyle  = lipgloss.NewStyle().Foreground(colourWarning)
	sectionStyle = lipgloss.NewStyle().Bold(true)
)

// confidenceStyle colours a confidence score by band.
func confidenceStyle(c float64) lipgloss.Style {
	switch {
	case c >= 0.7:
		return highStyle
	case c >= 0.4:
		return mediumStyle
	default:
		return errorStyle
	}
}
