package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/redtick/redtick/pkg/model"
)

// Adaptive colors for light and dark terminals.
var (
	ColorText    = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorSubtext = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger  = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	subjectStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText)

	labelStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	statusBadgeStyle = lipgloss.NewStyle().
				Foreground(ColorInfo)

	clockRunningStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorSuccess)

	clockStoppedStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorMuted)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	promptStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	messageInfoStyle = lipgloss.NewStyle().
				Foreground(ColorInfo)

	messageWarningStyle = lipgloss.NewStyle().
				Foreground(ColorWarning)

	messageErrorStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorDanger)
)

// messageStyle picks the render style for a message severity.
func messageStyle(severity model.Severity) lipgloss.Style {
	switch severity {
	case model.SeverityError:
		return messageErrorStyle
	case model.SeverityWarning:
		return messageWarningStyle
	default:
		return messageInfoStyle
	}
}
