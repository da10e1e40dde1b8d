// Package tui provides the interactive terminal interface for checksums.
// It uses Charmbracelet's Bubble Tea, Lip Gloss, and Bubbles.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// Color palette for the TUI.
var (
	// Primary colors
	primaryColor = lipgloss.Color("#7D56F4")
	accentColor  = lipgloss.Color("#00D9FF")

	// Status colors
	successColor = lipgloss.Color("#28A745")
	warningColor = lipgloss.Color("#FFC107")
	dangerColor  = lipgloss.Color("#DC3545")

	// Neutral colors
	mutedColor  = lipgloss.Color("#666666")
	subtleColor = lipgloss.Color("#444444")
	borderColor = lipgloss.Color("#333333")
)

// Box styles for containers.
var (
	// outerBoxStyle is the main container style.
	outerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	// dividerStyle creates horizontal dividers.
	dividerStyle = lipgloss.NewStyle().
			Foreground(borderColor)
)

// Text styles.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	mutedTextStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(dangerColor)

	successTextStyle = lipgloss.NewStyle().
				Foreground(successColor)

	warningTextStyle = lipgloss.NewStyle().
				Foreground(warningColor)

	digestStyle = lipgloss.NewStyle().
			Foreground(accentColor)
)

// Record kind styles.
var (
	passStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	missingStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	badStyle = lipgloss.NewStyle().
			Foreground(dangerColor).
			Bold(true)

	// filterOffStyle renders a kind whose records are hidden.
	filterOffStyle = lipgloss.NewStyle().
			Foreground(subtleColor).
			Strikethrough(true)
)

// Stats box styles.
var (
	statsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(borderColor).
			Padding(0, 2)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	statsValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))
)

// Key hint styles.
var (
	keyStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	keyDescStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// Log pane styles.
var (
	logTimeStyle      = lipgloss.NewStyle().Foreground(mutedColor)
	logComponentStyle = lipgloss.NewStyle().Foreground(accentColor)
	logDebugStyle     = lipgloss.NewStyle().Foreground(subtleColor)
	logInfoStyle      = lipgloss.NewStyle().Foreground(successColor)
	logWarnStyle      = lipgloss.NewStyle().Foreground(warningColor)
	logErrorStyle     = lipgloss.NewStyle().Foreground(dangerColor).Bold(true)
)

// kindStyle returns the style for a record kind.
func kindStyle(k types.Kind) lipgloss.Style {
	switch k {
	case types.KindPass:
		return passStyle
	case types.KindMissing:
		return missingStyle
	case types.KindBad:
		return badStyle
	default:
		return mutedTextStyle
	}
}

// renderDivider creates a horizontal divider line.
func renderDivider(width int) string {
	return dividerStyle.Render(repeatChar('─', width))
}

// repeatChar repeats a character n times.
func repeatChar(char rune, n int) string {
	if n <= 0 {
		return ""
	}
	result := make([]rune, n)
	for i := range result {
		result[i] = char
	}
	return string(result)
}

// truncatePath truncates a path to fit within maxLen, preserving the end.
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return path[:maxLen]
	}
	return "..." + path[len(path)-(maxLen-3):]
}

// center centers a string within the given width.
func center(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	leftPad := (width - w) / 2
	rightPad := width - w - leftPad
	return repeatChar(' ', leftPad) + s + repeatChar(' ', rightPad)
}
