package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// ANSI 256 palette shared with the TUI.
const (
	ColorPrimary = lipgloss.Color("39")
	ColorSuccess = lipgloss.Color("42")
	ColorWarning = lipgloss.Color("214")
	ColorDanger  = lipgloss.Color("196")
	ColorMuted   = lipgloss.Color("245")
)

// Box styles.
var (
	HeaderBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1).
			MarginBottom(1)

	FooterBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1).
			MarginTop(1)

	ErrorBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDanger).
			Padding(0, 1)
)

// Text styles.
var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	LabelStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorDanger)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	PathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	DigestStyle  = lipgloss.NewStyle().Foreground(ColorPrimary)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorMuted).
				PaddingRight(2)
)

// KindStyle returns the style a kind is rendered in.
func KindStyle(k types.Kind) lipgloss.Style {
	switch k {
	case types.KindPass:
		return SuccessStyle
	case types.KindMissing:
		return WarningStyle
	default:
		return ErrorStyle.Bold(true)
	}
}
