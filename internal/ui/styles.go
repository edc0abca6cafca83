package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds all the UI styles.
type Styles struct {
	Title       lipgloss.Style
	Normal      lipgloss.Style
	Muted       lipgloss.Style
	Help        lipgloss.Style
	Keep        lipgloss.Style
	Delete      lipgloss.Style
	Error       lipgloss.Style
	Success     lipgloss.Style
	Border      lipgloss.Style
	CurrentCard lipgloss.Style
	Card        lipgloss.Style
}

const (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorKeep    = lipgloss.Color("#04B575")
	colorDelete  = lipgloss.Color("#FF5F87")
	colorMuted   = lipgloss.Color("#737373")
	colorText    = lipgloss.Color("#FAFAFA")
)

// cardWidth is the inner width of one card in the stack.
const cardWidth = 28

// DefaultStyles returns the default style set.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			PaddingBottom(1),

		Normal: lipgloss.NewStyle().
			Foreground(colorText),

		Muted: lipgloss.NewStyle().
			Foreground(colorMuted),

		Help: lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true),

		Keep: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorKeep),

		Delete: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorDelete),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")),

		Success: lipgloss.NewStyle().
			Foreground(colorKeep),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(1, 3),

		CurrentCard: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(colorPrimary).
			Width(cardWidth).
			Padding(1, 1),

		Card: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorMuted).
			Foreground(colorMuted).
			Width(cardWidth).
			Padding(1, 1),
	}
}
