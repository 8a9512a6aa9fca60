package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds all the TUI styling definitions
type Styles struct {
	// Chat bubbles
	UserBubble   lipgloss.Style
	BotBubble    lipgloss.Style
	SystemBubble lipgloss.Style
	UserLabel    lipgloss.Style
	BotLabel     lipgloss.Style
	Divider      lipgloss.Style
	Failed       lipgloss.Style

	// Status bar
	StatusBar          lipgloss.Style
	StatusConnected    lipgloss.Style
	StatusDisconnected lipgloss.Style
	StatusReconnecting lipgloss.Style

	// Input
	InputStyle lipgloss.Style

	// Typing indicator
	ThinkingBar   lipgloss.Style
	ThinkingTrack lipgloss.Style

	// General
	Muted       lipgloss.Style
	Accent      lipgloss.Style
	WhiteCursor lipgloss.Style
}

// NewStyles creates the style set using the given renderer.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		UserBubble: r.NewStyle().
			Foreground(lipgloss.Color("75")).
			Padding(0, 1).
			MarginLeft(4),
		BotBubble: r.NewStyle().
			Foreground(lipgloss.Color("252")).
			Padding(0, 1).
			MarginRight(4),
		SystemBubble: r.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true).
			Padding(0, 1),
		UserLabel: r.NewStyle().
			Foreground(lipgloss.Color("75")).
			Bold(true),
		BotLabel: r.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true),
		Divider: r.NewStyle().
			Foreground(lipgloss.Color("238")),
		Failed: r.NewStyle().
			Foreground(lipgloss.Color("196")),

		StatusBar: r.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		StatusConnected: r.NewStyle().
			Foreground(lipgloss.Color("76")).
			Bold(true),
		StatusDisconnected: r.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		StatusReconnecting: r.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),

		InputStyle: r.NewStyle().
			BorderTop(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("238")),

		ThinkingBar: r.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true),
		ThinkingTrack: r.NewStyle().
			Foreground(lipgloss.Color("238")),

		Muted: r.NewStyle().
			Foreground(lipgloss.Color("245")),
		Accent: r.NewStyle().
			Foreground(lipgloss.Color("213")),
		WhiteCursor: r.NewStyle().
			Foreground(lipgloss.Color("15")),
	}
}
