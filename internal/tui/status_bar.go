package tui

import (
	"fmt"
	"strings"

	"clawlink/internal/gateway"
)

// StatusBarModel manages the bottom status bar
type StatusBarModel struct {
	State       gateway.State
	Attempt     int
	MaxAttempts int
	GatewayURL  string
	Online      bool
	Model       string
	Version     string
	BotTyping   bool
	Width       int
	Styles      Styles
}

// NewStatusBarModel creates a new status bar
func NewStatusBarModel(styles Styles) StatusBarModel {
	return StatusBarModel{
		Styles: styles,
	}
}

// View renders the status bar
func (s StatusBarModel) View() string {
	var parts []string

	switch s.State {
	case gateway.Connected:
		parts = append(parts, s.Styles.StatusConnected.Render("* connected"))
	case gateway.Connecting:
		parts = append(parts, s.Styles.StatusReconnecting.Render("~ connecting"))
	case gateway.Reconnecting:
		label := fmt.Sprintf("~ reconnecting (%d)", s.Attempt)
		if s.MaxAttempts > 0 {
			label = fmt.Sprintf("~ reconnecting (%d/%d)", s.Attempt, s.MaxAttempts)
		}
		parts = append(parts, s.Styles.StatusReconnecting.Render(label))
	default:
		parts = append(parts, s.Styles.StatusDisconnected.Render("x disconnected"))
	}

	if s.GatewayURL != "" {
		url := strings.TrimPrefix(s.GatewayURL, "ws://")
		url = strings.TrimPrefix(url, "wss://")
		if len(url) > 25 {
			url = url[:22] + "..."
		}
		parts = append(parts, s.Styles.Muted.Render(url))
	}

	if s.State == gateway.Connected && !s.Online {
		parts = append(parts, s.Styles.StatusDisconnected.Render("gateway offline"))
	}

	if s.Model != "" {
		parts = append(parts, s.Styles.Accent.Render(s.Model))
	}

	if s.Version != "" {
		parts = append(parts, s.Styles.Muted.Render("v"+strings.TrimPrefix(s.Version, "v")))
	}

	if s.BotTyping {
		parts = append(parts, s.Styles.Accent.Render("typing..."))
	}

	return s.Styles.StatusBar.Width(s.Width).Render(strings.Join(parts, "  |  "))
}
