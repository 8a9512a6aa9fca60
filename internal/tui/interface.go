package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"clawlink/internal/gateway"
	"clawlink/pkg/protocol"
)

// GatewayClient abstracts the connection between the TUI and the gateway.
// Bridge implements it over a gateway.Client.
type GatewayClient interface {
	ConnectCmd() tea.Cmd
	ListenCmd() tea.Cmd
	Send(payload protocol.Outbound) bool
	State() gateway.State
	Close()
}
