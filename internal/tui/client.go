package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"clawlink/internal/gateway"
	"clawlink/pkg/protocol"
)

// Bridge feeds a gateway.Client into a BubbleTea program. Events and
// diagnostics land on an inbox that ListenCmd drains one message at a time.
type Bridge struct {
	client *gateway.Client
	inbox  chan tea.Msg
	done   chan struct{}
	once   sync.Once
}

// NewBridge wires client to a fresh inbox. It registers itself as the
// client's event handler, chained after observers.
func NewBridge(client *gateway.Client, observers ...gateway.Handler) *Bridge {
	b := &Bridge{
		client: client,
		inbox:  make(chan tea.Msg, 256),
		done:   make(chan struct{}),
	}
	client.SetHandler(gateway.Tee(append(observers, b.handleEvent)...))
	return b
}

// handleEvent runs on the client's read goroutine. Blocking here applies
// backpressure to the gateway instead of dropping chat messages.
func (b *Bridge) handleEvent(ev protocol.Event) {
	select {
	case b.inbox <- EventMsg{Event: ev}:
	case <-b.done:
	}
}

// HandleDiagnostic queues a diagnostic for the UI; use it as a
// gateway.ForwardDiagnostics sink. Diagnostics are dropped when the inbox is full.
func (b *Bridge) HandleDiagnostic(d gateway.Diagnostic) {
	select {
	case b.inbox <- DiagnosticMsg{Diagnostic: d}:
	default:
	}
}

// ConnectCmd returns a tea.Cmd that connects to the gateway
func (b *Bridge) ConnectCmd() tea.Cmd {
	return func() tea.Msg {
		return ConnectResultMsg{Err: b.client.Connect(context.Background(), nil)}
	}
}

// ListenCmd returns a tea.Cmd that blocks until the next message arrives on the inbox
func (b *Bridge) ListenCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.inbox:
			return msg
		case <-b.done:
			return ClosedMsg{}
		}
	}
}

// Send queues payload on the client
func (b *Bridge) Send(payload protocol.Outbound) bool {
	return b.client.Send(payload)
}

// State returns the client's connection state
func (b *Bridge) State() gateway.State {
	return b.client.State()
}

// Close disconnects the client and releases pending listeners
func (b *Bridge) Close() {
	b.once.Do(func() {
		close(b.done)
		b.client.Disconnect()
	})
}
