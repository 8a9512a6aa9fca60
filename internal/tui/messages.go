package tui

import (
	"clawlink/internal/gateway"
	"clawlink/pkg/protocol"
)

// BubbleTea message types produced by the gateway bridge

// EventMsg wraps a decoded gateway event
type EventMsg struct {
	Event protocol.Event
}

// DiagnosticMsg wraps a client lifecycle or failure notice
type DiagnosticMsg struct {
	gateway.Diagnostic
}

// ConnectResultMsg reports the outcome of an explicit connect
type ConnectResultMsg struct {
	Err error
}

// ClosedMsg signals that the bridge was shut down
type ClosedMsg struct{}

// ThinkingTickMsg drives the typing scanner animation in the chat view
type ThinkingTickMsg struct{}
