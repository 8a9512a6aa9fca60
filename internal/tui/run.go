package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"clawlink/internal/gateway"
)

// RunConfig holds what Run needs to drive a chat session
type RunConfig struct {
	Client      *gateway.Client
	MaxAttempts int
	// Observers see every event before the UI does
	Observers []gateway.Handler
	// DiagnosticSinks see every diagnostic before the UI does
	DiagnosticSinks []func(gateway.Diagnostic)
}

// Run starts the interactive chat client and blocks until the user quits
func Run(ctx context.Context, config RunConfig) error {
	bridge := NewBridge(config.Client, config.Observers...)
	defer bridge.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sinks := append(append([]func(gateway.Diagnostic){}, config.DiagnosticSinks...), bridge.HandleDiagnostic)
	go gateway.ForwardDiagnostics(ctx, config.Client, sinks...)

	model := NewModel(ModelConfig{
		Client:      bridge,
		GatewayURL:  config.Client.URL(),
		MaxAttempts: config.MaxAttempts,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
