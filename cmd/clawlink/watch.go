package main

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"clawlink/internal/gateway"
	"clawlink/pkg/protocol"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print gateway events and connection changes as they happen",
	Long: `Connect to the gateway and print every event on stdout, one per line.
Connection diagnostics are logged on stderr. Stops on Ctrl+C, or when the
client gives up reconnecting.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(os.Stderr, cfg)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		s, err := newSession(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer s.client.Disconnect()

		out := cmd.OutOrStdout()
		handler := gateway.Tee(append(s.observers(), func(ev protocol.Event) {
			fmt.Fprintln(out, formatEvent(ev))
		})...)

		exhausted := make(chan struct{})
		var once sync.Once
		sinks := append(s.diagnosticSinks(), func(d gateway.Diagnostic) {
			logDiagnostic(s, d)
			if d.Kind == gateway.DiagReconnectExhausted {
				once.Do(func() { close(exhausted) })
			}
		})
		go gateway.ForwardDiagnostics(ctx, s.client, sinks...)

		// A failed first dial still schedules reconnects, so keep watching
		if err := s.client.Connect(ctx, handler); err != nil && !errors.Is(err, gateway.ErrConnectFailure) {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-exhausted:
			return gateway.ErrReconnectExhausted
		}
	},
}

func logDiagnostic(s *session, d gateway.Diagnostic) {
	switch d.Kind {
	case gateway.DiagConnected:
		s.logger.Info("connected", "url", s.client.URL())
	case gateway.DiagReconnectScheduled:
		s.logger.Warn("reconnecting", "attempt", d.Attempt, "delay", d.Delay)
	case gateway.DiagReconnectExhausted:
		s.logger.Error("gave up reconnecting", "error", d.Err)
	default:
		if d.Err != nil {
			s.logger.Warn(d.Kind.String(), "error", d.Err)
		} else {
			s.logger.Info(d.Kind.String())
		}
	}
}

// formatEvent renders ev as a single line
func formatEvent(ev protocol.Event) string {
	switch e := ev.(type) {
	case protocol.MessageEvent:
		ts := time.UnixMilli(e.Message.Timestamp).Format(time.TimeOnly)
		return fmt.Sprintf("[%s] %s: %s", ts, e.Message.Sender, e.Message.Content)
	case protocol.StatusEvent:
		state := "offline"
		if e.Status.Online {
			state = "online"
		}
		line := "status: " + state
		if e.Status.Model != "" {
			line += " model=" + e.Status.Model
		}
		if e.Status.Version != "" {
			line += " version=" + e.Status.Version
		}
		return line
	case protocol.TypingEvent:
		if e.IsTyping {
			return "typing..."
		}
		return "typing stopped"
	case protocol.ErrorEvent:
		return "error: " + e.Message
	default:
		return string(ev.Type())
	}
}
