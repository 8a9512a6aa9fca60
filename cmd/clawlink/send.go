package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clawlink/internal/gateway"
	"clawlink/pkg/protocol"
)

var sendTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send one message and print the assistant's reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Reconnects make no sense for a one-shot exchange
		cfg.Reconnect.MaxAttempts = 0

		logger, err := newLogger(os.Stderr, cfg)
		if err != nil {
			return err
		}

		sigCtx, cancel := signalContext()
		defer cancel()
		ctx, cancelTimeout := context.WithTimeout(sigCtx, sendTimeout)
		defer cancelTimeout()

		s, err := newSession(ctx, cfg, logger)
		if err != nil {
			return err
		}

		return waitForReply(ctx, s, strings.Join(args, " "), cmd.OutOrStdout())
	},
}

func init() {
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 60*time.Second, "how long to wait for a reply")
}

// waitForReply connects, sends text and returns the first bot message
func waitForReply(ctx context.Context, s *session, text string, w io.Writer) error {
	replies := make(chan protocol.ChatMessage, 1)
	handler := gateway.Tee(append(s.observers(), func(ev protocol.Event) {
		switch e := ev.(type) {
		case protocol.MessageEvent:
			if e.Message.Sender == protocol.SenderBot {
				select {
				case replies <- e.Message:
				default:
				}
			}
		case protocol.ErrorEvent:
			s.logger.Warn("gateway error", "message", e.Message)
		}
	})...)

	go gateway.ForwardDiagnostics(ctx, s.client, s.diagnosticSinks()...)

	defer s.client.Disconnect()
	if err := s.client.Connect(ctx, handler); err != nil {
		return err
	}

	if !s.client.Send(protocol.NewChatMessage(text)) {
		return gateway.ErrNotConnected
	}

	select {
	case msg := <-replies:
		fmt.Fprintln(w, msg.Content)
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("no reply within timeout")
		}
		return ctx.Err()
	}
}
