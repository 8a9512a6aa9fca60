package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"clawlink/internal/logging"
	"clawlink/internal/mockgw"
	"clawlink/pkg/tokens"
)

var (
	mockListen        string
	mockToken         string
	mockGenerateToken bool
	mockReplyDelay    time.Duration
	mockRateLimit     int
)

var mockGatewayCmd = &cobra.Command{
	Use:   "mock-gateway",
	Short: "Run a local stand-in gateway for development",
	Long: `Run a WebSocket server that speaks the gateway protocol. It reports a
status on connect and answers each chat message with typing indicators and a
canned reply, which is enough to exercise the client end to end.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		level := "info"
		if verbose {
			level = "debug"
		}
		logger, err := logging.New(os.Stderr, logging.Options{
			Level:     level,
			Format:    logging.Format(logFormat),
			Prefix:    "mock-gateway",
			Timestamp: true,
		})
		if err != nil {
			return err
		}

		tok := mockToken
		if mockGenerateToken {
			tok, err = tokens.Generate()
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token: %s\n", tok)
			fmt.Fprintf(cmd.OutOrStdout(), "Connect with: CLAWDBOT_GATEWAY_TOKEN=%s clawlink --url ws://%s\n", tok, mockListen)
		}

		warnDamagedToken(logger, tok)

		srv := mockgw.New(
			mockgw.WithToken(tok),
			mockgw.WithReplyDelay(mockReplyDelay),
			mockgw.WithRateLimit(mockRateLimit, time.Minute),
			mockgw.WithLogger(logger),
		)

		ctx, cancel := signalContext()
		defer cancel()

		logger.Info("listening", "addr", mockListen, "token", tokens.Display(tok))
		return srv.ListenAndServe(ctx, mockListen)
	},
}

func init() {
	mockGatewayCmd.Flags().StringVar(&mockListen, "listen", "localhost:18789", "address to listen on")
	mockGatewayCmd.Flags().StringVar(&mockToken, "token", "", "require this token from clients")
	mockGatewayCmd.Flags().BoolVar(&mockGenerateToken, "generate-token", false, "generate and require a fresh token")
	mockGatewayCmd.Flags().DurationVar(&mockReplyDelay, "reply-delay", time.Second, "delay before each reply")
	mockGatewayCmd.Flags().IntVar(&mockRateLimit, "rate-limit", 0, "max chat messages per caller per minute (0 disables)")
	mockGatewayCmd.MarkFlagsMutuallyExclusive("token", "generate-token")
}
