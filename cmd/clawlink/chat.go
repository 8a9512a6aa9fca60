package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"clawlink/internal/datadir"
	"clawlink/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat client",
	Long: `Open a terminal chat with the gateway's assistant.

Logs go to clawlink.log in the data directory so they do not disturb the screen.

Key bindings:
  Enter           Send message
  Alt+Enter       New line
  PageUp/PageDown Scroll chat history
  /reconnect      Connect again after giving up
  Ctrl+C          Quit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		dd, err := datadir.New(cfg.DataDir)
		if err != nil {
			return err
		}
		if err := dd.Ensure(); err != nil {
			return err
		}
		logPath := filepath.Join(dd.Root(), "clawlink.log")
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logFile.Close()

		logger, err := newLogger(logFile, cfg)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		s, err := newSession(ctx, cfg, logger)
		if err != nil {
			return err
		}

		return tui.Run(ctx, tui.RunConfig{
			Client:          s.client,
			MaxAttempts:     cfg.Reconnect.MaxAttempts,
			Observers:       s.observers(),
			DiagnosticSinks: s.diagnosticSinks(),
		})
	},
}
