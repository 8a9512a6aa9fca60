package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"clawlink/internal/config"
	"clawlink/internal/datadir"
	"clawlink/internal/gateway"
	"clawlink/internal/logging"
	"clawlink/internal/metrics"
	"clawlink/internal/version"
	"clawlink/pkg/tokens"
)

var (
	cfgFile     string
	gatewayURL  string
	token       string
	verbose     bool
	logFormat   string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "clawlink",
	Short: "Terminal client for a Clawdbot gateway",
	Long: `clawlink connects to a Clawdbot gateway over WebSocket and lets you chat
with the assistant from the terminal. The connection is kept alive with
exponential-backoff reconnects.

Configuration is read from ~/.clawlink/config.yaml (or $CLAWLINK_HOME), then
CLAWDBOT_GATEWAY_URL and CLAWDBOT_GATEWAY_TOKEN, then command-line flags.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default $CLAWLINK_HOME/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "url", "", "gateway WebSocket URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "gateway auth token")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", string(logging.FormatText), "log format: text, json or logfmt")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(mockGatewayCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	// Chat is the default command
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return chatCmd.RunE(cmd, args)
	}
}

// dataDir resolves the data directory and loads its .env files so
// ${VAR} references in the config can see them
func dataDir() (*datadir.DataDir, error) {
	dd, err := datadir.New("")
	if err != nil {
		return nil, err
	}
	if err := datadir.LoadEnv(dd.Root()); err != nil {
		return nil, fmt.Errorf("failed to load .env files: %w", err)
	}
	return dd, nil
}

// loadConfig reads the config file and applies command-line overrides
func loadConfig() (*config.Config, error) {
	dd, err := dataDir()
	if err != nil {
		return nil, err
	}

	path := cfgFile
	if path == "" {
		path = dd.ConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if gatewayURL != "" {
		cfg.GatewayURL = gatewayURL
	}
	if token != "" {
		cfg.Token = token
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = dd.Root()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	return logging.New(w, logging.Options{
		Level:     cfg.LogLevel,
		Format:    logging.Format(logFormat),
		Timestamp: true,
	})
}

// session bundles what every client-side command needs
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *gateway.Client
	metrics *metrics.Collector
}

func newSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*session, error) {
	headers := http.Header{}
	headers.Set("User-Agent", version.UserAgent())

	client, err := gateway.NewFromConfig(cfg,
		gateway.WithLogger(logger),
		gateway.WithHeaders(headers),
	)
	if err != nil {
		return nil, err
	}

	warnDamagedToken(logger, cfg.Token)
	s := &session{cfg: cfg, logger: logger, client: client}

	if cfg.MetricsAddr != "" {
		s.metrics = metrics.New()
		s.metrics.SetState(gateway.Disconnected)
		go func() {
			if err := s.metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	return s, nil
}

// observers returns event handlers that run ahead of the command's own
func (s *session) observers() []gateway.Handler {
	if s.metrics == nil {
		return nil
	}
	return []gateway.Handler{s.metrics.ObserveEvent}
}

// diagnosticSinks returns sinks that run ahead of the command's own
func (s *session) diagnosticSinks() []func(gateway.Diagnostic) {
	if s.metrics == nil {
		return nil
	}
	return []func(gateway.Diagnostic){func(d gateway.Diagnostic) {
		s.metrics.ObserveDiagnostic(d)
		s.metrics.SetState(s.client.State())
	}}
}

// damagedToken reports a token that looks minted by `mock-gateway
// --generate-token` but fails its checksum, usually a copy/paste slip
func damagedToken(tok string) bool {
	return strings.HasPrefix(tok, tokens.Prefix) && !tokens.WellFormed(tok)
}

func warnDamagedToken(logger *slog.Logger, tok string) {
	if damagedToken(tok) {
		logger.Warn("token checksum does not match, it may be truncated or mistyped", "token", tokens.Display(tok))
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
