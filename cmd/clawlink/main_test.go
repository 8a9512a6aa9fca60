package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawlink/internal/config"
	"clawlink/internal/logging"
	"clawlink/internal/mockgw"
	"clawlink/pkg/protocol"
	"clawlink/pkg/tokens"
)

// resetFlags isolates a test from flag values and the user's environment
func resetFlags(t *testing.T) {
	t.Helper()
	t.Setenv("CLAWLINK_HOME", t.TempDir())
	t.Setenv(config.EnvGatewayURL, "")
	t.Setenv(config.EnvGatewayToken, "")

	saved := []string{cfgFile, gatewayURL, token, logFormat, metricsAddr}
	savedVerbose := verbose
	t.Cleanup(func() {
		cfgFile, gatewayURL, token, logFormat, metricsAddr = saved[0], saved[1], saved[2], saved[3], saved[4]
		verbose = savedVerbose
	})
	cfgFile, gatewayURL, token, logFormat, metricsAddr = "", "", "", string(logging.FormatText), ""
	verbose = false
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	resetFlags(t)

	cfgFile = filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("gateway_url: ws://from-file:1\ntoken: file-token\n"), 0600))

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "ws://from-file:1", cfg.GatewayURL)
	assert.Equal(t, "file-token", cfg.Token)
	assert.Equal(t, os.Getenv("CLAWLINK_HOME"), cfg.DataDir)

	gatewayURL = "wss://from-flag:2"
	token = "flag-token"
	verbose = true

	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "wss://from-flag:2", cfg.GatewayURL)
	assert.Equal(t, "flag-token", cfg.Token)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_RejectsBadURL(t *testing.T) {
	resetFlags(t)
	gatewayURL = "http://not-a-socket"

	_, err := loadConfig()
	assert.ErrorContains(t, err, "ws:// or wss://")
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)

	tests := []struct {
		name string
		ev   protocol.Event
		want string
	}{
		{"message", protocol.MessageEvent{Message: protocol.ChatMessage{
			Content: "hello", Sender: protocol.SenderBot, Timestamp: ts.UnixMilli(),
		}}, "[09:30:00] bot: hello"},
		{"status", protocol.StatusEvent{Status: protocol.GatewayStatus{Online: true, Model: "m", Version: "1"}}, "status: online model=m version=1"},
		{"offline", protocol.StatusEvent{}, "status: offline"},
		{"typing", protocol.TypingEvent{IsTyping: true}, "typing..."},
		{"typing stopped", protocol.TypingEvent{}, "typing stopped"},
		{"error", protocol.ErrorEvent{Message: "boom"}, "error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatEvent(tt.ev))
		})
	}
}

func TestWaitForReply(t *testing.T) {
	resetFlags(t)

	gw := mockgw.New(mockgw.WithToken("tok"), mockgw.WithReplyDelay(0))
	ts := httptest.NewServer(gw)
	t.Cleanup(func() {
		ts.Close()
		gw.Close()
	})

	gatewayURL = "ws" + strings.TrimPrefix(ts.URL, "http")
	token = "tok"
	cfg, err := loadConfig()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := newSession(ctx, cfg, logging.Discard())
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, waitForReply(ctx, s, "ping", &out))
	assert.Equal(t, "You said: ping\n", out.String())
	assert.False(t, s.client.IsConnected())
}

func TestWaitForReply_Timeout(t *testing.T) {
	resetFlags(t)

	gw := mockgw.New(mockgw.WithReplyDelay(time.Hour))
	ts := httptest.NewServer(gw)
	t.Cleanup(func() {
		ts.Close()
		gw.Close()
	})

	gatewayURL = "ws" + strings.TrimPrefix(ts.URL, "http")
	cfg, err := loadConfig()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	s, err := newSession(ctx, cfg, logging.Discard())
	require.NoError(t, err)

	var out bytes.Buffer
	assert.ErrorContains(t, waitForReply(ctx, s, "ping", &out), "no reply within timeout")
	assert.Empty(t, out.String())
}

func TestDamagedToken(t *testing.T) {
	tok, err := tokens.Generate()
	require.NoError(t, err)

	assert.False(t, damagedToken(tok))
	assert.False(t, damagedToken(""))
	assert.False(t, damagedToken("some-other-gateway-token"))
	assert.True(t, damagedToken(tok[:len(tok)-3]))
}

func TestConfigInit_CreatesDataDir(t *testing.T) {
	resetFlags(t)
	home := filepath.Join(t.TempDir(), "fresh", "clawlink")
	t.Setenv("CLAWLINK_HOME", home)

	var out bytes.Buffer
	configInitCmd.SetOut(&out)
	t.Cleanup(func() { configInitCmd.SetOut(nil) })

	require.NoError(t, configInitCmd.RunE(configInitCmd, nil))

	info, err := os.Stat(home)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	path := filepath.Join(home, "config.yaml")
	assert.Equal(t, "Wrote "+path+"\n", out.String())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultGatewayURL, cfg.GatewayURL)

	assert.ErrorContains(t, configInitCmd.RunE(configInitCmd, nil), "already exists")
}
