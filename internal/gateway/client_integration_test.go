package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawlink/internal/mockgw"
	"clawlink/pkg/protocol"
)

func startMockGateway(t *testing.T, opts ...mockgw.Option) (*mockgw.Server, string) {
	t.Helper()
	gw := mockgw.New(append([]mockgw.Option{mockgw.WithReplyDelay(0)}, opts...)...)
	ts := httptest.NewServer(gw)
	t.Cleanup(func() {
		ts.Close()
		gw.Close()
	})
	return gw, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestIntegration_ChatRoundTrip(t *testing.T) {
	_, url := startMockGateway(t, mockgw.WithToken("tok"))

	c, err := New(url, "tok", WithPingInterval(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(c.Disconnect)

	events := make(chan protocol.Event, 16)
	require.NoError(t, c.Connect(context.Background(), func(ev protocol.Event) { events <- ev }))

	next := func() protocol.Event {
		select {
		case ev := <-events:
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for gateway event")
			return nil
		}
	}

	assert.IsType(t, protocol.StatusEvent{}, next())

	require.True(t, c.Send(protocol.NewChatMessage("ping")))
	assert.Equal(t, protocol.TypingEvent{IsTyping: true}, next())
	reply, ok := next().(protocol.MessageEvent)
	require.True(t, ok)
	assert.Equal(t, "You said: ping", reply.Message.Content)
	assert.Equal(t, protocol.TypingEvent{IsTyping: false}, next())
}

func TestIntegration_BadTokenIsHandshakeError(t *testing.T) {
	_, url := startMockGateway(t, mockgw.WithToken("right"))

	c, err := New(url, "wrong", WithMaxAttempts(0))
	require.NoError(t, err)
	t.Cleanup(c.Disconnect)

	err = c.Connect(context.Background(), nil)
	require.ErrorIs(t, err, ErrConnectFailure)

	var herr *HandshakeError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusUnauthorized, herr.StatusCode)

	waitDiag(t, c, DiagReconnectExhausted)
	assert.Equal(t, Disconnected, c.State())
}

func TestIntegration_ReconnectsAfterGatewayDrop(t *testing.T) {
	gw, url := startMockGateway(t)

	c, err := New(url, "", WithPingInterval(0), WithBaseDelay(5*time.Millisecond), WithCapDelay(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(c.Disconnect)

	statuses := make(chan struct{}, 4)
	require.NoError(t, c.Connect(context.Background(), func(ev protocol.Event) {
		if _, ok := ev.(protocol.StatusEvent); ok {
			statuses <- struct{}{}
		}
	}))

	select {
	case <-statuses:
	case <-time.After(2 * time.Second):
		t.Fatal("no status after connect")
	}
	require.Eventually(t, func() bool { return gw.Connections() == 1 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, gw.Drop())

	// a fresh connection greets the client again
	select {
	case <-statuses:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not reconnect after drop")
	}
	assert.True(t, c.IsConnected())
	assert.Zero(t, c.RetryCount())
}

func TestIntegration_ZeroHandshakeTimeoutStillDials(t *testing.T) {
	_, url := startMockGateway(t)

	c, err := New(url, "", WithHandshakeTimeout(0), WithMaxAttempts(0), WithPingInterval(0))
	require.NoError(t, err)
	t.Cleanup(c.Disconnect)

	require.NoError(t, c.Connect(context.Background(), nil))
	assert.Equal(t, Connected, c.State())
	assert.True(t, c.IsConnected())
}
