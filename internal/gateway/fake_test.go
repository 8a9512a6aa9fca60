package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory transport. Frames pushed onto inbound are read by
// the client; drop simulates the gateway going away.
type fakeConn struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once

	mu       sync.Mutex
	writes   [][]byte
	controls []int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-c.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
	default:
	}
	select {
	case data := <-c.inbound:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) WriteControl(messageType int, _ []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = append(c.controls, messageType)
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.drop()
	return nil
}

func (c *fakeConn) drop() {
	c.once.Do(func() { close(c.closed) })
}

func (c *fakeConn) push(frame string) {
	c.inbound <- []byte(frame)
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

func (c *fakeConn) controlFrames() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.controls...)
}

var errRefused = errors.New("dial tcp 127.0.0.1:18789: connect: connection refused")

// fakeDialer hands out fakeConns, or fails while failing is set
type fakeDialer struct {
	failing atomic.Bool
	conns   chan *fakeConn

	mu   sync.Mutex
	urls []string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) DialContext(ctx context.Context, url string, _ http.Header) (Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.failing.Load() {
		return nil, errRefused
	}
	conn := newFakeConn()
	d.conns <- conn
	return conn, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) lastURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.urls) == 0 {
		return ""
	}
	return d.urls[len(d.urls)-1]
}

func (d *fakeDialer) nextConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case conn := <-d.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a dial")
		return nil
	}
}

func newTestClient(t *testing.T, d *fakeDialer, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithDialer(d),
		WithPingInterval(0),
		WithBaseDelay(time.Millisecond),
		WithCapDelay(30 * time.Millisecond),
	}
	c, err := New("ws://gateway.test:18789", "", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(c.Disconnect)
	return c
}

// waitDiag reads diagnostics until one of kind arrives, returning it and
// everything seen before it
func waitDiag(t *testing.T, c *Client, kind DiagnosticKind) (Diagnostic, []Diagnostic) {
	t.Helper()
	var seen []Diagnostic
	timeout := time.After(2 * time.Second)
	for {
		select {
		case d := <-c.Diagnostics():
			if d.Kind == kind {
				return d, seen
			}
			seen = append(seen, d)
		case <-timeout:
			t.Fatalf("timed out waiting for %s diagnostic, saw %v", kind, kinds(seen))
			return Diagnostic{}, nil
		}
	}
}

func kinds(ds []Diagnostic) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Kind.String())
	}
	return out
}
