package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the client drives
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer opens transports to the gateway
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (Conn, error)
}

// wsDialer adapts a gorilla dialer to Dialer
type wsDialer struct {
	dialer *websocket.Dialer
}

func newWSDialer(handshakeTimeout time.Duration) *wsDialer {
	return &wsDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (d *wsDialer) DialContext(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, &HandshakeError{StatusCode: resp.StatusCode, Err: err}
		}
		return nil, err
	}
	return conn, nil
}

// HandshakeError is a dial failure where the gateway answered the upgrade
// request with a non-101 status, typically 401 for a bad token
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return e.Err.Error() + " (status " + http.StatusText(e.StatusCode) + ")"
}

func (e *HandshakeError) Unwrap() error { return e.Err }
