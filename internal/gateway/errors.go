package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectFailure matches every *ConnectError via errors.Is
	ErrConnectFailure = errors.New("gateway: connect failure")

	// ErrAlreadyConnected is returned by Connect while Connecting or Connected
	ErrAlreadyConnected = errors.New("gateway: already connecting or connected")

	// ErrNotConnected is reported when Send is called without an open connection
	ErrNotConnected = errors.New("gateway: not connected")

	// ErrSendBufferFull is reported when the outbound queue cannot take another frame
	ErrSendBufferFull = errors.New("gateway: send buffer full")

	// ErrReconnectExhausted is reported once the retry ceiling has been reached
	ErrReconnectExhausted = errors.New("gateway: reconnect attempts exhausted")

	// ErrDisconnected is reported when Disconnect interrupts an in-flight dial
	ErrDisconnected = errors.New("gateway: disconnected by caller")

	// ErrInvalidEndpoint is returned by New for URLs that are not ws:// or wss://
	ErrInvalidEndpoint = errors.New("gateway: invalid endpoint")
)

// ConnectError reports a transport that could not be opened
type ConnectError struct {
	URL     string // endpoint without credentials
	Attempt int    // 0 for the explicit Connect, otherwise the reconnect attempt
	Err     error
}

func (e *ConnectError) Error() string {
	if e.Attempt > 0 {
		return fmt.Sprintf("gateway: connect to %s failed (attempt %d): %v", e.URL, e.Attempt, e.Err)
	}
	return fmt.Sprintf("gateway: connect to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Is(target error) bool { return target == ErrConnectFailure }
