package gateway

import (
	"log/slog"
	"net/http"
	"time"
)

// Option modifies client options
type Option func(*options)

// WithBaseDelay sets the base of the exponential reconnect backoff
func WithBaseDelay(d time.Duration) Option {
	return func(o *options) {
		o.baseDelay = d
	}
}

// WithCapDelay sets the ceiling of a single reconnect delay
func WithCapDelay(d time.Duration) Option {
	return func(o *options) {
		o.capDelay = d
	}
}

// WithMaxAttempts sets how many automatic reconnects are tried before giving up
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// WithHandshakeTimeout bounds each dial, including the HTTP upgrade
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		o.handshakeTimeout = d
	}
}

// WithPingInterval sets the heartbeat interval; zero disables pings and read deadlines
func WithPingInterval(d time.Duration) Option {
	return func(o *options) {
		o.pingInterval = d
	}
}

// WithSendBuffer sets how many encoded frames may wait for the write pump
func WithSendBuffer(n int) Option {
	return func(o *options) {
		o.sendBuffer = n
	}
}

// WithDiagnosticsBuffer sets the capacity of the diagnostics channel
func WithDiagnosticsBuffer(n int) Option {
	return func(o *options) {
		o.diagBuffer = n
	}
}

// WithReadLimit sets the maximum size in bytes of an inbound frame
func WithReadLimit(n int64) Option {
	return func(o *options) {
		o.readLimit = n
	}
}

// WithHeaders sets extra HTTP headers for the upgrade request
func WithHeaders(h http.Header) Option {
	return func(o *options) {
		o.headers = h
	}
}

// WithLogger sets the logger for client events
// @see https://pkg.go.dev/log/slog
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDialer replaces the WebSocket dialer, mostly for tests
func WithDialer(d Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

const (
	DefaultBaseDelay        = 1 * time.Second
	DefaultCapDelay         = 30 * time.Second
	DefaultMaxAttempts      = 5
	DefaultHandshakeTimeout = 30 * time.Second
)

var defaultOptions = options{
	baseDelay:        DefaultBaseDelay,
	capDelay:         DefaultCapDelay,
	maxAttempts:      DefaultMaxAttempts,
	handshakeTimeout: DefaultHandshakeTimeout,
	pingInterval:     30 * time.Second,
	writeWait:        1 * time.Second,
	sendBuffer:       64,
	diagBuffer:       64,
	readLimit:        1 << 20,
	logger:           slog.New(slog.DiscardHandler),
}

type options struct {
	// logger for logging client events
	logger *slog.Logger

	// optional HTTP headers to include in the upgrade request
	headers http.Header

	// dialer opens transports; a gorilla dialer when nil
	dialer Dialer

	// reconnect backoff: min(baseDelay * 2^attempt, capDelay)
	baseDelay time.Duration
	capDelay  time.Duration

	// maxAttempts is the retry ceiling
	maxAttempts int

	// handshakeTimeout bounds a single dial
	handshakeTimeout time.Duration

	// pingInterval is the interval between pings to the gateway
	pingInterval time.Duration

	// writeWait is the time allowed to write a frame to the gateway
	writeWait time.Duration

	// capacity of the outbound queue and of the diagnostics channel
	sendBuffer int
	diagBuffer int

	// the maximum size in bytes for a frame read from the gateway
	readLimit int64
}

// pongWait is how long the read pump waits for any frame, pong included
func (o *options) pongWait() time.Duration {
	return o.pingInterval * 2
}
