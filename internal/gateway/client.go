package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"clawlink/internal/config"
	"clawlink/pkg/protocol"
	"clawlink/pkg/tokens"
)

// Handler receives decoded gateway events, one call per frame, in wire order.
// It runs on the client's read goroutine and may call Send or Disconnect.
type Handler func(protocol.Event)

// Client owns at most one WebSocket connection to a gateway and reconnects
// with bounded exponential backoff when the transport drops.
type Client struct {
	// internal unique client id, echoed back in pongs
	id string

	// the gateway endpoint without credentials
	endpoint *url.URL

	// optional bearer token, sent as the token query parameter
	token string

	options options
	backoff Backoff
	logger  *slog.Logger
	dialer  Dialer

	// lifecycle notices for callers; never closed
	diagnostics chan Diagnostic

	// mu guards everything below
	mu sync.Mutex

	state   State
	retries int

	// generation increments whenever the current transport or pending timer
	// stops being the live one; callbacks carrying an older value are ignored
	generation uint64

	conn     Conn
	outbound chan []byte
	done     chan struct{}
	timer    *time.Timer
	handler  Handler
}

// New creates a client for the gateway at rawURL. An empty rawURL falls back
// to config.DefaultGatewayURL. The client starts Disconnected.
func New(rawURL, token string, opts ...Option) (*Client, error) {
	if rawURL == "" {
		rawURL = config.DefaultGatewayURL
	}

	endpoint, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if endpoint.Scheme != "ws" && endpoint.Scheme != "wss" {
		return nil, fmt.Errorf("%w: scheme must be ws or wss, got %q", ErrInvalidEndpoint, endpoint.Scheme)
	}
	if endpoint.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, rawURL)
	}

	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxAttempts < 0 {
		o.maxAttempts = 0
	}
	if o.sendBuffer < 1 {
		o.sendBuffer = 1
	}
	if o.diagBuffer < 1 {
		o.diagBuffer = 1
	}
	if o.logger == nil {
		o.logger = defaultOptions.logger
	}
	if o.handshakeTimeout <= 0 {
		o.handshakeTimeout = DefaultHandshakeTimeout
	}
	if o.baseDelay <= 0 {
		o.baseDelay = DefaultBaseDelay
	}
	if o.capDelay < o.baseDelay {
		o.capDelay = max(DefaultCapDelay, o.baseDelay)
	}

	c := &Client{
		id:          uuid.NewString(),
		endpoint:    endpoint,
		token:       token,
		options:     o,
		backoff:     Backoff{Base: o.baseDelay, Cap: o.capDelay},
		logger:      o.logger.With("component", "gateway-client"),
		dialer:      o.dialer,
		diagnostics: make(chan Diagnostic, o.diagBuffer),
		state:       Disconnected,
	}
	if c.dialer == nil {
		c.dialer = newWSDialer(o.handshakeTimeout)
	}

	return c, nil
}

// NewFromConfig creates a client from loaded configuration
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	base := []Option{
		WithHandshakeTimeout(cfg.Timeout.Duration),
		WithBaseDelay(cfg.Reconnect.BaseDelay.Duration),
		WithCapDelay(cfg.Reconnect.CapDelay.Duration),
		WithMaxAttempts(cfg.Reconnect.MaxAttempts),
		WithPingInterval(cfg.PingInterval.Duration),
	}
	return New(cfg.GatewayURL, cfg.Token, append(base, opts...)...)
}

// Connect opens the transport and registers handler for all subsequent
// events. It returns nil once the connection is open. A dial failure returns
// a *ConnectError and schedules an automatic reconnect. Calling Connect while
// Connecting or Connected returns ErrAlreadyConnected. Calling it while a
// reconnect is pending cancels the timer and connects now with a fresh
// retry budget.
func (c *Client) Connect(ctx context.Context, handler Handler) error {
	c.mu.Lock()
	switch c.state {
	case Connecting, Connected:
		c.mu.Unlock()
		return ErrAlreadyConnected
	case Reconnecting:
		c.stopTimerLocked()
	}

	if handler != nil {
		c.handler = handler
	}
	c.retries = 0
	c.generation++
	gen := c.generation
	c.setStateLocked(Connecting)
	c.mu.Unlock()

	return c.dial(ctx, gen, 0)
}

// ConnectAsync runs Connect in the background. The returned channel receives
// exactly one value.
func (c *Client) ConnectAsync(handler Handler) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- c.Connect(context.Background(), handler)
	}()
	return result
}

// SetHandler replaces the registered event handler
func (c *Client) SetHandler(handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Send encodes payload and queues it for the gateway. It never blocks and
// never fails loudly: when the client is not connected, or the payload is
// invalid, or the queue is full, the frame is dropped, logged and reported
// as DiagSendRejected. It returns whether the frame was queued.
func (c *Client) Send(payload protocol.Outbound) bool {
	data, err := protocol.Encode(payload)
	if err != nil {
		c.logger.Error("dropping invalid outbound payload", "error", err)
		c.emit(Diagnostic{Kind: DiagSendRejected, Err: err})
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Connected || c.conn == nil {
		c.logger.Warn("send while not connected, dropping frame", "state", c.state.String(), "type", payload.Type)
		c.emit(Diagnostic{Kind: DiagSendRejected, Err: ErrNotConnected})
		return false
	}

	select {
	case c.outbound <- data:
		return true
	default:
		c.logger.Warn("send buffer full, dropping frame", "type", payload.Type, "capacity", cap(c.outbound))
		c.emit(Diagnostic{Kind: DiagSendRejected, Err: ErrSendBufferFull})
		return false
	}
}

// Disconnect cancels any pending reconnect, closes the transport and leaves
// the client Disconnected. It is idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.generation++
	c.stopTimerLocked()
	conn := c.releaseLocked()
	prev := c.state
	c.setStateLocked(Disconnected)
	c.mu.Unlock()

	if conn != nil {
		m := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, m, time.Now().Add(c.options.writeWait)); err != nil {
			c.logger.Debug("failed to send close frame", "error", err)
		}
		if err := conn.Close(); err != nil {
			c.logger.Debug("error closing connection", "error", err)
		}
	}

	if prev != Disconnected {
		c.logger.Info("disconnected by caller", "from", prev.String())
		c.emit(Diagnostic{Kind: DiagDisconnected, Err: ErrDisconnected})
	}
}

// IsConnected returns true if the connection is open
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Connected && c.conn != nil
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RetryCount returns the number of reconnect attempts scheduled since the
// last successful connection or explicit Connect
func (c *Client) RetryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retries
}

// Diagnostics returns the channel carrying lifecycle and failure notices.
// Notices are dropped when the channel is full.
func (c *Client) Diagnostics() <-chan Diagnostic {
	return c.diagnostics
}

// URL returns the gateway endpoint without credentials
func (c *Client) URL() string {
	return c.endpoint.String()
}

// dialURL returns the endpoint with the token appended as a query credential
func (c *Client) dialURL() string {
	if c.token == "" {
		return c.endpoint.String()
	}
	u := *c.endpoint
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()
	return u.String()
}

// dial opens a transport for generation gen. attempt is 0 for an explicit
// Connect and the reconnect attempt number otherwise.
func (c *Client) dial(ctx context.Context, gen uint64, attempt int) error {
	c.logger.Debug("attempting to connect", "uri", c.URL(), "token", tokens.Display(c.token), "attempt", attempt)

	dctx, cancel := context.WithTimeout(ctx, c.options.handshakeTimeout)
	conn, err := c.dialer.DialContext(dctx, c.dialURL(), c.options.headers)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		// Disconnect or a newer Connect won the race
		if conn != nil {
			_ = conn.Close()
		}
		return &ConnectError{URL: c.URL(), Attempt: attempt, Err: ErrDisconnected}
	}

	if err != nil {
		cerr := &ConnectError{URL: c.URL(), Attempt: attempt, Err: err}
		c.logger.Error("connection failure", "uri", c.URL(), "error", err, "attempt", attempt)
		c.emit(Diagnostic{Kind: DiagConnectFailure, Err: cerr, Attempt: attempt})

		if ctx.Err() != nil && attempt == 0 {
			// the caller gave up; do not retry on their behalf
			c.setStateLocked(Disconnected)
			return cerr
		}
		c.scheduleReconnectLocked()
		return cerr
	}

	c.conn = conn
	c.retries = 0
	c.outbound = make(chan []byte, c.options.sendBuffer)
	c.done = make(chan struct{})
	c.setStateLocked(Connected)

	conn.SetReadLimit(c.options.readLimit)
	if c.options.pingInterval > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.options.pongWait()))
		conn.SetPongHandler(func(appData string) error {
			if appData != c.id {
				c.logger.Warn("unexpected pong payload")
			}
			return conn.SetReadDeadline(time.Now().Add(c.options.pongWait()))
		})
	}

	c.logger.Info("connected to gateway", "uri", c.URL())
	c.emit(Diagnostic{Kind: DiagConnected})

	go c.readPump(gen, conn)
	go c.writePump(conn, c.outbound, c.done)

	return nil
}

// readPump decodes inbound frames and dispatches them in arrival order
func (c *Client) readPump(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}

		if c.options.pingInterval > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.options.pongWait()))
		}

		c.mu.Lock()
		stale := gen != c.generation
		handler := c.handler
		c.mu.Unlock()
		if stale {
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn("failed to decode frame", "error", err, "size", len(data))
			c.emit(Diagnostic{Kind: DiagDecodeError, Err: err})
			continue
		}

		if handler != nil {
			handler(ev)
		}
	}
}

// writePump drains the outbound queue and keeps the connection alive with pings
func (c *Client) writePump(conn Conn, outbound <-chan []byte, done <-chan struct{}) {
	var ping <-chan time.Time
	if c.options.pingInterval > 0 {
		ticker := time.NewTicker(c.options.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-done:
			return

		case data := <-outbound:
			if err := conn.SetWriteDeadline(time.Now().Add(c.options.writeWait)); err != nil {
				c.logger.Error("deadline error", "error", err)
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("write error", "error", err)
				// the read pump observes the closed transport and reconnects
				_ = conn.Close()
				return
			}

		case <-ping:
			t := time.Now().Add(c.options.writeWait)
			if err := conn.WriteControl(websocket.PingMessage, []byte(c.id), t); err != nil {
				c.logger.Error("ping error", "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}

// handleClose reacts to the read pump losing transport gen
func (c *Client) handleClose(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		// closed because the caller asked, or superseded
		return
	}

	if conn := c.releaseLocked(); conn != nil {
		_ = conn.Close()
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Info("connection closed by gateway", "error", err)
	} else {
		c.logger.Warn("connection lost", "error", err)
	}
	c.emit(Diagnostic{Kind: DiagTransportError, Err: err})
	c.emit(Diagnostic{Kind: DiagDisconnected, Err: err})

	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the reconnect timer, or gives up at the ceiling
func (c *Client) scheduleReconnectLocked() {
	if c.retries >= c.options.maxAttempts {
		c.setStateLocked(Disconnected)
		c.logger.Info("max retry attempts reached, giving up", "attempts", c.retries)
		c.emit(Diagnostic{Kind: DiagReconnectExhausted, Err: ErrReconnectExhausted, Attempt: c.retries})
		return
	}

	c.retries++
	attempt := c.retries
	delay := c.backoff.Delay(attempt)
	gen := c.generation

	c.setStateLocked(Reconnecting)
	c.timer = time.AfterFunc(delay, func() {
		c.reconnect(gen, attempt)
	})

	c.logger.Info("attempting to reconnect", "attempt", attempt, "max", c.options.maxAttempts, "delay", delay)
	c.emit(Diagnostic{Kind: DiagReconnectScheduled, Attempt: attempt, Delay: delay})
}

// reconnect fires from the reconnect timer
func (c *Client) reconnect(gen uint64, attempt int) {
	c.mu.Lock()
	if gen != c.generation || c.state != Reconnecting {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.generation++
	next := c.generation
	c.setStateLocked(Connecting)
	c.mu.Unlock()

	if err := c.dial(context.Background(), next, attempt); err != nil && !errors.Is(err, ErrDisconnected) {
		c.logger.Debug("reconnect attempt failed", "attempt", attempt, "error", err)
	}
}

// releaseLocked detaches the transport and stops its write pump
func (c *Client) releaseLocked() Conn {
	conn := c.conn
	c.conn = nil
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.outbound = nil
	return conn
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) setStateLocked(s State) {
	if s != c.state {
		c.logger.Debug("state changed", "from", c.state.String(), "to", s.String())
	}
	c.state = s
}

// emit publishes a diagnostic without blocking
func (c *Client) emit(d Diagnostic) {
	if d.Time.IsZero() {
		d.Time = time.Now()
	}
	select {
	case c.diagnostics <- d:
	default:
		c.logger.Debug("diagnostics channel full, dropping notice", "kind", d.Kind.String())
	}
}
