// Package mockgw is a small in-process gateway speaking the chat event
// protocol. It backs the mock-gateway command and the client's end-to-end
// tests.
package mockgw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"clawlink/internal/ratelimit"
	"clawlink/pkg/protocol"
)

// ReplyFunc produces the bot reply for a user message
type ReplyFunc func(content string) string

// Option configures a Server
type Option func(*Server)

// WithToken requires clients to present token
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// WithStatus sets the status event sent to every new connection
func WithStatus(status protocol.GatewayStatus) Option {
	return func(s *Server) {
		s.status = status
	}
}

// WithReplyDelay sets how long the bot "types" before answering
func WithReplyDelay(d time.Duration) Option {
	return func(s *Server) {
		s.replyDelay = d
	}
}

// WithReply replaces the placeholder reply
func WithReply(fn ReplyFunc) Option {
	return func(s *Server) {
		s.reply = fn
	}
}

// WithRateLimit caps each caller at limit chat messages per window. Callers
// are identified by token, or by remote address when no token is presented.
// Messages over the limit are answered with an error event.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(s *Server) {
		if limit > 0 && window > 0 {
			s.limiter = ratelimit.New(window, limit, window)
		}
	}
}

// WithLogger sets the server logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// Server accepts client connections and answers chat messages
type Server struct {
	token      string
	status     protocol.GatewayStatus
	replyDelay time.Duration
	reply      ReplyFunc
	logger     *slog.Logger
	limiter    *ratelimit.Window

	upgrader websocket.Upgrader
	router   chi.Router

	mu    sync.Mutex
	peers map[*peer]struct{}
	wg    sync.WaitGroup
}

// New creates a mock gateway
func New(opts ...Option) *Server {
	s := &Server{
		status: protocol.GatewayStatus{
			Online:       true,
			Model:        "mock",
			Version:      "0.0.0-mock",
			Capabilities: []string{"chat", "typing"},
		},
		replyDelay: 200 * time.Millisecond,
		reply:      echoReply,
		logger:     slog.New(slog.DiscardHandler),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		peers: make(map[*peer]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "mock-gateway")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleWebSocket)
	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", s.handleHealth)
	s.router = r

	return s
}

func echoReply(content string) string {
	return "You said: " + content
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.Close()
	}()

	s.logger.Info("mock gateway listening", "addr", ln.Addr().String(), "auth", s.token != "")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Connections returns the number of open client connections
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Broadcast queues ev for every connected client and returns how many
// clients it was queued for
func (s *Server) Broadcast(ev protocol.Event) int {
	data, err := protocol.EncodeEvent(ev)
	if err != nil {
		s.logger.Error("failed to encode broadcast", "error", err)
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for p := range s.peers {
		if p.enqueue(data) {
			n++
		}
	}
	return n
}

// Drop severs every client connection without a close handshake, the way a
// crashed gateway would
func (s *Server) Drop() int {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		p.conn.Close()
	}
	return len(peers)
}

// Close says goodbye to every client and waits for their goroutines
func (s *Server) Close() {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		p.closeNormally()
	}
	s.wg.Wait()

	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok\nconnections: %d\n", s.Connections())
	if s.limiter != nil {
		fmt.Fprintf(w, "rate_limited_callers: %d\n", s.limiter.Keys())
	}
}

// handleWebSocket authenticates, upgrades and greets a client
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		s.logger.Warn("rejecting unauthenticated client", "remote", r.RemoteAddr)
		rejectUpgrade(w)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade error", "error", err)
		return
	}

	p := &peer{
		id:     uuid.NewString(),
		caller: callerKey(r),
		conn:   conn,
		send:   make(chan []byte, 64),
		done:   make(chan struct{}),
		logger: s.logger,
	}

	s.mu.Lock()
	s.peers[p] = struct{}{}
	count := len(s.peers)
	s.mu.Unlock()

	s.logger.Info("client connected", "client", p.id, "connections", count)

	if data, err := protocol.EncodeEvent(protocol.StatusEvent{Status: s.status}); err == nil {
		p.enqueue(data)
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		p.writeLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.readLoop(p)
	}()
}

// readLoop handles frames from one client until it goes away
func (s *Server) readLoop(p *peer) {
	defer func() {
		s.mu.Lock()
		delete(s.peers, p)
		s.mu.Unlock()
		p.stop()
		s.logger.Info("client disconnected", "client", p.id)
	}()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read error", "client", p.id, "error", err)
			}
			return
		}

		out, err := protocol.DecodeOutbound(data)
		if err != nil {
			s.logger.Warn("unrecognised frame", "client", p.id, "error", err)
			s.sendEvent(p, protocol.ErrorEvent{Message: "unrecognised frame: " + reason(err)})
			continue
		}

		switch out.Type {
		case protocol.OutboundMessage:
			msg, _ := out.Message()
			if s.limiter != nil {
				if d := s.limiter.Allow(p.caller); !d.Allowed {
					s.logger.Warn("rate limited", "client", p.id, "retry_after", d.RetryAfter)
					s.sendEvent(p, protocol.ErrorEvent{
						Message: fmt.Sprintf("rate limited, retry in %s", d.RetryAfter.Round(time.Second)),
					})
					continue
				}
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.answer(p, msg)
			}()
		case protocol.OutboundTyping:
			typing, _ := out.Typing()
			s.logger.Debug("client typing", "client", p.id, "typing", typing.IsTyping)
		}
	}
}

// answer plays the bot side of a chat turn: typing, a reply, typing stopped
func (s *Server) answer(p *peer, msg protocol.ChatMessage) {
	s.sendEvent(p, protocol.TypingEvent{IsTyping: true})

	select {
	case <-time.After(s.replyDelay):
	case <-p.done:
		return
	}

	s.sendEvent(p, protocol.MessageEvent{Message: protocol.ChatMessage{
		ID:        uuid.NewString(),
		Content:   s.reply(msg.Content),
		Sender:    protocol.SenderBot,
		Timestamp: time.Now().UnixMilli(),
		Status:    protocol.StatusSent,
	}})
	s.sendEvent(p, protocol.TypingEvent{IsTyping: false})
}

func (s *Server) sendEvent(p *peer, ev protocol.Event) {
	data, err := protocol.EncodeEvent(ev)
	if err != nil {
		s.logger.Error("failed to encode event", "error", err)
		return
	}
	if !p.enqueue(data) {
		s.logger.Warn("client send queue full, dropping event", "client", p.id, "type", ev.Type())
	}
}

func reason(err error) string {
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		return de.Reason
	}
	return err.Error()
}
