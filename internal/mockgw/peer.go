package mockgw

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = time.Second

// peer is one connected client
type peer struct {
	id     string
	caller string // rate limit key
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// enqueue queues a frame without blocking
func (p *peer) enqueue(data []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- data:
		return true
	default:
		return false
	}
}

func (p *peer) stop() {
	p.once.Do(func() { close(p.done) })
}

// writeLoop owns all data writes to the connection
func (p *peer) writeLoop() {
	defer p.conn.Close()

	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.logger.Debug("write error", "client", p.id, "error", err)
				return
			}
		}
	}
}

// closeNormally sends a close frame and lets the read loop wind down. The
// connection is closed outright if the client does not answer in time.
func (p *peer) closeNormally() {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "gateway shutting down")
	if err := p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		p.conn.Close()
		return
	}
	time.AfterFunc(writeWait, func() { p.conn.Close() })
}
