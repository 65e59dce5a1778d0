package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/autoreload/internal/logging"
)

// Handler upgrades requests to WebSocket connections and keeps them in the
// registry until the peer goes away. Anything the client sends is read and
// discarded.
type Handler struct {
	registry *Registry
	logger   logging.Logger

	// OriginPatterns lists extra host patterns allowed to connect from a
	// different origin. Same-origin and origin-less requests are always
	// accepted.
	OriginPatterns []string
}

// NewHandler returns a handler that registers connections with registry.
func NewHandler(registry *Registry, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{
		registry: registry,
		logger:   logger.WithComponent("websocket"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.OriginPatterns,
	})
	if err != nil {
		// Accept has already written the error response.
		h.logger.Warn(r.Context(), err, "websocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	client := newConn(ws)
	h.registry.Register(client)
	go client.writePump(h.logger)

	client.readPump(r.Context(), h.logger)

	h.registry.Unregister(client)
	client.Close("")
}

// conn is a Client backed by a WebSocket connection. Messages are queued on
// send and written by writePump so a slow peer never blocks a broadcast.
type conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	mutex     sync.Mutex
	closed    bool
	reason    string
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send implements Client.
func (c *conn) Send(message []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- message:
		return nil
	default:
		return ErrClientStalled
	}
}

// Close implements Client. The close handshake happens on the writer
// goroutine so callers never wait on the peer.
func (c *conn) Close(reason string) {
	c.closeOnce.Do(func() {
		c.mutex.Lock()
		c.closed = true
		c.reason = reason
		c.mutex.Unlock()
		close(c.done)
	})
}

func (c *conn) closeReason() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.reason
}

// readPump consumes and discards client frames until the connection fails.
// Reading is also what lets the library answer pings and see close frames.
func (c *conn) readPump(ctx context.Context, logger logging.Logger) {
	c.ws.SetReadLimit(maxMessageSize)

	for {
		_, _, err := c.ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				select {
				case <-c.done:
				default:
					logger.Debug(ctx, "websocket read ended", "error", err.Error())
				}
			}
			return
		}
	}
}

// writePump delivers queued messages and keeps the connection alive with
// pings. It owns the close handshake.
func (c *conn) writePump(logger logging.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close("")
		_ = c.ws.Close(websocket.StatusNormalClosure, c.closeReason())
	}()

	ctx := context.Background()
	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.ws.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				logger.Debug(ctx, "websocket write failed", "error", err.Error())
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.ws.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Debug(ctx, "websocket ping failed", "error", err.Error())
				return
			}
		}
	}
}
