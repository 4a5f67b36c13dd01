package server

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one live WebSocket connection. It implements registry.Channel:
// SendText queues text for its write pump and never blocks.
type Client struct {
	conn        *websocket.Conn
	id          string
	hub         *Hub
	send        chan string
	rateLimiter *rateLimiter
	log         *slog.Logger

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, id string, hub *Hub) *Client {
	if conn != nil {
		conn.SetReadLimit(int64(hub.cfg.MaxMessageSize))
	}
	return &Client{
		conn:        conn,
		id:          id,
		hub:         hub,
		send:        make(chan string, hub.cfg.SendBufferSize),
		rateLimiter: newRateLimiter(hub.cfg.RateLimit()),
		log:         hub.log.With("id", id),
	}
}

// ID returns the identifier the client is registered under.
func (c *Client) ID() string {
	return c.id
}

// SendText queues text for delivery.
func (c *Client) SendText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- text:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// close stops accepting messages; the write pump drains what is queued and
// then sends a close frame.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// handleReadError logs err at a level matching how expected it is.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Message exceeded maximum size", "limit", c.hub.cfg.MaxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.log.Debug("Client closed connection", "error", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Debug("Connection closed", "error", err)
	case websocket.IsUnexpectedCloseError(err, websocket.CloseAbnormalClosure):
		c.log.Warn("Unexpected WebSocket close", "error", err)
	default:
		c.log.Debug("WebSocket read ended", "error", err)
	}
}

// readPump relays every inbound text frame until the socket fails, then
// hands the client back to the hub for deregistration.
func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("Error closing connection in readPump", "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		if messageType != websocket.TextMessage {
			c.log.Debug("Ignoring non-text frame", "type", messageType)
			continue
		}
		if !c.rateLimiter.allow() {
			c.log.Warn("Rate limit exceeded; discarding message",
				"burst", c.hub.cfg.RateLimitBurst,
				"interval", c.hub.cfg.RateLimitRefillInterval)
			continue
		}
		c.hub.relay(c, string(data))
	}
}

// writePump owns all data writes on the socket. Each queued text is its own
// frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("Error closing connection in writePump", "error", err)
		}
	}()

	for {
		select {
		case text, ok := <-c.send:
			if !ok {
				c.writeClose()
				return
			}
			if !c.writeText(text) {
				return
			}
		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

func (c *Client) writeText(text string) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing message", "error", err)
		}
		return false
	}
	return true
}

func (c *Client) writeClose() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Debug("Error writing close message", "error", err)
		}
	}
}

func (c *Client) writePing() bool {
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		c.log.Debug("Error writing ping", "error", err)
		return false
	}
	return true
}
