package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Tyrowin/wsrelay/internal/registry"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Hub adapts WebSocket connections to the registry: it registers sockets,
// relays their text frames and deregisters them when they close. It also
// tracks every live socket so Shutdown can tear them down.
type Hub struct {
	registry *registry.Registry
	cfg      Config
	log      *slog.Logger
	origins  *originPolicy
	upgrader websocket.Upgrader
	identify func(*http.Request) string

	mu      sync.Mutex
	live    map[*Client]struct{}
	closing bool
	wg      sync.WaitGroup
}

// NewHub builds a Hub around reg using cfg.
func NewHub(cfg Config, reg *registry.Registry, log *slog.Logger) *Hub {
	cfg = sanitizeConfig(cfg)
	h := &Hub{
		registry: reg,
		cfg:      cfg,
		log:      log,
		origins:  newOriginPolicy(cfg.Origins(), log),
		live:     make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.origins.checkOrigin,
	}
	if cfg.IdentityMode == IdentitySession {
		h.identify = sessionIdentity
	} else {
		h.identify = originIdentity(cfg.TrustForwardedFor)
	}
	return h
}

// Registry exposes the underlying connection registry.
func (h *Hub) Registry() *registry.Registry {
	return h.registry
}

// originIdentity keys a client by its network origin: the host part of the
// remote address, or the first X-Forwarded-For hop when trusted.
func originIdentity(trustForwardedFor bool) func(*http.Request) string {
	return func(r *http.Request) string {
		if trustForwardedFor {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if first = strings.TrimSpace(first); first != "" {
					return first
				}
			}
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
}

func sessionIdentity(*http.Request) string {
	return uuid.NewString()
}

// connect registers c, announces the new roster and starts its pumps.
func (h *Hub) connect(c *Client) error {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.live[c] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()

	h.registry.Connect(c.id, c)
	h.registry.BroadcastRoster()

	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
	return nil
}

// relay forwards text from sender to every connected client, sender included.
func (h *Hub) relay(sender *Client, text string) {
	h.registry.Broadcast(registry.FormatRelay(sender.id, text))
}

// disconnect deregisters c and announces the new roster.
func (h *Hub) disconnect(c *Client) {
	c.close()

	h.mu.Lock()
	delete(h.live, c)
	h.mu.Unlock()

	h.registry.Disconnect(c)
	h.registry.BroadcastRoster()
}

// Shutdown refuses new sockets, closes the live ones and waits for their
// pumps to exit, giving up after timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown")

	h.mu.Lock()
	h.closing = true
	clients := lo.Keys(h.live)
	h.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("Error closing client connection", "error", err)
		}
	}
	h.log.Info("Closed client connections", "count", len(clients))

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
