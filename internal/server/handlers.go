package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type sendResponse struct {
	Message string `json:"message"`
}

type clientsResponse struct {
	Clients []string `json:"clients"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (h *Hub) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("Error writing JSON response", "error", err)
	}
}

// WebSocketHandler upgrades the request and hands the socket to the hub.
func (h *Hub) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(conn, h.identify(r), h)
	if err := h.connect(client); err != nil {
		h.log.Info("Rejecting connection", "id", client.id, "error", err)
		_ = conn.Close()
	}
}

// SendHandler delivers the message query parameter to the client registered
// under the {ip} path segment. It acknowledges even when nobody is there.
func (h *Hub) SendHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("message") {
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "query parameter 'message' is required"})
		return
	}

	ip := r.PathValue("ip")
	if !h.registry.SendToOne(ip, query.Get("message")) {
		h.log.Debug("Unicast not delivered", "id", ip)
	}
	h.writeJSON(w, http.StatusOK, sendResponse{Message: "Message sent"})
}

// ClientsHandler lists the registered identifiers.
func (h *Hub) ClientsHandler(w http.ResponseWriter, _ *http.Request) {
	ids := h.registry.ListIdentifiers()
	if ids == nil {
		ids = []string{}
	}
	h.writeJSON(w, http.StatusOK, clientsResponse{Clients: ids})
}

// HealthHandler reports liveness and the current connection count.
func (h *Hub) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "wsrelay is running! clients=%d", h.registry.Len())
}

// IndexHandler serves the built-in browser client.
func (h *Hub) IndexHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(indexHTML); err != nil {
		h.log.Warn("Error writing HTML response", "error", err)
	}
}
