package server

import (
	"net/http"
	"os"
)

// Routes returns the relay's HTTP handler with CORS applied.
func (h *Hub) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", h.WebSocketHandler)
	mux.HandleFunc("POST /send/{ip}", h.SendHandler)
	mux.HandleFunc("GET /clients", h.ClientsHandler)
	mux.HandleFunc("GET /healthz", h.HealthHandler)
	mux.HandleFunc("GET /{$}", h.IndexHandler)

	if info, err := os.Stat(h.cfg.StaticDir); err == nil && info.IsDir() {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(h.cfg.StaticDir))))
	} else {
		h.log.Debug("Static directory not found, /static disabled", "dir", h.cfg.StaticDir)
	}

	return h.origins.cors(mux)
}
