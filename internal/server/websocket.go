package server

import (
	"net/http"
	"time"

	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/boardtycoon/tycoon-server-go/internal/config"
)

const defaultWebSocketPath = "/ws"

// NewWebSocketHandler routes the websocket endpoint to hub, with commands
// executed by dispatcher, and answers health checks on /healthz.
func NewWebSocketHandler(cfg config.WebSocketConfig, hub *broadcast.Hub, dispatcher *Dispatcher) http.Handler {
	path := cfg.Path
	if path == "" {
		path = defaultWebSocketPath
	}

	mux := http.NewServeMux()
	mux.Handle(path, hub.Handler(dispatcher))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// NewWebSocketServer builds the HTTP server for the websocket listener.
func NewWebSocketServer(cfg config.WebSocketConfig, hub *broadcast.Hub, dispatcher *Dispatcher) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           NewWebSocketHandler(cfg, hub, dispatcher),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
