package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/peermeet/peermeet/internal/signaling"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// We need to check the origin, but for development, we can allow all.
	// In production, you'd check r.Header.Get("Origin") against your
	// frontend's domain.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// New builds the HTTP handler: the room-link endpoint, the signaling
// websocket, and a health check.
func New(relay *signaling.Relay, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/join", handleJoin(relay.Registry()))
	mux.HandleFunc("/ws", serveWs(relay, logger))
	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// handleJoin issues a fresh room token, used by clients to build a
// shareable join link. Stateless; the room materializes on first join.
func handleJoin(registry *signaling.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"link": registry.CreateRoom(),
		})
	}
}

// serveWs upgrades the connection and hands it to a signaling client.
func serveWs(relay *signaling.Relay, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("failed to upgrade connection", "err", err)
			return
		}

		client := signaling.NewClient(conn, relay, logger)
		client.Run()
	}
}
