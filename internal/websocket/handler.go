package websocket

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"tabviz/internal/infrastructure"
)

// Handler upgrades GET /ws and attaches the connection to the hub. An empty
// allowedOrigins list, or "*", accepts any origin; requests without an
// Origin header are always accepted.
func Handler(hub *Hub, allowedOrigins []string, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.handler"))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			logger.WarnContext(r.Context(), "websocket upgrade rejected",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			http.Error(w, http.StatusText(status), status)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		reqID := infrastructure.GetTraceID(ctx)
		client := NewClient(hub, WrapConn(conn), reqID, logger)
		hub.Register(client)

		logger.InfoContext(ctx, "websocket client connected",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("client_id", client.ID()))

		go client.WritePump()
		go client.ReadPump()
	}
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
