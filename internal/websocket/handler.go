package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/outofoffice/internal/auth"
)

// HandleWebSocket upgrades authenticated requests and runs them as Hub
// clients for the caller's user.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept failed", "user_id", id.UserID, "error", err)
			return
		}

		client := NewClient(hub, conn, id.UserID)
		client.Run(r.Context())
	}
}
