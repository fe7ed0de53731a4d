package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/choreplan/internal/auth"
)

// Handler upgrades authenticated requests and runs them as hub clients.
// An empty originPatterns list accepts same-origin connections only.
func Handler(hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			hub.logger.Warn("accept", "user_id", userID, "error", err)
			return
		}

		hub.logger.Debug("client connected", "user_id", userID)
		NewClient(hub, conn, userID).Run(r.Context())
		hub.logger.Debug("client disconnected", "user_id", userID)
	}
}
