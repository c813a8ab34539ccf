package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles websocket upgrade requests for the room.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm}
}

// HandleRoomConnection upgrades the request. If account_id is present in the
// query the connection is identified right away, otherwise the client sends
// an identify message.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.connectionManager.UpgradeConnection(w, r)
	if err != nil {
		// the upgrader has already replied
		log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("failed to upgrade websocket connection")
		return
	}

	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		return
	}
	if handler := h.connectionManager.handler; handler != nil {
		if err := handler.Identify(h.connectionManager.ctx, conn.ID, accountID, r.URL.Query().Get("display_name")); err != nil {
			log.Debug().Err(err).Str("conn_id", conn.ID).Msg("identify from query rejected")
		}
	}
}

// HandleConnectionStats returns statistics about active connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
