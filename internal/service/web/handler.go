package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/makinje16/AirSignals/internal/shared/globalstate"
	"github.com/makinje16/AirSignals/internal/shared/logger"
	"github.com/makinje16/AirSignals/internal/shared/types"
	"github.com/makinje16/AirSignals/internal/signaling"
)

// Handler serves the signaling endpoints.
type Handler struct {
	registry *signaling.Registry
	status   *globalstate.StatusManager
	socket   types.SocketConf
	hub      *Hub
}

func NewHandler(registry *signaling.Registry, status *globalstate.StatusManager, socket types.SocketConf) *Handler {
	return &Handler{
		registry: registry,
		status:   status,
		socket:   socket,
		hub:      NewHub(),
	}
}

// Hub returns the set of live websocket connections.
func (h *Handler) Hub() *Hub {
	return h.hub
}

func (h *Handler) writeWait() time.Duration {
	if h.socket.WriteWaitSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(h.socket.WriteWaitSeconds) * time.Second
}

func (h *Handler) pongWait() time.Duration {
	return time.Duration(h.socket.PongWaitSeconds) * time.Second
}

// HandleConnectedClients 处理 GET /getConnectedClients/{chatID} 请求
func (h *Handler) HandleConnectedClients(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatID")

	n, err := h.registry.NumClients(chatID)
	if errors.Is(err, signaling.ErrRoomNotFound) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"type": "message",
			"body": "Chat Room does not exist",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"type":       "message",
		"numClients": n,
		"body":       "",
	})
}

// StatusResponse 是 /api/status 的返回结构
type StatusResponse struct {
	Status  string `json:"status"`
	Rooms   int    `json:"rooms"`
	Clients int    `json:"clients"`
}

// HandleStatus 处理 GET /api/status 请求
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:  h.status.Get(),
		Rooms:   h.registry.Len(),
		Clients: h.hub.Len(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("Failed to write JSON response")
	}
}
