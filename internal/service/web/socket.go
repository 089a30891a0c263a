// FILE: internal/service/web/socket.go
package web

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/makinje16/AirSignals/internal/shared/logger"
	"github.com/makinje16/AirSignals/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Allow all origins
}

// Hub keeps the set of live peer connections so they can be closed on shutdown.
type Hub struct {
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	closed  bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
	}
}

// Register adds conn. It returns false once the hub has been closed.
func (h *Hub) Register(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[conn] = true
	logger.Debug().Str("remote_addr", conn.RemoteAddr().String()).Msg("WebSocket client registered.")
	return true
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		logger.Debug().Str("remote_addr", conn.RemoteAddr().String()).Msg("WebSocket client unregistered.")
	}
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll sends a going-away close frame to every client and closes it.
// Read pumps notice the closed connection and clean up their rooms.
func (h *Hub) CloseAll(writeWait time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
	}
	logger.Info().Int("count", len(h.clients)).Msg("Closed all websocket clients.")
}

// ServeWs handles GET /ws/{chatID}/{hostID}.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatID")
	hostID := r.PathValue("hostID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to upgrade websocket")
		return
	}
	if !h.hub.Register(conn) {
		conn.Close()
		return
	}

	logger.Info().Str("host_id", hostID).Str("chat_id", chatID).Msg("Client is attempting to connect.")

	member := signaling.NewMember(hostID, conn, h.writeWait())
	room, err := h.registry.Join(chatID, member)
	if err != nil {
		if errors.Is(err, signaling.ErrRoomFull) {
			msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "room is full")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeWait()))
		}
		logger.Warn().Err(err).Str("host_id", hostID).Str("chat_id", chatID).Msg("Client could not join room.")
		h.hub.Unregister(conn)
		return
	}

	// 写入全部由 WritePump 完成，房间内只负责入队
	go member.WritePump()

	go h.readPump(conn, room, member, chatID)
}

// readPump relays text frames into the room until the peer goes away.
func (h *Handler) readPump(conn *websocket.Conn, room *signaling.Room, member *signaling.Member, chatID string) {
	done := make(chan struct{})
	defer func() {
		close(done)
		h.registry.Leave(chatID, member.SessionID)
		member.Close()
		h.hub.Unregister(conn)
		logger.Info().Str("host_id", member.HostID).Str("chat_id", chatID).Msg("Removed user from room.")
	}()

	if h.socket.ReadLimit > 0 {
		conn.SetReadLimit(h.socket.ReadLimit)
	}
	if pongWait := h.pongWait(); pongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go h.pingLoop(conn, done, pongWait*9/10)
	}

	for {
		messageType, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Str("host_id", member.HostID).Msg("Unexpected websocket close error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			logger.Debug().Int("message_type", messageType).Msg("Ignoring non-text frame.")
			continue
		}

		relay, err := signaling.Normalize(member.HostID, p)
		if err != nil {
			logger.Warn().Err(err).Str("host_id", member.HostID).Msg("Message not broadcasted")
			continue
		}
		room.Broadcast(member.SessionID, relay)
	}
}

func (h *Handler) pingLoop(conn *websocket.Conn, done <-chan struct{}, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeWait())); err != nil {
				return
			}
		}
	}
}
