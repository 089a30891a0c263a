package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/makinje16/AirSignals/internal/shared/logger"
)

// sendBufferSize 是每个成员发送队列的容量，写满说明对端已经跟不上
const sendBufferSize = 256

var (
	// ErrMemberClosed is returned when sending to a member whose writer has stopped.
	ErrMemberClosed = errors.New("signaling: member connection closed")
	// ErrSendBufferFull is returned when a member falls too far behind. The
	// member is closed as a side effect.
	ErrSendBufferFull = errors.New("signaling: member send buffer full")
)

// Conn is the write side of a peer connection. *websocket.Conn satisfies it.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Member is a single peer attached to a room.
//
// Sends only enqueue; WritePump owns the connection's write side, so a slow
// peer never blocks the room that is relaying to it.
type Member struct {
	// HostID is the name the peer chose in the URL path. It is not unique.
	HostID string
	// SessionID identifies this particular connection.
	SessionID string
	// Polite is assigned by the room on Connect.
	Polite bool

	conn      Conn
	writeWait time.Duration

	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// NewMember creates a member with a fresh session ID. writeWait <= 0 disables
// write deadlines.
func NewMember(hostID string, conn Conn, writeWait time.Duration) *Member {
	return &Member{
		HostID:    hostID,
		SessionID: uuid.NewString(),
		conn:      conn,
		writeWait: writeWait,
		send:      make(chan []byte, sendBufferSize),
	}
}

// SendText queues one text frame for the peer. It never blocks.
func (m *Member) SendText(payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMemberClosed
	}
	select {
	case m.send <- payload:
		return nil
	default:
		m.closeLocked()
		return ErrSendBufferFull
	}
}

// SendJSON marshals v and queues it as a text frame.
func (m *Member) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", m.HostID, err)
	}
	return m.SendText(data)
}

// Close stops accepting frames. WritePump flushes what is already queued and
// then closes the connection.
func (m *Member) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *Member) closeLocked() {
	if !m.closed {
		m.closed = true
		close(m.send)
	}
}

// WritePump writes queued frames in order until the member is closed or a
// write fails. It closes the connection on return.
func (m *Member) WritePump() {
	defer m.conn.Close()

	for payload := range m.send {
		if err := m.write(payload); err != nil {
			logger.Warn().Err(err).Str("host_id", m.HostID).Msg("Error writing to websocket client.")
			m.Close()
			return
		}
	}
}

func (m *Member) write(payload []byte) error {
	if m.writeWait > 0 {
		if err := m.conn.SetWriteDeadline(time.Now().Add(m.writeWait)); err != nil {
			return err
		}
	}
	return m.conn.WriteMessage(websocket.TextMessage, payload)
}
