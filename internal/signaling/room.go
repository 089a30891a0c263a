package signaling

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/makinje16/AirSignals/internal/shared/logger"
)

var (
	// ErrRoomFull 表示房间人数已达上限。
	ErrRoomFull = errors.New("signaling: max number of clients already reached")
	// ErrRoomNotFound 表示查询的房间不存在。
	ErrRoomNotFound = errors.New("signaling: chat room does not exist")

	// errRoomClosed 表示房间已从 registry 中移除，调用方应重新查找
	errRoomClosed = errors.New("signaling: room closed")
)

type waitingMessage struct {
	senderSession string
	payload       []byte
}

// Room is a chat room pairing peers for signaling.
//
// Deliveries are enqueued under the room lock, so members observe messages in
// the order the room accepted them, and queued messages always precede
// anything broadcast after the room fills up. Nothing under the lock touches
// the network.
type Room struct {
	ID string

	maxMembers int
	maxWaiting int

	mu      sync.Mutex
	members []*Member
	// waiting 保存房间只有一个人时收到的消息，等第二个人加入后再转发
	waiting []waitingMessage
	closed  bool

	log zerolog.Logger
}

// NewRoom creates an empty room. maxWaiting <= 0 leaves the waiting queue unbounded.
func NewRoom(id string, maxMembers, maxWaiting int) *Room {
	if maxMembers <= 0 {
		maxMembers = 2
	}
	return &Room{
		ID:         id,
		maxMembers: maxMembers,
		maxWaiting: maxWaiting,
		log:        logger.WithComponent("room").With().Str("chat_id", id).Logger(),
	}
}

// Connect adds m to the room and greets it. A member joining an empty room is
// impolite; otherwise it takes the opposite role of the member already present,
// so a pair always has one of each. Once the room has two members, any waiting
// messages are delivered.
func (r *Room) Connect(m *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errRoomClosed
	}
	if len(r.members) >= r.maxMembers {
		r.log.Warn().Str("host_id", m.HostID).Msg("Room is full, rejecting client.")
		return ErrRoomFull
	}

	polite := false
	if len(r.members) > 0 {
		polite = !r.members[0].Polite
	}
	m.Polite = polite
	r.members = append(r.members, m)

	if err := m.SendJSON(newWelcome(m.HostID, r.ID, polite)); err != nil {
		r.log.Warn().Err(err).Str("host_id", m.HostID).Msg("Failed to send welcome.")
	}
	r.log.Info().
		Str("host_id", m.HostID).
		Str("session_id", m.SessionID).
		Bool("polite", polite).
		Int("clients", len(r.members)).
		Msg("Client connected to room.")

	if len(r.members) >= 2 && len(r.waiting) > 0 {
		r.flushWaitingLocked()
	}
	return nil
}

// Disconnect removes the member with the given session. It reports whether
// the member was present.
func (r *Room) Disconnect(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.members {
		if m.SessionID == sessionID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			r.log.Info().
				Str("host_id", m.HostID).
				Int("clients", len(r.members)).
				Msg("Client removed from room.")
			return true
		}
	}
	return false
}

// Broadcast relays payload from the sender to every other member. While the
// room has fewer than two members the payload is queued instead.
func (r *Room) Broadcast(senderSession string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) < 2 {
		if r.maxWaiting > 0 && len(r.waiting) >= r.maxWaiting {
			r.log.Warn().Int("max_waiting", r.maxWaiting).Msg("Waiting queue full, dropping oldest message.")
			r.waiting = r.waiting[1:]
		}
		r.waiting = append(r.waiting, waitingMessage{senderSession: senderSession, payload: payload})
		r.log.Debug().Int("waiting", len(r.waiting)).Msg("No peer yet, message queued.")
		return
	}
	r.deliverLocked(senderSession, payload)
}

// closeIfEmpty marks an empty room closed so late joiners go back to the
// registry instead of entering a room nobody can find.
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) > 0 {
		return false
	}
	r.closed = true
	return true
}

// NumClients returns the number of connected members.
func (r *Room) NumClients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// NumWaiting returns the number of queued messages.
func (r *Room) NumWaiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiting)
}

func (r *Room) flushWaitingLocked() {
	r.log.Debug().Int("waiting", len(r.waiting)).Msg("Flushing waiting messages.")
	for _, w := range r.waiting {
		r.deliverLocked(w.senderSession, w.payload)
	}
	r.waiting = nil
}

func (r *Room) deliverLocked(senderSession string, payload []byte) {
	for _, m := range r.members {
		if m.SessionID == senderSession {
			continue
		}
		if err := m.SendText(payload); err != nil {
			r.log.Warn().Err(err).Str("host_id", m.HostID).Msg("Failed to queue message for client.")
		}
	}
}
