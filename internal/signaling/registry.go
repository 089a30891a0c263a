package signaling

import (
	"errors"
	"sync"

	"github.com/makinje16/AirSignals/internal/shared/logger"
)

// Registry maps chat IDs to rooms. Lock order is registry, then room. No
// network I/O happens under either lock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	maxMembers int
	maxWaiting int
}

func NewRegistry(maxMembers, maxWaiting int) *Registry {
	return &Registry{
		rooms:      make(map[string]*Room),
		maxMembers: maxMembers,
		maxWaiting: maxWaiting,
	}
}

// Join connects m to the room chatID, creating the room for the first member.
func (g *Registry) Join(chatID string, m *Member) (*Room, error) {
	for {
		room := g.lookupOrCreate(chatID, m.HostID)
		err := room.Connect(m)
		if errors.Is(err, errRoomClosed) {
			// 房间在查找和加入之间被清理掉了，重新创建
			continue
		}
		if err != nil {
			return nil, err
		}
		return room, nil
	}
}

func (g *Registry) lookupOrCreate(chatID, hostID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[chatID]
	if !ok {
		room = NewRoom(chatID, g.maxMembers, g.maxWaiting)
		g.rooms[chatID] = room
		logger.Info().Str("chat_id", chatID).Str("host_id", hostID).Msg("Created room.")
	}
	return room
}

// Leave removes the session from chatID and drops the room once it is empty,
// along with anything still waiting in it.
func (g *Registry) Leave(chatID, sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[chatID]
	if !ok {
		return
	}
	room.Disconnect(sessionID)
	if room.closeIfEmpty() {
		delete(g.rooms, chatID)
		logger.Info().Str("chat_id", chatID).Msg("Room is empty, removed.")
	}
}

// Room looks up a live room.
func (g *Registry) Room(chatID string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[chatID]
	return room, ok
}

// NumClients returns the member count of chatID or ErrRoomNotFound.
func (g *Registry) NumClients(chatID string) (int, error) {
	g.mu.RLock()
	room, ok := g.rooms[chatID]
	g.mu.RUnlock()
	if !ok {
		return 0, ErrRoomNotFound
	}
	return room.NumClients(), nil
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}
