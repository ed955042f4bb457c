package signaling

import (
	"encoding/json"
	"errors"
	"sync"
)

// Role is the part a connection plays inside a room.
type Role string

const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
)

// ErrAlreadyJoined indicates a second join on a connection that is
// already bound to a room. A connection's room/role binding is set
// once and only cleared by disconnect.
var ErrAlreadyJoined = errors.New("connection already joined a room")

// binding records which room a connection belongs to and as what.
type binding struct {
	roomID string
	role   Role
}

// Registry maps live connections to their room membership. It is a
// weak reference table: rooms don't own connections and connections
// don't own rooms.
type Registry struct {
	rooms *RoomStore

	mu    sync.RWMutex
	conns map[string]binding
}

// NewRegistry creates an empty registry backed by the given room store.
func NewRegistry(rooms *RoomStore) *Registry {
	return &Registry{
		rooms: rooms,
		conns: make(map[string]binding),
	}
}

// Join binds connID to a room. A sender replaces any existing sender
// (last writer wins); a receiver is added to the receiver set. When a
// sender provides fileInfo, it overwrites the room's stored metadata.
// It returns the displaced sender's connection ID, if any.
func (g *Registry) Join(connID, roomID string, role Role, fileInfo json.RawMessage) (displaced string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.conns[connID]; ok {
		return "", ErrAlreadyJoined
	}
	if _, err := g.rooms.Lookup(roomID); err != nil {
		return "", err
	}

	if role == RoleSender {
		displaced, err = g.rooms.SetSender(roomID, connID)
		if err != nil {
			return "", err
		}
		if fileInfo != nil {
			_ = g.rooms.SetFileInfo(roomID, fileInfo)
		}
	} else {
		if err := g.rooms.AddReceiver(roomID, connID); err != nil {
			return "", err
		}
	}

	g.conns[connID] = binding{roomID: roomID, role: role}
	return displaced, nil
}

// Leave removes the connection's binding and its room membership.
// Unknown connections are a no-op: disconnect races are expected.
// held reports whether the connection still occupied its room slot at
// leave time; a sender that was displaced by a later join leaves with
// held == false.
func (g *Registry) Leave(connID string) (roomID string, role Role, held bool, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.conns[connID]
	if !ok {
		return "", "", false, false
	}
	delete(g.conns, connID)

	if b.role == RoleSender {
		held = g.rooms.ClearSender(b.roomID, connID)
	} else {
		held = g.rooms.RemoveReceiver(b.roomID, connID)
	}
	return b.roomID, b.role, held, true
}

// Lookup returns the room and role a connection joined as.
func (g *Registry) Lookup(connID string) (roomID string, role Role, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	b, ok := g.conns[connID]
	return b.roomID, b.role, ok
}

// Len reports the number of bound connections.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}
