package signaling

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beamdrop/beamdrop/internal/observe"
)

// DefaultRoomTTL is how long a room stays joinable after creation.
const DefaultRoomTTL = 24 * time.Hour

// ErrRoomNotFound indicates that the requested room is absent or expired.
var ErrRoomNotFound = errors.New("room not found")

// Room represents a single rendezvous context: at most one sender and
// any number of receivers, keyed by an unguessable token.
type Room struct {
	// ID is the unique identifier for the room.
	ID string

	// CreatedAt and Expiry bound the room's lifetime. A room past
	// Expiry is gone even if not yet swept from storage.
	CreatedAt time.Time
	Expiry    time.Time

	// SenderID is the connection ID of the sender (Peer A), or ""
	// while the sender slot is empty.
	SenderID string

	// Receivers is the set of receiver connection IDs.
	Receivers map[string]struct{}

	// FileInfo is the opaque file metadata last announced by a sender.
	FileInfo json.RawMessage
}

// RoomStore is the in-memory table of active rooms. All access goes
// through its methods; callers never hold a live *Room.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	ttl   time.Duration

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewRoomStore creates an empty store. A non-positive ttl falls back
// to DefaultRoomTTL.
func NewRoomStore(ttl time.Duration) *RoomStore {
	if ttl <= 0 {
		ttl = DefaultRoomTTL
	}
	return &RoomStore{
		rooms: make(map[string]*Room),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Create inserts a fresh room and returns its token. The token is a
// random UUID, so possession of it is the only access control.
func (s *RoomStore) Create() string {
	id := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	s.rooms[id] = &Room{
		ID:        id,
		CreatedAt: now,
		Expiry:    now.Add(s.ttl),
		Receivers: make(map[string]struct{}),
	}
	s.mu.Unlock()

	observe.IncRoomCreated()
	observe.SetActiveRooms(float64(s.Len()))
	return id
}

// Lookup returns a snapshot of the room, or ErrRoomNotFound if it is
// absent or past expiry. Expired rooms are treated as absent even
// before the sweeper evicts them.
func (s *RoomStore) Lookup(id string) (Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[id]
	if !ok || !s.now().Before(r.Expiry) {
		return Room{}, ErrRoomNotFound
	}
	return snapshot(r), nil
}

// snapshot copies a room so callers can't mutate store state. Caller
// must hold at least the read lock.
func snapshot(r *Room) Room {
	cp := *r
	cp.Receivers = make(map[string]struct{}, len(r.Receivers))
	for id := range r.Receivers {
		cp.Receivers[id] = struct{}{}
	}
	return cp
}

// SweepExpired removes every room whose expiry has passed and returns
// how many were evicted. Idempotent; safe alongside lookups.
func (s *RoomStore) SweepExpired() int {
	now := s.now()

	s.mu.Lock()
	var evicted int
	for id, r := range s.rooms {
		if !now.Before(r.Expiry) {
			delete(s.rooms, id)
			evicted++
		}
	}
	remaining := len(s.rooms)
	s.mu.Unlock()

	if evicted > 0 {
		observe.AddRoomsExpired(float64(evicted))
	}
	observe.SetActiveRooms(float64(remaining))
	return evicted
}

// SetFileInfo overwrites the room's file metadata.
func (s *RoomStore) SetFileInfo(id string, info json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok || !s.now().Before(r.Expiry) {
		return ErrRoomNotFound
	}
	r.FileInfo = info
	return nil
}

// SetSender installs connID as the room's sender, replacing any
// previous sender (last writer wins). It returns the displaced
// sender's connection ID, if there was one.
func (s *RoomStore) SetSender(id, connID string) (prev string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok || !s.now().Before(r.Expiry) {
		return "", ErrRoomNotFound
	}
	prev = r.SenderID
	r.SenderID = connID
	return prev, nil
}

// ClearSender empties the sender slot, but only if connID still holds
// it. A sender that was displaced by a later join must not evict its
// replacement on disconnect. It reports whether the slot was cleared.
func (s *RoomStore) ClearSender(id, connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rooms[id]; ok && r.SenderID == connID {
		r.SenderID = ""
		return true
	}
	return false
}

// AddReceiver adds connID to the room's receiver set. Adding an
// existing receiver is a no-op.
func (s *RoomStore) AddReceiver(id, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok || !s.now().Before(r.Expiry) {
		return ErrRoomNotFound
	}
	r.Receivers[connID] = struct{}{}
	return nil
}

// RemoveReceiver drops connID from the room's receiver set and
// reports whether it was a member.
func (s *RoomStore) RemoveReceiver(id, connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rooms[id]; ok {
		if _, member := r.Receivers[connID]; member {
			delete(r.Receivers, connID)
			return true
		}
	}
	return false
}

// SenderOf returns the room's current sender connection ID ("" if the
// slot is empty or the room is gone).
func (s *RoomStore) SenderOf(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.rooms[id]; ok {
		return r.SenderID
	}
	return ""
}

// FileInfoOf returns the room's stored file metadata (nil if unset or
// the room is gone).
func (s *RoomStore) FileInfoOf(id string) json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.rooms[id]; ok {
		return r.FileInfo
	}
	return nil
}

// Members returns a consistent snapshot of every connection in the
// room: the sender (if any) plus all receivers. Fan-out is computed
// from this snapshot at the time of the triggering event.
func (s *RoomStore) Members(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[id]
	if !ok {
		return nil
	}
	members := make([]string, 0, len(r.Receivers)+1)
	if r.SenderID != "" {
		members = append(members, r.SenderID)
	}
	for connID := range r.Receivers {
		members = append(members, connID)
	}
	return members
}

// Len reports the number of rooms currently stored, expired or not.
func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
