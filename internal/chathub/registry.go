package chathub

import (
	"sync"

	"github.com/samber/lo"
)

// RoomRegistry maps chat ids to the connections currently viewing them.
// It is the single source of truth for who receives a message.
//
// Invariant: a handle is in at most one room, and it is in room r exactly
// when its Session names r. One lock serializes every mutation.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Client
}

// NewRoomRegistry creates an empty registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]map[string]Client),
	}
}

// Join adds the client to room and records the room on its session, leaving the
// previously joined room first. Joining the room already held is a no-op.
// A closed session is never added. Returns the membership size of room.
func (r *RoomRegistry) Join(room string, c Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := c.Session()
	if session.isClosed() {
		return len(r.rooms[room])
	}

	if prev, ok := session.Room(); ok && prev != room {
		r.remove(prev, c.Handle())
		session.exit(prev)
	}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Client)
		r.rooms[room] = members
	}
	members[c.Handle()] = c
	session.enter(room)

	return len(members)
}

// Leave removes the client from room and clears its session if the session
// names room. Leaving a room that was not joined is a no-op. Reports whether
// membership changed.
func (r *RoomRegistry) Leave(room string, c Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := r.remove(room, c.Handle())
	c.Session().exit(room)
	return removed
}

// Disconnect closes the client's session and removes it from the room it held.
// Returns that room, if any.
func (r *RoomRegistry) Disconnect(c Client) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, held := c.Session().close()
	if held {
		r.remove(room, c.Handle())
	}
	return room, held
}

// MembersOf returns a snapshot of the clients in room; empty if the room is unknown.
func (r *RoomRegistry) MembersOf(room string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.rooms[room])
}

// Size returns the number of clients in room.
func (r *RoomRegistry) Size(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[room])
}

// RoomCount returns how many rooms currently have at least one member.
func (r *RoomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

// remove must be called with r.mu held. Empty rooms are dropped; an absent
// room and an empty one are equivalent.
func (r *RoomRegistry) remove(room, handle string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[handle]; !ok {
		return false
	}
	delete(members, handle)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	return true
}
