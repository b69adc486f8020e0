package chathub

import "sync"

// SessionState is the position of a connection in its room lifecycle.
type SessionState int

const (
	// StateIdle means no room is joined.
	StateIdle SessionState = iota
	// StateInRoom means exactly one room is joined.
	StateInRoom
	// StateClosed means the connection is gone; the session accepts no further joins.
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInRoom:
		return "in_room"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session tracks the single room a connection currently occupies.
//
// The relay reads it; only the RoomRegistry changes it, and always while holding
// the registry lock, so a session and the membership sets never disagree.
type Session struct {
	mu     sync.Mutex
	room   string
	inRoom bool
	closed bool
}

// NewSession returns an idle session.
func NewSession() *Session {
	return &Session{}
}

// Room returns the joined room, if any.
func (s *Session) Room() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room, s.inRoom
}

// State reports the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return StateClosed
	case s.inRoom:
		return StateInRoom
	default:
		return StateIdle
	}
}

func (s *Session) enter(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.room = room
	s.inRoom = true
	return true
}

// exit clears the room only if it is the one currently held.
func (s *Session) exit(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inRoom || s.room != room {
		return false
	}
	s.room = ""
	s.inRoom = false
	return true
}

// close makes the session terminal and returns the room it was holding.
func (s *Session) close() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, held := s.room, s.inRoom
	s.room = ""
	s.inRoom = false
	s.closed = true
	return room, held
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
