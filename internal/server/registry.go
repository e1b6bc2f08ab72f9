// Package server maintains the shared session registry, the single source
// of truth for who is connected, as whom, and in which room.
package server

import (
	"errors"
	"sync"
)

// ErrDuplicateSession is returned when a connection that already has a live
// session attempts to register again. Normal flow never does this.
var ErrDuplicateSession = errors.New("connection already registered")

// Registry maps live connections to their sessions. Every access, including
// reads of any session's room field, goes through one mutex so that room
// membership and the session set are always observed together.
type Registry struct {
	mu       sync.Mutex
	sessions map[Conn]*Session
	order    []*Session
}

// NewRegistry returns an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[Conn]*Session)}
}

// Register creates a session for conn and adds it to the registry.
func (r *Registry) Register(conn Conn, username, room string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[conn]; exists {
		return nil, ErrDuplicateSession
	}

	sess := &Session{
		conn:       conn,
		username:   username,
		remoteAddr: conn.RemoteAddr().String(),
		room:       room,
	}
	r.sessions[conn] = sess
	r.order = append(r.order, sess)
	return sess, nil
}

// Unregister removes and returns the session for conn. Calling it for a
// connection that was never registered, or twice, is a no-op.
func (r *Registry) Unregister(conn Conn) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[conn]
	if !ok {
		return nil, false
	}
	delete(r.sessions, conn)
	for i, s := range r.order {
		if s == sess {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return sess, true
}

// SetRoom atomically moves the session for conn to a new room. It is a
// no-op when the connection is no longer registered.
func (r *Registry) SetRoom(conn Conn, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[conn]; ok {
		sess.room = room
	}
}

// RoomOf reports the current room of the session for conn.
func (r *Registry) RoomOf(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[conn]
	if !ok {
		return "", false
	}
	return sess.room, true
}

// Snapshot returns every live session in registration order. The returned
// slice is a point-in-time copy safe to iterate without holding the registry.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*Session(nil), r.order...)
}

// SnapshotRoom returns the sessions whose room equals room at the time of
// the call, in registration order.
func (r *Registry) SnapshotRoom(room string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var members []*Session
	for _, sess := range r.order {
		if sess.room == room {
			members = append(members, sess)
		}
	}
	return members
}

// UsernamesInRoom returns the usernames of every session currently in room.
func (r *Registry) UsernamesInRoom(room string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for _, sess := range r.order {
		if sess.room == room {
			names = append(names, sess.username)
		}
	}
	return names
}

// Rooms returns the distinct room names across all sessions, ordered by
// first registration. A room exists only while at least one session is in it.
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{})
	var rooms []string
	for _, sess := range r.order {
		if _, ok := seen[sess.room]; ok {
			continue
		}
		seen[sess.room] = struct{}{}
		rooms = append(rooms, sess.room)
	}
	return rooms
}

// FindByUsername returns the earliest-registered session with the given
// name. Usernames are not unique, so with duplicates this is the first
// match in registration order.
func (r *Registry) FindByUsername(name string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sess := range r.order {
		if sess.username == name {
			return sess, true
		}
	}
	return nil, false
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}
