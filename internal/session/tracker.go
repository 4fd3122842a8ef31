// Package session tracks which identity and rooms each live connection is
// bound to, so an abrupt disconnect can be resolved back to the right
// membership cleanup.
package session

import (
	"sync"

	"github.com/google/uuid"
)

type binding struct {
	identity string
	rooms    map[string]struct{}
}

// Tracker owns the connection -> (identity, joined rooms) bindings for the
// lifetime of each connection. Bindings are never persisted.
type Tracker struct {
	mu       sync.Mutex
	bindings map[uuid.UUID]*binding
}

func NewTracker() *Tracker {
	return &Tracker{bindings: make(map[uuid.UUID]*binding)}
}

// Bind registers a freshly authenticated connection.
func (t *Tracker) Bind(conn uuid.UUID, identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bindings[conn] = &binding{identity: identity, rooms: make(map[string]struct{})}
}

// RecordJoin adds a room code to the connection's joined set.
func (t *Tracker) RecordJoin(conn uuid.UUID, code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b := t.bindings[conn]; b != nil {
		b.rooms[code] = struct{}{}
	}
}

// RecordLeave removes a room code from the connection's joined set.
func (t *Tracker) RecordLeave(conn uuid.UUID, code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b := t.bindings[conn]; b != nil {
		delete(b.rooms, code)
	}
}

// Resolve returns the identity and joined rooms of a live connection without
// touching the binding.
func (t *Tracker) Resolve(conn uuid.UUID) (string, []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.bindings[conn]
	if b == nil {
		return "", nil
	}
	return b.identity, roomList(b)
}

// Release removes the binding and returns its final state. The transport may
// signal the same disconnect more than once; only the first call yields the
// joined set, every later call returns an empty one and has no side effect.
func (t *Tracker) Release(conn uuid.UUID) (string, []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.bindings[conn]
	if b == nil {
		return "", nil
	}
	delete(t.bindings, conn)
	return b.identity, roomList(b)
}

func roomList(b *binding) []string {
	rooms := make([]string, 0, len(b.rooms))
	for code := range b.rooms {
		rooms = append(rooms, code)
	}
	return rooms
}
