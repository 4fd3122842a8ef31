package registry

import (
	"crypto/rand"
	"sync"

	"github.com/SpelGekko/Chat-Website/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Room codes are drawn from letters only, matching the reference behavior.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// DefaultCodeLength is the reference room code length.
const DefaultCodeLength = 4

// Registry is the authoritative in-memory table of active rooms. The map is
// guarded by mu; each room serializes its own mutations behind its own lock,
// so operations on distinct rooms never contend.
type Registry struct {
	mu      sync.RWMutex
	codeLen int
	rooms   map[string]*Room
}

func New(codeLen int) *Registry {
	if codeLen <= 0 {
		codeLen = DefaultCodeLength
	}
	return &Registry{codeLen: codeLen, rooms: make(map[string]*Room)}
}

func randomCode(n int) string {
	// Rejection sampling keeps the draw uniform over the 52 letters:
	// bytes at or above the largest multiple of 52 are discarded.
	const limit = byte(len(codeAlphabet) * (256 / len(codeAlphabet)))
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			// Same stance as uuid.New: no entropy, no service.
			panic("registry: crypto/rand read failed: " + err.Error())
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}

// Create generates a fresh code and inserts the room in one step under the
// registry lock, so two concurrent creations can never collide on a code.
// The new room starts with zero members; creation alone never expires it.
func (r *Registry) Create(creator string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		code := randomCode(r.codeLen)
		if _, taken := r.rooms[code]; taken {
			continue
		}
		r.rooms[code] = newRoom(code, creator)
		metrics.ActiveRooms.Inc()
		return code
	}
}

// CreateWithCode inserts a room under a caller-chosen code.
func (r *Registry) CreateWithCode(code, creator string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.rooms[code]; taken {
		return ErrAlreadyExists
	}
	r.rooms[code] = newRoom(code, creator)
	metrics.ActiveRooms.Inc()
	return nil
}

func (r *Registry) lookup(code string) (*Room, error) {
	r.mu.RLock()
	room := r.rooms[code]
	r.mu.RUnlock()
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Exists reports whether code names an active room.
func (r *Registry) Exists(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[code] != nil
}

// Members returns the current member count of a room, zero if it is gone.
func (r *Registry) Members(code string) int {
	room, err := r.lookup(code)
	if err != nil {
		return 0
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.members
}

// Messages returns a copy of the room's message log in append order.
func (r *Registry) Messages(code string) ([]Message, error) {
	room, err := r.lookup(code)
	if err != nil {
		return nil, err
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	out := make([]Message, len(room.messages))
	copy(out, room.messages)
	return out, nil
}

// Attach binds a connection to the room: the member count goes up, the
// subscriber joins the active set, and event reaches every subscriber
// including the new one, all under the room lock.
func (r *Registry) Attach(code string, sub Subscriber, event []byte) (int, error) {
	room, err := r.lookup(code)
	if err != nil {
		return 0, err
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return 0, ErrRoomNotFound
	}
	// A repeated attach of the same connection is a no-op, so the member
	// count always equals the number of bound connections.
	if _, ok := room.subs[sub]; ok {
		return room.members, nil
	}
	room.members++
	room.subs[sub] = struct{}{}
	room.fanout(event)
	return room.members, nil
}

// Publish appends msg to the room log and fans event out to the active set.
// The sender must currently be attached.
func (r *Registry) Publish(code string, sub Subscriber, msg Message, event []byte) error {
	room, err := r.lookup(code)
	if err != nil {
		return err
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return ErrRoomNotFound
	}
	if _, ok := room.subs[sub]; !ok {
		return ErrNotAMember
	}
	room.messages = append(room.messages, msg)
	room.fanout(event)
	return nil
}

// Detach removes the connection and decrements the member count. When the
// count reaches zero the room is evicted from the registry and no event is
// sent (nobody is left to receive one); otherwise event goes to the
// remaining members. Reports whether the room was deleted.
func (r *Registry) Detach(code string, sub Subscriber, event []byte) (bool, error) {
	room, err := r.lookup(code)
	if err != nil {
		return false, err
	}
	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return false, ErrRoomNotFound
	}
	if _, ok := room.subs[sub]; !ok {
		room.mu.Unlock()
		return false, ErrNotAMember
	}
	delete(room.subs, sub)
	room.members--
	if room.members <= 0 {
		room.closed = true
		room.mu.Unlock()
		r.evict(code)
		return true, nil
	}
	room.fanout(event)
	room.mu.Unlock()
	return false, nil
}

// Delete removes a room on behalf of its creator. event is fanned out to the
// active set before eviction; the subscribers that were present are returned
// so the caller can unbind their sessions.
func (r *Registry) Delete(code, requester string, event []byte) ([]Subscriber, error) {
	room, err := r.lookup(code)
	if err != nil {
		return nil, err
	}
	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	if room.creator != requester {
		room.mu.Unlock()
		return nil, ErrUnauthorized
	}
	room.fanout(event)
	subs := make([]Subscriber, 0, len(room.subs))
	for sub := range room.subs {
		subs = append(subs, sub)
	}
	room.subs = make(map[Subscriber]struct{})
	room.members = 0
	room.closed = true
	room.mu.Unlock()
	r.evict(code)
	return subs, nil
}

func (r *Registry) evict(code string) {
	r.mu.Lock()
	delete(r.rooms, code)
	r.mu.Unlock()
	metrics.ActiveRooms.Dec()
	log.Info().Str("room", code).Msg("room removed from registry")
}
