package service

import (
	"sync"

	"github.com/SpelGekko/Chat-Website/internal/registry"
	"github.com/rs/zerolog/log"
)

// RoomCloser notifies a room's members and evicts it. Implemented by the
// websocket hub; an interface here keeps the dependency one-directional.
type RoomCloser interface {
	OnRoomDeleted(code, requester string) error
}

// RoomService enforces the membership rules: who may create, enter, and
// delete a room. It grants entry permissions; the actual member-count moves
// happen when a live connection attaches or drops.
type RoomService struct {
	reg    *registry.Registry
	closer RoomCloser

	mu        sync.Mutex
	permitted map[string]map[string]struct{}
}

func NewRoomService(reg *registry.Registry, closer RoomCloser) *RoomService {
	return &RoomService{reg: reg, closer: closer, permitted: make(map[string]map[string]struct{})}
}

// Create makes a new room owned by identity and returns its code. The
// creator is not yet a member and is granted entry like anyone else.
func (s *RoomService) Create(identity string) string {
	code := s.reg.Create(identity)
	s.grant(identity, code)
	log.Info().Str("identity", identity).Str("room", code).Msg("room created")
	return code
}

// Join grants identity permission to enter an existing room. It does not
// change the member count; that happens when the connection attaches.
func (s *RoomService) Join(identity, code string) error {
	if !s.reg.Exists(code) {
		return registry.ErrRoomNotFound
	}
	s.grant(identity, code)
	return nil
}

// Permitted reports whether identity may enter code.
func (s *RoomService) Permitted(identity, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.permitted[identity][code]
	return ok
}

// Delete removes a room if identity is its creator, notifying the current
// members before the room's data is discarded.
func (s *RoomService) Delete(identity, code string) error {
	return s.closer.OnRoomDeleted(code, identity)
}

// RevokeRoom drops every grant for a dead room's code. Codes can be reused
// by later rooms, and a reused code must not inherit the old room's grants.
func (s *RoomService) RevokeRoom(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for identity, codes := range s.permitted {
		delete(codes, code)
		if len(codes) == 0 {
			delete(s.permitted, identity)
		}
	}
}

func (s *RoomService) grant(identity, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := s.permitted[identity]
	if codes == nil {
		codes = make(map[string]struct{})
		s.permitted[identity] = codes
	}
	codes[code] = struct{}{}
}
