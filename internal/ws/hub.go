package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/SpelGekko/Chat-Website/internal/metrics"
	"github.com/SpelGekko/Chat-Website/internal/registry"
	"github.com/SpelGekko/Chat-Website/internal/session"
	"github.com/rs/zerolog/log"
)

// PermissionChecker answers whether an identity may enter a room and drops
// every grant for a room once it dies, so a later room that happens to reuse
// the code starts with a clean slate. Implemented by the membership service.
type PermissionChecker interface {
	Permitted(identity, code string) bool
	RevokeRoom(code string)
}

// Hub routes events between live connections and the room registry. Every
// mutation goes through the registry, which serializes per room and enqueues
// the resulting event to each member under the same lock, so observers see
// joins, messages, and leaves in mutation order.
type Hub struct {
	reg     *registry.Registry
	tracker *session.Tracker
	perms   PermissionChecker
}

func NewHub(reg *registry.Registry, tracker *session.Tracker) *Hub {
	return &Hub{reg: reg, tracker: tracker}
}

// SetPermissions installs the membership service. The hub and the service
// reference each other, so one side is wired after construction.
func (h *Hub) SetPermissions(perms PermissionChecker) { h.perms = perms }

// Dispatch decodes one inbound frame and routes it by event kind. Malformed
// or unauthorized frames are counted, logged, and dropped; they never affect
// room state or other connections.
func (h *Hub) Dispatch(c *Client, raw []byte) {
	var evt InboundEvent
	if err := json.Unmarshal(raw, &evt); err != nil || evt.Code == "" {
		metrics.EventsDroppedTotal.Inc()
		log.Debug().Str("identity", c.identity).Msg("malformed event dropped")
		return
	}
	var err error
	switch evt.Kind() {
	case EventJoin:
		err = h.OnConnectionJoin(c, evt.Code)
	case EventMessage:
		err = h.OnMessage(c, evt.Code, evt.Message)
	default:
		metrics.EventsDroppedTotal.Inc()
		log.Debug().Str("identity", c.identity).Str("event", evt.Event).Msg("unknown event dropped")
		return
	}
	if err != nil {
		metrics.EventsDroppedTotal.Inc()
		log.Debug().Err(err).Str("identity", c.identity).Str("room", evt.Code).Str("event", evt.Event).Msg("event dropped")
	}
}

// OnConnectionJoin attaches the connection to a room it holds permission for.
// The member count goes up and everyone currently in the room, the joiner
// included, receives the joined event.
func (h *Hub) OnConnectionJoin(c *Client, code string) error {
	if !h.perms.Permitted(c.identity, code) {
		return registry.ErrNotAMember
	}
	// Recorded before the attach so a racing disconnect still cleans up.
	h.tracker.RecordJoin(c.id, code)
	members, err := h.reg.Attach(code, c, joinedEvent(c.identity, time.Now()))
	if err != nil {
		h.tracker.RecordLeave(c.id, code)
		return err
	}
	log.Info().Str("identity", c.identity).Str("room", code).Int("members", members).Msg("joined room")
	return nil
}

// OnMessage appends a server-timestamped message to the room log and fans it
// out. The sending connection must currently be a member.
func (h *Hub) OnMessage(c *Client, code, text string) error {
	if text == "" {
		return errors.New("empty message")
	}
	now := time.Now()
	msg := registry.Message{Sender: c.identity, Body: text, SentAt: now}
	if err := h.reg.Publish(code, c, msg, chatEvent(c.identity, text, now)); err != nil {
		return err
	}
	metrics.MessagesTotal.Inc()
	return nil
}

// OnConnectionLeave resolves every room the connection was attached to and
// detaches it from each. A room whose count reaches zero is gone; otherwise
// the remaining members get the left event. Safe to call more than once per
// connection: the first call releases the binding, later ones find nothing.
func (h *Hub) OnConnectionLeave(c *Client) {
	identity, codes := h.tracker.Release(c.id)
	if identity == "" {
		return
	}
	for _, code := range codes {
		deleted, err := h.reg.Detach(code, c, leftEvent(identity, time.Now()))
		if err != nil {
			log.Debug().Err(err).Str("identity", identity).Str("room", code).Msg("detach on disconnect")
			continue
		}
		if deleted {
			h.perms.RevokeRoom(code)
			log.Info().Str("identity", identity).Str("room", code).Msg("last member left, room deleted")
			continue
		}
		log.Info().Str("identity", identity).Str("room", code).Msg("left room")
	}
}

// OnRoomDeleted evicts a room on behalf of its creator. Current members
// receive the room_deleted event before the data is discarded, then their
// sessions are unbound from the room.
func (h *Hub) OnRoomDeleted(code, requester string) error {
	subs, err := h.reg.Delete(code, requester, roomDeletedEvent(code))
	if err != nil {
		return err
	}
	for _, sub := range subs {
		h.tracker.RecordLeave(sub.ID(), code)
	}
	h.perms.RevokeRoom(code)
	log.Info().Str("identity", requester).Str("room", code).Int("notified", len(subs)).Msg("room deleted by creator")
	return nil
}
