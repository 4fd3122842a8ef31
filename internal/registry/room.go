package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Subscriber is a live receiver of room events. Enqueue must not block: it
// hands the payload to the connection's outbound buffer and reports false
// when the buffer is full, in which case the event is skipped for that
// receiver only.
type Subscriber interface {
	ID() uuid.UUID
	Identity() string
	Enqueue(payload []byte) bool
}

// Message is immutable once created. It is appended to its room's log on
// send and discarded only together with the room.
type Message struct {
	Sender string
	Body   string
	SentAt time.Time
}

// Room holds the state of one active room. All fields are guarded by mu;
// mu is never held across a transport write, only across the buffer enqueue.
type Room struct {
	mu       sync.Mutex
	code     string
	creator  string
	members  int
	closed   bool
	messages []Message
	subs     map[Subscriber]struct{}
}

func newRoom(code, creator string) *Room {
	return &Room{code: code, creator: creator, subs: make(map[Subscriber]struct{})}
}

// fanout enqueues payload to every current subscriber. Caller holds rm.mu,
// which is what pins the broadcast order to the mutation order. A receiver
// whose buffer is full is skipped, not retried and not evicted; eviction
// happens only through the disconnect path.
func (rm *Room) fanout(payload []byte) {
	for sub := range rm.subs {
		if !sub.Enqueue(payload) {
			log.Warn().Str("room", rm.code).Str("identity", sub.Identity()).Msg("receiver buffer full, event skipped")
		}
	}
}
