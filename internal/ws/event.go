package ws

import (
	"encoding/json"
	"time"
)

// Wire timestamps keep the reference format.
const timestampLayout = "2006-01-02 15:04:05"

// EventKind enumerates inbound client events. Dispatching happens through an
// explicit switch in Hub.Dispatch rather than per-callback registration.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventJoin
	EventMessage
)

// InboundEvent is the JSON frame clients send over the websocket.
type InboundEvent struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e InboundEvent) Kind() EventKind {
	switch e.Event {
	case "join":
		return EventJoin
	case "message":
		return EventMessage
	default:
		return EventUnknown
	}
}

type outboundEvent struct {
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Room      string `json:"room,omitempty"`
}

func marshalEvent(evt outboundEvent) []byte {
	b, _ := json.Marshal(evt)
	return b
}

func joinedEvent(name string, at time.Time) []byte {
	return marshalEvent(outboundEvent{Type: "joined", Name: name, Message: "joined the room.", Timestamp: at.Format(timestampLayout)})
}

func leftEvent(name string, at time.Time) []byte {
	return marshalEvent(outboundEvent{Type: "left", Name: name, Message: "left the room.", Timestamp: at.Format(timestampLayout)})
}

func chatEvent(name, message string, at time.Time) []byte {
	return marshalEvent(outboundEvent{Type: "chat", Name: name, Message: message, Timestamp: at.Format(timestampLayout)})
}

func roomDeletedEvent(code string) []byte {
	return marshalEvent(outboundEvent{Type: "room_deleted", Room: code})
}
