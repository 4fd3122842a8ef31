package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/SpelGekko/Chat-Website/internal/registry"
	"github.com/SpelGekko/Chat-Website/internal/service"
	"github.com/SpelGekko/Chat-Website/internal/session"
	"github.com/google/uuid"
)

func newTestEngine() (*registry.Registry, *session.Tracker, *Hub, *service.RoomService) {
	reg := registry.New(4)
	tracker := session.NewTracker()
	hub := NewHub(reg, tracker)
	svc := service.NewRoomService(reg, hub)
	hub.SetPermissions(svc)
	return reg, tracker, hub, svc
}

func newTestClient(hub *Hub, tracker *session.Tracker, identity string) *Client {
	c := &Client{id: uuid.New(), identity: identity, hub: hub, send: make(chan []byte, 64)}
	tracker.Bind(c.id, identity)
	return c
}

func recvEvent(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case raw := <-c.send:
		var evt map[string]interface{}
		if err := json.Unmarshal(raw, &evt); err != nil {
			t.Fatalf("received invalid event %q: %v", raw, err)
		}
		return evt
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no event received")
		return nil
	}
}

func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected event %q", raw)
	default:
	}
}

// The reference walkthrough: alice creates a room and joins, bob joins, alice
// chats, both disconnect, and the emptied room disappears from the registry.
func TestHub_RoomLifecycleScenario(t *testing.T) {
	reg, tracker, hub, svc := newTestEngine()

	code := svc.Create("alice")
	alice := newTestClient(hub, tracker, "alice")
	if err := hub.OnConnectionJoin(alice, code); err != nil {
		t.Fatalf("OnConnectionJoin(alice) error = %v", err)
	}
	if reg.Members(code) != 1 {
		t.Fatalf("Members() = %d after alice joined, want 1", reg.Members(code))
	}
	evt := recvEvent(t, alice)
	if evt["type"] != "joined" || evt["name"] != "alice" || evt["message"] != "joined the room." {
		t.Fatalf("alice's join event = %v", evt)
	}
	if evt["timestamp"] == nil {
		t.Fatal("join event missing timestamp")
	}

	if err := svc.Join("bob", code); err != nil {
		t.Fatalf("Join(bob) error = %v", err)
	}
	bob := newTestClient(hub, tracker, "bob")
	if err := hub.OnConnectionJoin(bob, code); err != nil {
		t.Fatalf("OnConnectionJoin(bob) error = %v", err)
	}
	if reg.Members(code) != 2 {
		t.Fatalf("Members() = %d after bob joined, want 2", reg.Members(code))
	}
	for _, c := range []*Client{alice, bob} {
		evt := recvEvent(t, c)
		if evt["type"] != "joined" || evt["name"] != "bob" {
			t.Fatalf("%s saw join event %v, want bob joined", c.identity, evt)
		}
	}

	if err := hub.OnMessage(alice, code, "hi"); err != nil {
		t.Fatalf("OnMessage(alice) error = %v", err)
	}
	for _, c := range []*Client{alice, bob} {
		evt := recvEvent(t, c)
		if evt["type"] != "chat" || evt["name"] != "alice" || evt["message"] != "hi" {
			t.Fatalf("%s saw chat event %v", c.identity, evt)
		}
	}

	hub.OnConnectionLeave(bob)
	if reg.Members(code) != 1 {
		t.Fatalf("Members() = %d after bob left, want 1", reg.Members(code))
	}
	evt = recvEvent(t, alice)
	if evt["type"] != "left" || evt["name"] != "bob" || evt["message"] != "left the room." {
		t.Fatalf("alice saw leave event %v", evt)
	}

	hub.OnConnectionLeave(alice)
	if reg.Exists(code) {
		t.Fatal("room still in registry after last member left")
	}
	if err := svc.Join("carol", code); !errors.Is(err, registry.ErrRoomNotFound) {
		t.Fatalf("Join() after room death error = %v, want ErrRoomNotFound", err)
	}
}

func TestHub_JoinRequiresPermission(t *testing.T) {
	reg, tracker, hub, svc := newTestEngine()
	code := svc.Create("alice")

	mallory := newTestClient(hub, tracker, "mallory")
	if err := hub.OnConnectionJoin(mallory, code); !errors.Is(err, registry.ErrNotAMember) {
		t.Fatalf("OnConnectionJoin() without permission error = %v, want ErrNotAMember", err)
	}
	if reg.Members(code) != 0 {
		t.Errorf("Members() = %d after rejected join, want 0", reg.Members(code))
	}
	expectNoEvent(t, mallory)
}

func TestHub_MessageRequiresMembership(t *testing.T) {
	reg, tracker, hub, svc := newTestEngine()
	code := svc.Create("alice")
	alice := newTestClient(hub, tracker, "alice")
	if err := hub.OnConnectionJoin(alice, code); err != nil {
		t.Fatalf("OnConnectionJoin() error = %v", err)
	}
	recvEvent(t, alice)

	// bob holds permission but never attached a connection.
	if err := svc.Join("bob", code); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	bob := newTestClient(hub, tracker, "bob")
	if err := hub.OnMessage(bob, code, "sneaky"); !errors.Is(err, registry.ErrNotAMember) {
		t.Fatalf("OnMessage() error = %v, want ErrNotAMember", err)
	}
	expectNoEvent(t, alice)

	msgs, err := reg.Messages(code)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Messages() len = %d after dropped event, want 0", len(msgs))
	}
}

func TestHub_IdempotentDisconnect(t *testing.T) {
	reg, tracker, hub, svc := newTestEngine()
	code := svc.Create("alice")
	alice := newTestClient(hub, tracker, "alice")
	if err := svc.Join("bob", code); err != nil {
		t.Fatal(err)
	}
	bob := newTestClient(hub, tracker, "bob")
	if err := hub.OnConnectionJoin(alice, code); err != nil {
		t.Fatal(err)
	}
	if err := hub.OnConnectionJoin(bob, code); err != nil {
		t.Fatal(err)
	}

	hub.OnConnectionLeave(bob)
	hub.OnConnectionLeave(bob) // transport may signal twice
	if reg.Members(code) != 1 {
		t.Errorf("Members() = %d after double disconnect, want 1", reg.Members(code))
	}
	if !reg.Exists(code) {
		t.Error("room deleted by a repeated disconnect")
	}
}

// Joining a second room keeps the first one's membership; only a full
// disconnect decrements. This mirrors the reference behavior on purpose.
func TestHub_NavigationLeaveKeepsMembership(t *testing.T) {
	reg, tracker, hub, svc := newTestEngine()
	first := svc.Create("alice")
	second := svc.Create("alice")
	alice := newTestClient(hub, tracker, "alice")

	if err := hub.OnConnectionJoin(alice, first); err != nil {
		t.Fatal(err)
	}
	if err := hub.OnConnectionJoin(alice, second); err != nil {
		t.Fatal(err)
	}
	if reg.Members(first) != 1 || reg.Members(second) != 1 {
		t.Fatalf("Members() = (%d, %d) with one connection in both rooms, want (1, 1)", reg.Members(first), reg.Members(second))
	}

	hub.OnConnectionLeave(alice)
	if reg.Exists(first) || reg.Exists(second) {
		t.Error("rooms should be gone after their only member disconnected")
	}
}

func TestHub_RoomDeletedByCreator(t *testing.T) {
	reg, tracker, hub, svc := newTestEngine()
	code := svc.Create("alice")
	alice := newTestClient(hub, tracker, "alice")
	if err := svc.Join("bob", code); err != nil {
		t.Fatal(err)
	}
	bob := newTestClient(hub, tracker, "bob")
	if err := hub.OnConnectionJoin(alice, code); err != nil {
		t.Fatal(err)
	}
	if err := hub.OnConnectionJoin(bob, code); err != nil {
		t.Fatal(err)
	}
	for len(alice.send) > 0 {
		<-alice.send
	}
	for len(bob.send) > 0 {
		<-bob.send
	}

	if err := svc.Delete("bob", code); !errors.Is(err, registry.ErrUnauthorized) {
		t.Fatalf("Delete() by non-creator error = %v, want ErrUnauthorized", err)
	}
	if !reg.Exists(code) {
		t.Fatal("room removed by unauthorized delete")
	}
	expectNoEvent(t, alice)

	if err := svc.Delete("alice", code); err != nil {
		t.Fatalf("Delete() by creator error = %v", err)
	}
	for _, c := range []*Client{alice, bob} {
		evt := recvEvent(t, c)
		if evt["type"] != "room_deleted" || evt["room"] != code {
			t.Fatalf("%s saw deletion event %v", c.identity, evt)
		}
	}
	if reg.Exists(code) {
		t.Fatal("room still in registry after creator delete")
	}

	// Sessions were unbound, so the later disconnects touch nothing.
	_, rooms := tracker.Resolve(alice.id)
	if len(rooms) != 0 {
		t.Errorf("alice still bound to %v after room deletion", rooms)
	}
	hub.OnConnectionLeave(alice)
	hub.OnConnectionLeave(bob)
}

func TestHub_MessageOrderPreserved(t *testing.T) {
	_, tracker, hub, svc := newTestEngine()
	code := svc.Create("alice")
	alice := newTestClient(hub, tracker, "alice")
	if err := svc.Join("bob", code); err != nil {
		t.Fatal(err)
	}
	bob := newTestClient(hub, tracker, "bob")
	if err := hub.OnConnectionJoin(alice, code); err != nil {
		t.Fatal(err)
	}
	if err := hub.OnConnectionJoin(bob, code); err != nil {
		t.Fatal(err)
	}
	for len(alice.send) > 0 {
		<-alice.send
	}
	for len(bob.send) > 0 {
		<-bob.send
	}

	const n = 10
	for i := 0; i < n; i++ {
		if err := hub.OnMessage(alice, code, fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("OnMessage(%d) error = %v", i, err)
		}
	}
	for _, c := range []*Client{alice, bob} {
		for i := 0; i < n; i++ {
			evt := recvEvent(t, c)
			if want := fmt.Sprintf("msg-%d", i); evt["message"] != want {
				t.Fatalf("%s saw %v at position %d, want %q", c.identity, evt["message"], i, want)
			}
		}
	}
}

func TestHub_DispatchDropsMalformedEvents(t *testing.T) {
	reg, tracker, hub, svc := newTestEngine()
	code := svc.Create("alice")
	alice := newTestClient(hub, tracker, "alice")
	if err := hub.OnConnectionJoin(alice, code); err != nil {
		t.Fatal(err)
	}
	recvEvent(t, alice)

	hub.Dispatch(alice, []byte("not json"))
	// missing code
	hub.Dispatch(alice, []byte(`{"event":"message"}`))
	// unknown kind
	hub.Dispatch(alice, []byte(`{"event":"typing","code":"`+code+`"}`))
	// empty body
	hub.Dispatch(alice, []byte(`{"event":"message","code":"`+code+`"}`))
	// room that never existed
	hub.Dispatch(alice, []byte(`{"event":"message","code":"ZZZZ","message":"x"}`))

	expectNoEvent(t, alice)
	if reg.Members(code) != 1 {
		t.Errorf("Members() = %d after malformed events, want 1", reg.Members(code))
	}
}

func TestHub_DispatchRoutesByKind(t *testing.T) {
	reg, tracker, hub, svc := newTestEngine()
	code := svc.Create("alice")
	alice := newTestClient(hub, tracker, "alice")

	hub.Dispatch(alice, []byte(`{"event":"join","code":"`+code+`"}`))
	if reg.Members(code) != 1 {
		t.Fatalf("Members() = %d after join frame, want 1", reg.Members(code))
	}
	recvEvent(t, alice)

	hub.Dispatch(alice, []byte(`{"event":"message","code":"`+code+`","message":"hello"}`))
	evt := recvEvent(t, alice)
	if evt["type"] != "chat" || evt["message"] != "hello" {
		t.Fatalf("chat event = %v", evt)
	}
}

// A client retrying its join frame, or a flaky UI sending it twice, must not
// inflate the member count: the room has to die when the single connection
// behind both frames disconnects.
func TestHub_RepeatedJoinFrameCountsOnce(t *testing.T) {
	reg, tracker, hub, svc := newTestEngine()
	code := svc.Create("alice")
	alice := newTestClient(hub, tracker, "alice")

	hub.Dispatch(alice, []byte(`{"event":"join","code":"`+code+`"}`))
	hub.Dispatch(alice, []byte(`{"event":"join","code":"`+code+`"}`))
	if reg.Members(code) != 1 {
		t.Fatalf("Members() = %d with one bound connection, want 1", reg.Members(code))
	}
	evt := recvEvent(t, alice)
	if evt["type"] != "joined" || evt["name"] != "alice" {
		t.Fatalf("join event = %v", evt)
	}
	expectNoEvent(t, alice)

	hub.OnConnectionLeave(alice)
	if reg.Exists(code) {
		t.Errorf("room still registered (members=%d) after its only connection disconnected", reg.Members(code))
	}
}

// Codes can be re-minted once a room dies. Permissions granted against the
// dead room must not carry over to its successor.
func TestHub_ReusedCodeDoesNotInheritGrants(t *testing.T) {
	reg, tracker, hub, svc := newTestEngine()
	code := svc.Create("alice")
	if err := svc.Join("bob", code); err != nil {
		t.Fatalf("Join(bob) error = %v", err)
	}

	alice := newTestClient(hub, tracker, "alice")
	if err := hub.OnConnectionJoin(alice, code); err != nil {
		t.Fatalf("OnConnectionJoin(alice) error = %v", err)
	}
	hub.OnConnectionLeave(alice)
	if reg.Exists(code) {
		t.Fatal("room still registered after its only member left")
	}

	// carol mints a fresh room under the same code.
	if err := reg.CreateWithCode(code, "carol"); err != nil {
		t.Fatalf("CreateWithCode() error = %v", err)
	}
	if svc.Permitted("alice", code) || svc.Permitted("bob", code) {
		t.Error("grants for the dead room survived into its successor")
	}
	bob := newTestClient(hub, tracker, "bob")
	if err := hub.OnConnectionJoin(bob, code); !errors.Is(err, registry.ErrNotAMember) {
		t.Errorf("OnConnectionJoin(bob) error = %v, want ErrNotAMember", err)
	}
}

// Deleting a room by creator request also clears every grant for its code.
func TestHub_RoomDeletedRevokesGrants(t *testing.T) {
	_, tracker, hub, svc := newTestEngine()
	code := svc.Create("alice")
	if err := svc.Join("bob", code); err != nil {
		t.Fatalf("Join(bob) error = %v", err)
	}
	bob := newTestClient(hub, tracker, "bob")
	if err := hub.OnConnectionJoin(bob, code); err != nil {
		t.Fatalf("OnConnectionJoin(bob) error = %v", err)
	}

	if err := svc.Delete("alice", code); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if svc.Permitted("alice", code) || svc.Permitted("bob", code) {
		t.Error("grants survived room deletion")
	}
}

func TestEventKind(t *testing.T) {
	tests := []struct {
		event string
		want  EventKind
	}{
		{"join", EventJoin},
		{"message", EventMessage},
		{"typing", EventUnknown},
		{"", EventUnknown},
	}
	for _, tt := range tests {
		if got := (InboundEvent{Event: tt.event}).Kind(); got != tt.want {
			t.Errorf("Kind(%q) = %v, want %v", tt.event, got, tt.want)
		}
	}
}
