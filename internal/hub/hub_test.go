package hub

import (
	"encoding/json"
	"testing"

	"github.com/hxbeeb/excalidraw/internal/config"
	"github.com/hxbeeb/excalidraw/internal/domain"
)

func testClient(h *Hub, connID, userID string) *Client {
	return NewClient(connID, domain.UserRef{ID: userID, Name: "user-" + userID, Email: userID + "@example.com"}, h, nil, config.WebSocketConfig{SendBuffer: 16})
}

func TestRegisterAndDeregister(t *testing.T) {
	h := NewHub()
	c := testClient(h, "conn-1", "user-1")

	h.Register(c)
	h.JoinRoom(c, "alpha")
	h.JoinRoom(c, "beta")

	rooms := h.Deregister(c)
	if len(rooms) != 2 || rooms[0] != "alpha" || rooms[1] != "beta" {
		t.Fatalf("Deregister returned %v, want [alpha beta]", rooms)
	}
	if h.MemberCount("alpha") != 0 || h.MemberCount("beta") != 0 {
		t.Error("rooms still have members after deregister")
	}
}

func TestDeregisterIsIdempotent(t *testing.T) {
	h := NewHub()
	c := testClient(h, "conn-1", "user-1")

	h.Register(c)
	h.JoinRoom(c, "alpha")

	if rooms := h.Deregister(c); rooms == nil {
		t.Fatal("first Deregister returned nil, want joined rooms")
	}
	if rooms := h.Deregister(c); rooms != nil {
		t.Errorf("second Deregister returned %v, want nil", rooms)
	}
}

func TestJoinRoomIsIdempotent(t *testing.T) {
	h := NewHub()
	c := testClient(h, "conn-1", "user-1")

	h.Register(c)
	h.JoinRoom(c, "alpha")
	h.JoinRoom(c, "alpha")

	if n := h.MemberCount("alpha"); n != 1 {
		t.Errorf("MemberCount = %d after double join, want 1", n)
	}
}

func TestJoinRoomRequiresRegistration(t *testing.T) {
	h := NewHub()
	c := testClient(h, "conn-1", "user-1")

	if h.JoinRoom(c, "alpha") {
		t.Error("JoinRoom reported success for an unregistered client")
	}
	if h.IsMember(c, "alpha") {
		t.Error("unregistered client joined a room")
	}

	h.Register(c)
	if !h.JoinRoom(c, "alpha") {
		t.Error("JoinRoom reported failure for a registered client")
	}
}

func TestReconnectReplacesInPlace(t *testing.T) {
	h := NewHub()
	first := testClient(h, "conn-1", "user-1")
	h.Register(first)
	h.JoinRoom(first, "alpha")

	second := testClient(h, "conn-2", "user-1")
	h.Register(second)

	if !h.IsMember(second, "alpha") {
		t.Error("replacement connection did not inherit room membership")
	}
	if h.IsMember(first, "alpha") {
		t.Error("replaced connection still a member")
	}
	if n := h.MemberCount("alpha"); n != 1 {
		t.Errorf("MemberCount = %d after reconnect, want 1", n)
	}

	// The replaced connection's teardown must not disturb the new one.
	if rooms := h.Deregister(first); rooms != nil {
		t.Errorf("Deregister of replaced connection returned %v, want nil", rooms)
	}
	if !h.IsMember(second, "alpha") {
		t.Error("new connection lost membership after old teardown")
	}
}

func TestMembersOfSnapshot(t *testing.T) {
	h := NewHub()
	a := testClient(h, "conn-a", "user-a")
	b := testClient(h, "conn-b", "user-b")
	h.Register(a)
	h.Register(b)
	h.JoinRoom(a, "alpha")
	h.JoinRoom(b, "alpha")

	members := h.MembersOf("alpha")
	if len(members) != 2 {
		t.Fatalf("MembersOf returned %d members, want 2", len(members))
	}
	if h.MembersOf("empty") == nil {
		t.Error("MembersOf of unknown room should be an empty slice")
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := NewHub()
	a := testClient(h, "conn-a", "user-a")
	b := testClient(h, "conn-b", "user-b")
	h.Register(a)
	h.Register(b)
	h.JoinRoom(a, "alpha")
	h.JoinRoom(b, "alpha")

	frame := domain.NewErrorFrame(domain.ErrCodeBadRequest, "test")
	if err := h.Broadcast("alpha", frame, a.ID); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	select {
	case <-a.Send:
		t.Error("excluded sender received the broadcast")
	default:
	}

	select {
	case raw := <-b.Send:
		var got domain.ErrorFrame
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if got.Code != domain.ErrCodeBadRequest {
			t.Errorf("broadcast code = %q, want %q", got.Code, domain.ErrCodeBadRequest)
		}
	default:
		t.Error("member did not receive the broadcast")
	}
}

func TestBroadcastIncludesSenderWhenNotExcluded(t *testing.T) {
	h := NewHub()
	a := testClient(h, "conn-a", "user-a")
	h.Register(a)
	h.JoinRoom(a, "alpha")

	if err := h.Broadcast("alpha", domain.NewErrorFrame(domain.ErrCodeBadRequest, "test"), ""); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	select {
	case <-a.Send:
	default:
		t.Error("sender did not receive unexcluded broadcast")
	}
}

func TestBroadcastSkipsNonMembers(t *testing.T) {
	h := NewHub()
	a := testClient(h, "conn-a", "user-a")
	b := testClient(h, "conn-b", "user-b")
	h.Register(a)
	h.Register(b)
	h.JoinRoom(a, "alpha")

	if err := h.Broadcast("alpha", domain.NewErrorFrame(domain.ErrCodeBadRequest, "test"), ""); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	select {
	case <-b.Send:
		t.Error("non-member received room broadcast")
	default:
	}
}

func TestLeaveRoom(t *testing.T) {
	h := NewHub()
	c := testClient(h, "conn-1", "user-1")
	h.Register(c)
	h.JoinRoom(c, "alpha")

	h.LeaveRoom(c, "alpha")

	if h.IsMember(c, "alpha") {
		t.Error("still a member after leave")
	}
	if h.MemberCount("alpha") != 0 {
		t.Error("room not emptied after last leave")
	}
}
