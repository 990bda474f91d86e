package hub

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/hxbeeb/excalidraw/pkg/log"
)

// Hub is the process-wide connection registry and broadcast bus.
// All mutation goes through one RWMutex; broadcasts work on a
// membership snapshot taken under the read lock.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // connection id -> client
	byUser  map[string]*Client            // user id -> live connection
	rooms   map[string]map[string]*Client // room slug -> connection id -> client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		byUser:  make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register adds an authenticated connection. If the same user already
// has a live connection, the new transport replaces it in place: the
// old entry's room memberships move to the new connection and the old
// transport is closed, so the user never appears twice in a roster.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	old := h.byUser[c.UserID]
	if old != nil && old != c {
		for _, members := range h.rooms {
			if _, ok := members[old.ID]; ok {
				delete(members, old.ID)
				members[c.ID] = c
			}
		}
		delete(h.clients, old.ID)
	}
	h.clients[c.ID] = c
	h.byUser[c.UserID] = c
	h.mu.Unlock()

	if old != nil && old != c {
		// The old read pump unblocks, finds its entry gone, and its
		// deregistration becomes a no-op.
		if old.Conn != nil {
			old.Conn.Close()
		}
		l := log.L()
		l.Info().Str(log.FieldUserID, c.UserID).Str(log.FieldConnID, c.ID).Msg("connection replaced in place")
		return
	}

	l := log.L()
	l.Debug().Str(log.FieldConnID, c.ID).Str(log.FieldUserID, c.UserID).Msg("client registered")
}

// Deregister removes a connection and returns the rooms it had joined,
// sorted, for departure notification. It is idempotent: a connection
// that was already removed (or replaced) yields nil.
func (h *Hub) Deregister(c *Client) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.ID] != c {
		return nil
	}
	delete(h.clients, c.ID)
	if h.byUser[c.UserID] == c {
		delete(h.byUser, c.UserID)
	}

	var joined []string
	for room, members := range h.rooms {
		if _, ok := members[c.ID]; ok {
			delete(members, c.ID)
			joined = append(joined, room)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	sort.Strings(joined)

	l := log.L()
	l.Debug().Str(log.FieldConnID, c.ID).Str(log.FieldUserID, c.UserID).Strs("rooms", joined).Msg("client deregistered")
	return joined
}

// JoinRoom adds the connection to a room's member set. Joining a room
// already joined is a no-op. It reports false when the connection is
// not in the registry (never registered, or already replaced by a
// reconnect), in which case membership is unchanged.
func (h *Hub) JoinRoom(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.ID] != c {
		return false
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[c.ID] = c
	return true
}

// LeaveRoom removes the connection from a room's member set.
func (h *Hub) LeaveRoom(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// IsMember reports whether the connection has joined the room.
func (h *Hub) IsMember(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	_, in := members[c.ID]
	return in
}

// MembersOf returns a snapshot of the room's current members.
func (h *Hub) MembersOf(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[room]
	snapshot := make([]*Client, 0, len(members))
	for _, c := range members {
		snapshot = append(snapshot, c)
	}
	return snapshot
}

// MemberCount returns the number of connections in a room.
func (h *Hub) MemberCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast serializes a frame once and fans it out to every member of
// the room, skipping excludeID when non-empty. Delivery is best-effort:
// a member with a full send buffer misses the frame and the failure is
// logged, other recipients are unaffected.
func (h *Hub) Broadcast(room string, frame interface{}, excludeID string) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	for _, c := range h.MembersOf(room) {
		if c.ID == excludeID {
			continue
		}
		select {
		case c.Send <- data:
		default:
			l := log.L()
			l.Warn().Str(log.FieldRoom, room).Str(log.FieldConnID, c.ID).Msg("broadcast dropped, send buffer full")
		}
	}
	return nil
}
