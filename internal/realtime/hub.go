// Package realtime pushes contact changes to every live connection that has
// joined a user's channel.
package realtime

import (
	"context"
	"log/slog"
	"sync"
)

// Event names exchanged over the wire.
const (
	EventJoin              = "join"
	EventJoinRoom          = "joinRoom"
	EventLeave             = "leave"
	EventJoined            = "joined"
	EventError             = "error"
	EventUpdateContactList = "updateContactList"
	EventContactDeleted    = "contactDeleted"
)

// Event is the envelope sent to clients.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// Subscriber receives events for the channels it joined. Deliver must not
// block; returning false means the event was dropped for that subscriber.
type Subscriber interface {
	Deliver(ev Event) bool
}

// Hub owns channel membership. Join, Leave and LeaveAll are its only
// mutators; Publish reads under the same lock so a subscriber sees events
// from one publisher in publish order.
type Hub struct {
	mu          sync.RWMutex
	channels    map[string]map[Subscriber]struct{}
	memberships map[Subscriber]map[string]struct{}
	logger      *slog.Logger
}

// NewHub builds an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		channels:    make(map[string]map[Subscriber]struct{}),
		memberships: make(map[Subscriber]map[string]struct{}),
		logger:      logger,
	}
}

// Join adds sub to userID's channel. Joining twice is a no-op.
func (h *Hub) Join(userID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.channels[userID]
	if !ok {
		members = make(map[Subscriber]struct{})
		h.channels[userID] = members
	}
	members[sub] = struct{}{}

	joined, ok := h.memberships[sub]
	if !ok {
		joined = make(map[string]struct{})
		h.memberships[sub] = joined
	}
	joined[userID] = struct{}{}
}

// Leave removes sub from userID's channel.
func (h *Hub) Leave(userID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(userID, sub)
}

// LeaveAll removes sub from every channel; called when a connection closes.
func (h *Hub) LeaveAll(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID := range h.memberships[sub] {
		h.leaveLocked(userID, sub)
	}
}

func (h *Hub) leaveLocked(userID string, sub Subscriber) {
	if members, ok := h.channels[userID]; ok {
		delete(members, sub)
		if len(members) == 0 {
			delete(h.channels, userID)
		}
	}
	if joined, ok := h.memberships[sub]; ok {
		delete(joined, userID)
		if len(joined) == 0 {
			delete(h.memberships, sub)
		}
	}
}

// Publish delivers an event to everyone currently in userID's channel.
// Delivery is best effort: subscribers that cannot take the event miss it,
// and nothing is kept for connections that join later.
func (h *Hub) Publish(ctx context.Context, userID, name string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := Event{Name: name, Data: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.channels[userID]
	delivered, dropped := 0, 0
	for sub := range members {
		if sub.Deliver(ev) {
			delivered++
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("realtime events dropped",
			slog.String("user_id", userID),
			slog.String("event", name),
			slog.Int("dropped", dropped),
		)
	}
	h.logger.Debug("realtime event published",
		slog.String("user_id", userID),
		slog.String("event", name),
		slog.Int("delivered", delivered),
	)
	return nil
}

// Subscribers reports how many connections are joined to userID's channel.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[userID])
}
