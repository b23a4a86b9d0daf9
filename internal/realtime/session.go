package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
)

const defaultSendBuffer = 32

// Conn is the message-oriented connection a Session runs over. The Fiber
// websocket connection satisfies it.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Session binds one live connection, authenticated as userID, to the hub.
// Outgoing events are queued in a bounded buffer drained by a single writer.
type Session struct {
	hub    *Hub
	conn   Conn
	userID string
	out    chan Event
	logger *slog.Logger
}

// NewSession builds a session; buffer <= 0 selects the default size.
func NewSession(hub *Hub, conn Conn, userID string, buffer int, logger *slog.Logger) *Session {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Session{hub: hub, conn: conn, userID: userID, out: make(chan Event, buffer), logger: logger}
}

// Deliver queues ev without blocking.
func (s *Session) Deliver(ev Event) bool {
	select {
	case s.out <- ev:
		return true
	default:
		return false
	}
}

// Run serves the connection until it fails or ctx ends. Channel
// memberships are torn down on return.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.hub.LeaveAll(s)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx)
	}()

	s.readLoop(ctx)
	cancel()
	<-writerDone
}

func (s *Session) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		var msg inbound
		if err := s.conn.ReadJSON(&msg); err != nil {
			s.logger.Debug("realtime connection closed", slog.String("user_id", s.userID), slog.Any("error", err))
			return
		}
		s.handle(msg)
	}
}

func (s *Session) handle(msg inbound) {
	switch msg.Event {
	case EventJoin, EventJoinRoom, EventLeave:
		target := s.userID
		if len(msg.Data) > 0 && string(msg.Data) != "null" {
			if err := json.Unmarshal(msg.Data, &target); err != nil {
				s.Deliver(Event{Name: EventError, Data: "join expects a user id string"})
				return
			}
		}
		// A connection may only listen to its own channel.
		if target != s.userID {
			s.Deliver(Event{Name: EventError, Data: "forbidden channel"})
			return
		}
		if msg.Event == EventLeave {
			s.hub.Leave(target, s)
			return
		}
		s.hub.Join(target, s)
		s.Deliver(Event{Name: EventJoined, Data: target})
	default:
		s.Deliver(Event{Name: EventError, Data: "unknown event"})
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.out:
			if err := s.conn.WriteJSON(ev); err != nil {
				s.logger.Debug("realtime write failed", slog.String("user_id", s.userID), slog.Any("error", err))
				// Unblocks the reader.
				_ = s.conn.Close()
				return
			}
		}
	}
}
