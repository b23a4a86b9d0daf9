package realtime

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contacthub/contacthub/internal/logging"
)

type pipeConn struct {
	in     chan string
	out    chan Event
	closed chan struct{}
	once   sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{in: make(chan string, 8), out: make(chan Event, 8), closed: make(chan struct{})}
}

func (p *pipeConn) ReadJSON(v any) error {
	select {
	case raw, ok := <-p.in:
		if !ok {
			return io.EOF
		}
		return json.Unmarshal([]byte(raw), v)
	case <-p.closed:
		return io.EOF
	}
}

func (p *pipeConn) WriteJSON(v any) error {
	ev, _ := v.(Event)
	select {
	case p.out <- ev:
		return nil
	case <-p.closed:
		return io.ErrClosedPipe
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeConn) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-p.out:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}

func startSession(t *testing.T, hub *Hub, userID string) (*pipeConn, chan struct{}) {
	t.Helper()
	conn := newPipeConn()
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewSession(hub, conn, userID, 4, logging.Discard()).Run(context.Background())
	}()
	return conn, done
}

func TestSessionJoinReceivesBroadcasts(t *testing.T) {
	hub := NewHub(logging.Discard())
	conn, done := startSession(t, hub, "ann")

	conn.in <- `{"event":"join","data":"ann"}`
	joined := conn.next(t)
	assert.Equal(t, EventJoined, joined.Name)
	assert.Equal(t, 1, hub.Subscribers("ann"))

	require.NoError(t, hub.Publish(context.Background(), "ann", EventUpdateContactList, "c1"))
	ev := conn.next(t)
	assert.Equal(t, EventUpdateContactList, ev.Name)
	assert.Equal(t, "c1", ev.Data)

	close(conn.in)
	<-done
	assert.Equal(t, 0, hub.Subscribers("ann"))
}

func TestSessionRejectsForeignChannel(t *testing.T) {
	hub := NewHub(logging.Discard())
	conn, done := startSession(t, hub, "ann")

	conn.in <- `{"event":"join","data":"bob"}`
	ev := conn.next(t)
	assert.Equal(t, EventError, ev.Name)
	assert.Equal(t, 0, hub.Subscribers("bob"))

	conn.in <- `{"event":"dance"}`
	assert.Equal(t, EventError, conn.next(t).Name)

	conn.Close()
	<-done
}

func TestSessionJoinWithoutDataUsesOwnChannel(t *testing.T) {
	hub := NewHub(logging.Discard())
	conn, done := startSession(t, hub, "ann")

	conn.in <- `{"event":"join"}`
	assert.Equal(t, EventJoined, conn.next(t).Name)
	assert.Equal(t, 1, hub.Subscribers("ann"))

	conn.in <- `{"event":"leave","data":"ann"}`
	require.Eventually(t, func() bool { return hub.Subscribers("ann") == 0 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	<-done
}

func TestSessionJoinRoomAlias(t *testing.T) {
	hub := NewHub(logging.Discard())
	conn, done := startSession(t, hub, "ann")

	conn.in <- `{"event":"joinRoom","data":"ann"}`
	joined := conn.next(t)
	assert.Equal(t, EventJoined, joined.Name)
	assert.Equal(t, "ann", joined.Data)
	assert.Equal(t, 1, hub.Subscribers("ann"))

	conn.in <- `{"event":"joinRoom","data":"bob"}`
	assert.Equal(t, EventError, conn.next(t).Name)
	assert.Equal(t, 0, hub.Subscribers("bob"))

	conn.Close()
	<-done
	assert.Equal(t, 0, hub.Subscribers("ann"))
}
