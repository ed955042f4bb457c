package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestHub(t *testing.T, ttl time.Duration) *Hub {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(NewRoomStore(ttl), time.Minute, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// recvTyped reads from a client's send channel until a message of the
// wanted type arrives.
func recvTyped(t *testing.T, c *Client, typ string) *Message {
	t.Helper()
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				t.Fatalf("send channel closed while waiting for %s", typ)
			}
			if msg.Type == typ {
				return msg
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

// Concurrent sender joins must linearize: however the races resolve,
// the room ends up with exactly one sender and every connection is
// bound exactly once.
func TestConcurrentSenderJoinsLinearize(t *testing.T) {
	hub := newTestHub(t, time.Hour)
	roomID := hub.Rooms.Create()

	const n = 32
	ids := make(map[string]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("conn-%d", i)
		ids[id] = true
		c := NewClient(id, hub, nil)
		hub.Register <- c

		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Inbound <- &Message{Type: TypeJoin, RoomID: roomID, Role: RoleSender, client: c}
		}()
	}
	wg.Wait()

	waitFor(t, "all joins processed", func() bool { return hub.conns.Len() == n })

	winner := hub.Rooms.SenderOf(roomID)
	if !ids[winner] {
		t.Fatalf("sender = %q, not one of the joining connections", winner)
	}
	if members := hub.Rooms.Members(roomID); len(members) != 1 {
		t.Fatalf("room members = %v, want the single winning sender", members)
	}
}

// A join racing the same connection's disconnect must leave no trace:
// the losing join behaves as if it never happened.
func TestJoinDisconnectRace(t *testing.T) {
	hub := newTestHub(t, time.Hour)

	for i := 0; i < 50; i++ {
		roomID := hub.Rooms.Create()
		id := fmt.Sprintf("racer-%d", i)
		c := NewClient(id, hub, nil)
		hub.Register <- c

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Inbound <- &Message{Type: TypeJoin, RoomID: roomID, Role: RoleSender, client: c}
		}()
		go func() {
			defer wg.Done()
			hub.Unregister <- c
		}()
		wg.Wait()

		waitFor(t, "registry settled", func() bool {
			_, _, ok := hub.conns.Lookup(id)
			return !ok
		})
		waitFor(t, "sender slot settled", func() bool {
			return hub.Rooms.SenderOf(roomID) != id
		})
	}
}

func TestUnregisterProcessedOnce(t *testing.T) {
	hub := newTestHub(t, time.Hour)

	c := NewClient("c1", hub, nil)
	hub.Register <- c
	hub.Unregister <- c
	// A second disconnect for the same connection must be ignored
	// (closing the send channel twice would panic the hub).
	hub.Unregister <- c

	waitFor(t, "send channel closed", func() bool {
		select {
		case _, ok := <-c.Send:
			return !ok
		default:
			return false
		}
	})
}

func TestHubSenderDisconnectFanout(t *testing.T) {
	hub := newTestHub(t, time.Hour)
	roomID := hub.Rooms.Create()

	sender := NewClient("sender", hub, nil)
	x := NewClient("x", hub, nil)
	y := NewClient("y", hub, nil)
	for _, c := range []*Client{sender, x, y} {
		hub.Register <- c
	}

	info := json.RawMessage(`{"name":"a.txt","size":10}`)
	hub.Inbound <- &Message{Type: TypeJoin, RoomID: roomID, Role: RoleSender, FileInfo: info, client: sender}
	hub.Inbound <- &Message{Type: TypeJoin, RoomID: roomID, Role: RoleReceiver, client: x}
	hub.Inbound <- &Message{Type: TypeJoin, RoomID: roomID, Role: RoleReceiver, client: y}

	// Receivers see the announced file; the sender hears about both.
	if msg := recvTyped(t, x, TypeFileReady); string(msg.FileInfo) != string(info) {
		t.Errorf("x file_ready = %s", msg.FileInfo)
	}
	recvTyped(t, y, TypeFileReady)
	if msg := recvTyped(t, sender, TypeReceiverJoined); msg.ReceiverID != "x" {
		t.Errorf("first receiver_joined = %q, want x", msg.ReceiverID)
	}
	if msg := recvTyped(t, sender, TypeReceiverJoined); msg.ReceiverID != "y" {
		t.Errorf("second receiver_joined = %q, want y", msg.ReceiverID)
	}

	hub.Unregister <- sender

	recvTyped(t, x, TypeSenderDisconnected)
	recvTyped(t, y, TypeSenderDisconnected)

	// Exactly one each: nothing else should be queued.
	for _, c := range []*Client{x, y} {
		select {
		case msg := <-c.Send:
			t.Errorf("%s got an extra message: %+v", c.ID, msg)
		default:
		}
	}
}

func TestHubDropsEventAfterDisconnect(t *testing.T) {
	hub := newTestHub(t, time.Hour)
	roomID := hub.Rooms.Create()

	c := NewClient("late", hub, nil)
	hub.Register <- c
	hub.Unregister <- c
	waitFor(t, "client unregistered", func() bool {
		select {
		case _, ok := <-c.Send:
			return !ok
		default:
			return false
		}
	})

	hub.Inbound <- &Message{Type: TypeJoin, RoomID: roomID, Role: RoleSender, client: c}

	// Use a follow-up event as a barrier to know the join was
	// consumed, then assert it left no state behind.
	barrier := NewClient("barrier", hub, nil)
	hub.Register <- barrier
	hub.Inbound <- &Message{Type: TypeJoin, RoomID: roomID, Role: RoleReceiver, client: barrier}
	waitFor(t, "barrier client joined", func() bool {
		_, _, ok := hub.conns.Lookup("barrier")
		return ok
	})

	if got := hub.Rooms.SenderOf(roomID); got != "" {
		t.Errorf("dropped join still installed a sender: %q", got)
	}
}
