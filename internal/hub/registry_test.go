package hub

import (
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func newTestClient(userID string) *Client {
	return NewClient(userID, "user-"+userID, nil, zap.NewNop())
}

func drainOne(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case frame := <-c.egress:
		return frame
	default:
		t.Fatalf("expected a frame for client %s, egress empty", c.ID)
		return nil
	}
}

func TestBroadcastReachesAllMembers(t *testing.T) {
	r := NewMemoryRegistry(zap.NewNop())
	a := newTestClient("alice")
	b := newTestClient("bob")
	r.Join("room1", a)
	r.Join("room1", b)

	r.Broadcast("room1", []byte("hello"))

	if got := string(drainOne(t, a)); got != "hello" {
		t.Errorf("alice got %q", got)
	}
	if got := string(drainOne(t, b)); got != "hello" {
		t.Errorf("bob got %q", got)
	}
}

func TestBroadcastScopedToRoom(t *testing.T) {
	r := NewMemoryRegistry(zap.NewNop())
	a := newTestClient("alice")
	b := newTestClient("bob")
	r.Join("room1", a)
	r.Join("room2", b)

	r.Broadcast("room1", []byte("hello"))

	drainOne(t, a)
	select {
	case frame := <-b.egress:
		t.Errorf("bob in another room received %q", frame)
	default:
	}
}

func TestBroadcastExceptSkipsEveryConnectionOfUser(t *testing.T) {
	r := NewMemoryRegistry(zap.NewNop())
	tab1 := newTestClient("alice")
	tab2 := newTestClient("alice")
	b := newTestClient("bob")
	r.Join("room1", tab1)
	r.Join("room1", tab2)
	r.Join("room1", b)

	r.BroadcastExcept("room1", []byte("offer"), "alice")

	drainOne(t, b)
	for _, c := range []*Client{tab1, tab2} {
		select {
		case frame := <-c.egress:
			t.Errorf("excluded user received %q", frame)
		default:
		}
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	r := NewMemoryRegistry(zap.NewNop())
	a := newTestClient("alice")
	r.Join("room1", a)
	r.Leave("room1", a)

	r.Broadcast("room1", []byte("hello"))

	select {
	case frame := <-a.egress:
		t.Errorf("departed client received %q", frame)
	default:
	}
	if size := r.RoomSize("room1"); size != 0 {
		t.Errorf("RoomSize = %d after last leave, want 0", size)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	r := NewMemoryRegistry(zap.NewNop())
	a := newTestClient("alice")
	r.Join("room1", a)
	r.Join("room1", a)

	if size := r.RoomSize("room1"); size != 1 {
		t.Errorf("RoomSize = %d after double join, want 1", size)
	}

	r.Broadcast("room1", []byte("hello"))
	drainOne(t, a)
	select {
	case <-a.egress:
		t.Error("double join caused double delivery")
	default:
	}
}

func TestStatsCountsRoomsAndClients(t *testing.T) {
	r := NewMemoryRegistry(zap.NewNop())
	a := newTestClient("alice")
	b := newTestClient("bob")
	r.Join("room1", a)
	r.Join("room1", b)
	r.Join("room2", a)

	s := r.Stats()
	if s.Rooms != 2 {
		t.Errorf("Rooms = %d, want 2", s.Rooms)
	}
	if s.Clients != 3 {
		t.Errorf("Clients = %d, want 3", s.Clients)
	}
}

func TestConcurrentJoinLeaveBroadcast(t *testing.T) {
	r := NewMemoryRegistry(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room := fmt.Sprintf("room%d", i%4)
			c := newTestClient(fmt.Sprintf("user%d", i))
			r.Join(room, c)
			r.Broadcast(room, []byte("x"))
			r.Leave(room, c)
		}(i)
	}
	wg.Wait()

	if s := r.Stats(); s.Clients != 0 {
		t.Errorf("Clients = %d after all left, want 0", s.Clients)
	}
}
