package hub

import (
	"crypto/sha1"
	"encoding/binary"
	"sync"

	"go.uber.org/zap"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

// Registry tracks which live connections belong to which room and fans
// frames out to them. It is the sole owner of membership state. Gateways are
// written against this interface only; the in-memory implementation serves
// single-instance deployments, the Redis one multi-instance.
type Registry interface {
	Join(room string, c *Client)
	Leave(room string, c *Client)
	Broadcast(room string, frame []byte)
	// BroadcastExcept delivers to every member except connections of the
	// excluded user identity (all of that user's tabs/devices).
	BroadcastExcept(room string, frame []byte, excludeUserID string)
	Stats() Stats
	Stop()
}

// Stats is a point-in-time view of registry occupancy.
type Stats struct {
	Rooms   int `json:"rooms"`
	Clients int `json:"clients"`
}

type clientBucket struct {
	sync.RWMutex
	rooms map[string]map[string]*Client
}

// MemoryRegistry is the in-process Registry. Rooms are spread over sharded
// buckets so join/leave/broadcast on unrelated rooms never contend.
type MemoryRegistry struct {
	shards [shardCount]*clientBucket
	logger *zap.Logger
}

func NewMemoryRegistry(logger *zap.Logger) *MemoryRegistry {
	r := &MemoryRegistry{logger: logger}
	for i := 0; i < shardCount; i++ {
		r.shards[i] = &clientBucket{
			rooms: make(map[string]map[string]*Client),
		}
	}
	return r
}

func getShard(room string) uint32 {
	if room == "" {
		return 0
	}
	h := sha1.Sum([]byte(room))
	return binary.BigEndian.Uint32(h[:4]) % shardCount
}

// Join adds a connection to a room. Idempotent if already a member.
func (r *MemoryRegistry) Join(room string, c *Client) {
	b := r.shards[getShard(room)]
	b.Lock()
	defer b.Unlock()

	members, ok := b.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		b.rooms[room] = members
	}
	members[c.ID] = c

	r.logger.Debug("client joined room",
		zap.String("client_id", c.ID),
		zap.String("room", room),
	)
}

// Leave removes a connection from a room. A room whose membership becomes
// empty simply ceases to exist until rejoined.
func (r *MemoryRegistry) Leave(room string, c *Client) {
	b := r.shards[getShard(room)]
	b.Lock()
	defer b.Unlock()

	members, ok := b.rooms[room]
	if !ok {
		return
	}
	delete(members, c.ID)
	if len(members) == 0 {
		delete(b.rooms, room)
	}

	r.logger.Debug("client left room",
		zap.String("client_id", c.ID),
		zap.String("room", room),
	)
}

// Broadcast delivers the frame to every current member of the room,
// including the sender's own connections. Delivery to each member is
// independent: a dead connection is skipped, never aborting the loop.
func (r *MemoryRegistry) Broadcast(room string, frame []byte) {
	r.deliver(room, frame, "")
}

func (r *MemoryRegistry) BroadcastExcept(room string, frame []byte, excludeUserID string) {
	r.deliver(room, frame, excludeUserID)
}

func (r *MemoryRegistry) deliver(room string, frame []byte, excludeUserID string) {
	b := r.shards[getShard(room)]

	// snapshot members while holding RLock, deliver without it
	b.RLock()
	members, ok := b.rooms[room]
	if !ok || len(members) == 0 {
		b.RUnlock()
		return
	}
	clients := make([]*Client, 0, len(members))
	for _, c := range members {
		clients = append(clients, c)
	}
	b.RUnlock()

	for _, c := range clients {
		if excludeUserID != "" && c.UserID == excludeUserID {
			continue
		}
		if !c.Send(frame) {
			r.logger.Debug("dropped frame for client",
				zap.String("client_id", c.ID),
				zap.String("room", room),
			)
		}
	}
}

// RoomSize returns the number of connections currently joined to the room.
func (r *MemoryRegistry) RoomSize(room string) int {
	b := r.shards[getShard(room)]
	b.RLock()
	defer b.RUnlock()
	return len(b.rooms[room])
}

func (r *MemoryRegistry) Stats() Stats {
	var s Stats
	for _, b := range r.shards {
		b.RLock()
		s.Rooms += len(b.rooms)
		for _, members := range b.rooms {
			s.Clients += len(members)
		}
		b.RUnlock()
	}
	return s
}

// Stop closes every connection. Membership cleanup happens through the
// normal leave path as each connection's handler unwinds.
func (r *MemoryRegistry) Stop() {
	for _, b := range r.shards {
		b.RLock()
		for _, members := range b.rooms {
			for _, c := range members {
				c.Close()
			}
		}
		b.RUnlock()
	}
}
