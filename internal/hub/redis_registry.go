package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const roomChannelPrefix = "kongossa:room:"

// brokerFrame wraps a fanout frame on the wire between instances. The
// exclude marker travels with the frame so every instance applies the same
// sender suppression to its own local members.
type brokerFrame struct {
	Room          string          `json:"room"`
	ExcludeUserID string          `json:"excludeUserId,omitempty"`
	Frame         json.RawMessage `json:"frame"`
}

// RedisRegistry is the broker-backed Registry for multi-instance
// deployments. Local membership still lives in a MemoryRegistry; broadcasts
// go through Redis pub/sub so members connected to other instances receive
// them too. Publishes loop back through the subscription, so local delivery
// takes the same path as remote.
type RedisRegistry struct {
	rdb    *redis.Client
	local  *MemoryRegistry
	pubsub *redis.PubSub

	mu   sync.Mutex
	refs map[string]int // room -> local join count

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

func NewRedisRegistry(rdb *redis.Client, logger *zap.Logger) *RedisRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &RedisRegistry{
		rdb:    rdb,
		local:  NewMemoryRegistry(logger),
		refs:   make(map[string]int),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	r.pubsub = rdb.Subscribe(ctx)

	r.wg.Add(1)
	go r.receive()
	return r
}

func (r *RedisRegistry) receive() {
	defer r.wg.Done()
	for msg := range r.pubsub.Channel() {
		var bf brokerFrame
		if err := json.Unmarshal([]byte(msg.Payload), &bf); err != nil {
			r.logger.Warn("malformed broker frame dropped", zap.Error(err))
			continue
		}
		if bf.ExcludeUserID != "" {
			r.local.BroadcastExcept(bf.Room, bf.Frame, bf.ExcludeUserID)
		} else {
			r.local.Broadcast(bf.Room, bf.Frame)
		}
	}
}

func (r *RedisRegistry) Join(room string, c *Client) {
	r.local.Join(room, c)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[room]++
	if r.refs[room] == 1 {
		if err := r.pubsub.Subscribe(r.ctx, roomChannelPrefix+room); err != nil {
			r.logger.Error("room subscribe failed", zap.String("room", room), zap.Error(err))
		}
	}
}

func (r *RedisRegistry) Leave(room string, c *Client) {
	r.local.Leave(room, c)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refs[room] == 0 {
		return
	}
	r.refs[room]--
	if r.refs[room] == 0 {
		delete(r.refs, room)
		if err := r.pubsub.Unsubscribe(r.ctx, roomChannelPrefix+room); err != nil {
			r.logger.Warn("room unsubscribe failed", zap.String("room", room), zap.Error(err))
		}
	}
}

func (r *RedisRegistry) Broadcast(room string, frame []byte) {
	r.publish(room, frame, "")
}

func (r *RedisRegistry) BroadcastExcept(room string, frame []byte, excludeUserID string) {
	r.publish(room, frame, excludeUserID)
}

func (r *RedisRegistry) publish(room string, frame []byte, excludeUserID string) {
	payload, _ := json.Marshal(brokerFrame{
		Room:          room,
		ExcludeUserID: excludeUserID,
		Frame:         frame,
	})
	if err := r.rdb.Publish(r.ctx, roomChannelPrefix+room, payload).Err(); err != nil {
		r.logger.Error("broker publish failed", zap.String("room", room), zap.Error(err))
	}
}

func (r *RedisRegistry) Stats() Stats {
	return r.local.Stats()
}

func (r *RedisRegistry) Stop() {
	r.cancel()
	_ = r.pubsub.Close()
	r.wg.Wait()
	r.local.Stop()
}
