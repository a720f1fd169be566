package event

import (
	"context"
	"sync"

	"github.com/Stevy64/Kongossa/internal/model"
)

// Listener observes persistence events. Callbacks run synchronously on the
// goroutine that performed the write, strictly after the write succeeded.
type Listener interface {
	MessagePersisted(ctx context.Context, msg model.Message, conv model.Conversation)
	MessageRead(ctx context.Context, msg model.Message, conv model.Conversation, readerID string)
	ConversationRead(ctx context.Context, conv model.Conversation, readerID string)
	GroupMessagePersisted(ctx context.Context, msg model.GroupMessage, grp model.Group)
	GroupRequestCreated(ctx context.Context, req model.GroupRequest, grp model.Group)
	GroupRequestResolved(ctx context.Context, req model.GroupRequest, grp model.Group)
}

// Bus fans persistence events out to registered listeners. Listeners are
// registered once at process start; there is no hidden auto-discovery.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a listener. Meant to be called during container build,
// before any event is published.
func (b *Bus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *Bus) snapshot() []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Listener, len(b.listeners))
	copy(out, b.listeners)
	return out
}

// MessagePersisted notifies listeners of a newly stored direct message.
func (b *Bus) MessagePersisted(ctx context.Context, msg model.Message, conv model.Conversation) {
	for _, l := range b.snapshot() {
		l.MessagePersisted(ctx, msg, conv)
	}
}

// MessageRead notifies listeners that a single message got read.
func (b *Bus) MessageRead(ctx context.Context, msg model.Message, conv model.Conversation, readerID string) {
	for _, l := range b.snapshot() {
		l.MessageRead(ctx, msg, conv, readerID)
	}
}

// ConversationRead notifies listeners of a bulk read on conversation open.
func (b *Bus) ConversationRead(ctx context.Context, conv model.Conversation, readerID string) {
	for _, l := range b.snapshot() {
		l.ConversationRead(ctx, conv, readerID)
	}
}

// GroupMessagePersisted notifies listeners of a newly stored group message.
func (b *Bus) GroupMessagePersisted(ctx context.Context, msg model.GroupMessage, grp model.Group) {
	for _, l := range b.snapshot() {
		l.GroupMessagePersisted(ctx, msg, grp)
	}
}

// GroupRequestCreated notifies listeners of a new group access request.
func (b *Bus) GroupRequestCreated(ctx context.Context, req model.GroupRequest, grp model.Group) {
	for _, l := range b.snapshot() {
		l.GroupRequestCreated(ctx, req, grp)
	}
}

// GroupRequestResolved notifies listeners of an approved/rejected request.
func (b *Bus) GroupRequestResolved(ctx context.Context, req model.GroupRequest, grp model.Group) {
	for _, l := range b.snapshot() {
		l.GroupRequestResolved(ctx, req, grp)
	}
}
