package event

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Stevy64/Kongossa/internal/model"
)

type recordingListener struct {
	calls []string
}

func (l *recordingListener) MessagePersisted(_ context.Context, msg model.Message, _ model.Conversation) {
	l.calls = append(l.calls, "persisted:"+msg.Content)
}

func (l *recordingListener) MessageRead(_ context.Context, _ model.Message, _ model.Conversation, readerID string) {
	l.calls = append(l.calls, "read:"+readerID)
}

func (l *recordingListener) ConversationRead(_ context.Context, _ model.Conversation, readerID string) {
	l.calls = append(l.calls, "convread:"+readerID)
}

func (l *recordingListener) GroupMessagePersisted(_ context.Context, msg model.GroupMessage, _ model.Group) {
	l.calls = append(l.calls, "group:"+msg.Content)
}

func (l *recordingListener) GroupRequestCreated(_ context.Context, req model.GroupRequest, _ model.Group) {
	l.calls = append(l.calls, "reqcreated:"+req.UserID)
}

func (l *recordingListener) GroupRequestResolved(_ context.Context, req model.GroupRequest, _ model.Group) {
	l.calls = append(l.calls, "reqresolved:"+req.Status)
}

func TestBusDeliversSynchronously(t *testing.T) {
	bus := NewBus()
	l := &recordingListener{}
	bus.Subscribe(l)

	ctx := context.Background()
	conv := model.Conversation{ID: primitive.NewObjectID()}
	bus.MessagePersisted(ctx, model.Message{Content: "salut"}, conv)
	bus.MessageRead(ctx, model.Message{}, conv, "bob")
	bus.ConversationRead(ctx, conv, "bob")

	// Synchronous publish means the effects are visible right here, without
	// any waiting.
	want := []string{"persisted:salut", "read:bob", "convread:bob"}
	if len(l.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", l.calls, want)
	}
	for i := range want {
		if l.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, l.calls[i], want[i])
		}
	}
}

func TestBusFansOutToAllListeners(t *testing.T) {
	bus := NewBus()
	a := &recordingListener{}
	b := &recordingListener{}
	bus.Subscribe(a)
	bus.Subscribe(b)

	bus.GroupMessagePersisted(context.Background(), model.GroupMessage{Content: "x"}, model.Group{})

	if len(a.calls) != 1 || len(b.calls) != 1 {
		t.Errorf("a=%v b=%v, want one call each", a.calls, b.calls)
	}
}

func TestBusWithNoListeners(t *testing.T) {
	bus := NewBus()
	// Publishing into an empty bus must be a no-op, not a panic.
	bus.MessagePersisted(context.Background(), model.Message{}, model.Conversation{})
}
