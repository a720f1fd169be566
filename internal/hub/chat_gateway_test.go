package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Stevy64/Kongossa/internal/event"
	"github.com/Stevy64/Kongossa/internal/model"
	"github.com/Stevy64/Kongossa/internal/repo"
)

// tokenAuth resolves tokens from a fixed table.
type tokenAuth map[string]*model.User

func (a tokenAuth) Authenticate(_ context.Context, token string) (*model.User, error) {
	u, ok := a[token]
	if !ok {
		return nil, repo.ErrUnauthenticated
	}
	return u, nil
}

// memberAccess allows the listed user ids into every conversation.
type memberAccess map[string]bool

func (m memberAccess) IsParticipant(_ context.Context, _, userID string) (bool, error) {
	return m[userID], nil
}

type failingAccess struct{}

func (failingAccess) IsParticipant(_ context.Context, _, _ string) (bool, error) {
	return false, errors.New("store down")
}

// recordingStore persists into memory, or fails every call when broken.
type recordingStore struct {
	mu       sync.Mutex
	broken   bool
	messages []model.Message
}

func (s *recordingStore) CreateMessage(_ context.Context, conversationID string, sender model.User, content string, att *model.Attachment) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return nil, errors.New("insert failed")
	}
	convID, _ := primitive.ObjectIDFromHex(conversationID)
	msg := model.Message{
		ID:             primitive.NewObjectID(),
		ConversationID: convID,
		SenderID:       sender.UserID,
		Sender:         sender.Username,
		Content:        content,
		Attachment:     att,
		CreatedAt:      time.Now().UTC(),
	}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

var testUsers = tokenAuth{
	"tok-alice": {UserID: "alice", Username: "Alice"},
	"tok-bob":   {UserID: "bob", Username: "Bob"},
}

func chatTestServer(t *testing.T, reg Registry, access AccessChecker, store MessageStore, conversationID string) *httptest.Server {
	t.Helper()
	g := NewChatGateway(reg, testUsers, access, store, nil, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.ServeWS(w, r, conversationID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return frame
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		t.Fatalf("expected close error, got %v", err)
	}
	if ce.Code != code {
		t.Fatalf("close code = %d, want %d", ce.Code, code)
	}
}

func waitForRoomSize(t *testing.T, reg *MemoryRegistry, room string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reg.RoomSize(room) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s never reached size %d", room, want)
}

func TestChatRejectsUnknownToken(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	srv := chatTestServer(t, reg, memberAccess{"alice": true}, &recordingStore{}, "conv1")

	conn := dialWS(t, srv, "tok-nobody")
	expectClose(t, conn, CloseUnauthenticated)
}

func TestChatRejectsNonParticipant(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	srv := chatTestServer(t, reg, memberAccess{"bob": true}, &recordingStore{}, "conv1")

	conn := dialWS(t, srv, "tok-alice")
	expectClose(t, conn, CloseForbidden)
}

func TestChatAccessCheckFailureIsForbidden(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	srv := chatTestServer(t, reg, failingAccess{}, &recordingStore{}, "conv1")

	conn := dialWS(t, srv, "tok-alice")
	expectClose(t, conn, CloseForbidden)
}

func TestChatMessagePersistedThenEchoedToAll(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	store := &recordingStore{}
	convID := primitive.NewObjectID().Hex()
	srv := chatTestServer(t, reg, memberAccess{"alice": true, "bob": true}, store, convID)

	alice := dialWS(t, srv, "tok-alice")
	bob := dialWS(t, srv, "tok-bob")
	waitForRoomSize(t, reg, ChatRoom(convID), 2)

	if err := alice.WriteJSON(map[string]string{"type": "chat_message", "content": "salut"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, conn := range []*websocket.Conn{alice, bob} {
		frame := readFrame(t, conn)
		if frame["type"] != event.TypeChatMessage {
			t.Fatalf("type = %v, want %s", frame["type"], event.TypeChatMessage)
		}
		msg, _ := frame["message"].(map[string]any)
		if msg["content"] != "salut" || msg["senderId"] != "alice" {
			t.Fatalf("unexpected message payload: %v", msg)
		}
		if msg["id"] == "" || msg["id"] == nil {
			t.Fatal("broadcast message carries no persistent id")
		}
	}

	if store.count() != 1 {
		t.Fatalf("store has %d messages, want 1", store.count())
	}
}

func TestChatIgnoresMalformedAndEmptyFrames(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	store := &recordingStore{}
	convID := primitive.NewObjectID().Hex()
	srv := chatTestServer(t, reg, memberAccess{"alice": true}, store, convID)

	alice := dialWS(t, srv, "tok-alice")
	waitForRoomSize(t, reg, ChatRoom(convID), 1)

	if err := alice.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := alice.WriteJSON(map[string]string{"type": "chat_message", "content": "   "}); err != nil {
		t.Fatalf("write: %v", err)
	}
	// A subsequent valid frame proves the connection survived both.
	if err := alice.WriteJSON(map[string]string{"type": "chat_message", "content": "still here"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readFrame(t, alice)
	msg, _ := frame["message"].(map[string]any)
	if msg["content"] != "still here" {
		t.Fatalf("got %v, want the valid message only", msg)
	}
	if store.count() != 1 {
		t.Fatalf("store has %d messages, want 1", store.count())
	}
}

func TestChatStoreFailureDropsEventKeepsConnection(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	store := &recordingStore{broken: true}
	convID := primitive.NewObjectID().Hex()
	srv := chatTestServer(t, reg, memberAccess{"alice": true}, store, convID)

	alice := dialWS(t, srv, "tok-alice")
	waitForRoomSize(t, reg, ChatRoom(convID), 1)

	if err := alice.WriteJSON(map[string]string{"type": "chat_message", "content": "lost"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	// No broadcast for the failed persist; typing still flows.
	if err := alice.WriteJSON(map[string]string{"type": "typing"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readFrame(t, alice)
	if frame["type"] != event.TypeUserTyping {
		t.Fatalf("type = %v, want %s (the unpersisted message must not be broadcast)", frame["type"], event.TypeUserTyping)
	}
}

func TestChatTypingIndicators(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	convID := primitive.NewObjectID().Hex()
	srv := chatTestServer(t, reg, memberAccess{"alice": true, "bob": true}, &recordingStore{}, convID)

	alice := dialWS(t, srv, "tok-alice")
	bob := dialWS(t, srv, "tok-bob")
	waitForRoomSize(t, reg, ChatRoom(convID), 2)

	if err := alice.WriteJSON(map[string]string{"type": "typing"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame := readFrame(t, bob)
	if frame["type"] != event.TypeUserTyping || frame["userId"] != "alice" || frame["username"] != "Alice" {
		t.Fatalf("unexpected typing frame: %v", frame)
	}

	if err := alice.WriteJSON(map[string]string{"type": "stop_typing"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame = readFrame(t, bob)
	if frame["type"] != event.TypeUserStoppedTyping || frame["userId"] != "alice" {
		t.Fatalf("unexpected stop-typing frame: %v", frame)
	}
}

func TestChatLeaveOnDisconnect(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	convID := primitive.NewObjectID().Hex()
	srv := chatTestServer(t, reg, memberAccess{"alice": true}, &recordingStore{}, convID)

	alice := dialWS(t, srv, "tok-alice")
	waitForRoomSize(t, reg, ChatRoom(convID), 1)

	alice.Close()
	waitForRoomSize(t, reg, ChatRoom(convID), 0)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/chat/c1/?token=qtoken", nil)
	if got := TokenFromRequest(r); got != "qtoken" {
		t.Errorf("query token = %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/kg/api/chat/conversations", nil)
	r.Header.Set("Authorization", "Bearer htoken")
	if got := TokenFromRequest(r); got != "htoken" {
		t.Errorf("header token = %q", got)
	}

	// Header wins over query when both are present.
	r = httptest.NewRequest(http.MethodGet, "/ws/chat/c1/?token=qtoken", nil)
	r.Header.Set("Authorization", "Bearer htoken")
	if got := TokenFromRequest(r); got != "htoken" {
		t.Errorf("token precedence = %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws/chat/c1/", nil)
	if got := TokenFromRequest(r); got != "" {
		t.Errorf("missing token = %q", got)
	}
}
