package hub

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Stevy64/Kongossa/internal/event"
)

func callTestServer(t *testing.T, reg Registry, access AccessChecker, conversationID string) *httptest.Server {
	t.Helper()
	rl := NewCallRelay(reg, testUsers, access, nil, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rl.ServeWS(w, r, conversationID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCallRejectsUnknownToken(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	srv := callTestServer(t, reg, memberAccess{"alice": true}, "conv1")

	conn := dialWS(t, srv, "tok-nobody")
	expectClose(t, conn, CloseUnauthenticated)
}

func TestCallRejectsNonParticipant(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	srv := callTestServer(t, reg, memberAccess{"bob": true}, "conv1")

	conn := dialWS(t, srv, "tok-alice")
	expectClose(t, conn, CloseForbidden)
}

func TestCallAccessCheckFailureIsInternalError(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	srv := callTestServer(t, reg, failingAccess{}, "conv1")

	conn := dialWS(t, srv, "tok-alice")
	expectClose(t, conn, CloseInternalError)
}

func TestCallOfferSuppressedForSender(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	convID := primitive.NewObjectID().Hex()
	srv := callTestServer(t, reg, memberAccess{"alice": true, "bob": true}, convID)

	alice := dialWS(t, srv, "tok-alice")
	bob := dialWS(t, srv, "tok-bob")
	waitForRoomSize(t, reg, CallRoom(convID), 2)

	if err := alice.WriteJSON(map[string]any{"type": "call-offer", "offer": map[string]string{"sdp": "v=0"}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readFrame(t, bob)
	if frame["type"] != event.TypeCallOffer {
		t.Fatalf("type = %v, want %s", frame["type"], event.TypeCallOffer)
	}
	if frame["fromUserId"] != "alice" || frame["fromUsername"] != "Alice" {
		t.Fatalf("unexpected sender identity: %v", frame)
	}
	offer, _ := frame["offer"].(map[string]any)
	if offer["sdp"] != "v=0" {
		t.Fatalf("offer payload not relayed verbatim: %v", frame["offer"])
	}

	// Bob ends the call. Call-end reaches everyone, so the first frame alice
	// sees must be that end: her own offer never came back.
	if err := bob.WriteJSON(map[string]string{"type": "call-end"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame = readFrame(t, alice)
	if frame["type"] != event.TypeCallEnd {
		t.Fatalf("first frame for alice = %v, want %s (offer must not echo)", frame["type"], event.TypeCallEnd)
	}
}

func TestCallEndDeliveredToSenderToo(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	convID := primitive.NewObjectID().Hex()
	srv := callTestServer(t, reg, memberAccess{"alice": true, "bob": true}, convID)

	alice := dialWS(t, srv, "tok-alice")
	bob := dialWS(t, srv, "tok-bob")
	waitForRoomSize(t, reg, CallRoom(convID), 2)

	if err := alice.WriteJSON(map[string]string{"type": "call-end"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, conn := range []*websocket.Conn{alice, bob} {
		frame := readFrame(t, conn)
		if frame["type"] != event.TypeCallEnd || frame["fromUserId"] != "alice" {
			t.Fatalf("unexpected call-end frame: %v", frame)
		}
	}
}

func TestCallCandidateRelayedWithSender(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	convID := primitive.NewObjectID().Hex()
	srv := callTestServer(t, reg, memberAccess{"alice": true, "bob": true}, convID)

	alice := dialWS(t, srv, "tok-alice")
	bob := dialWS(t, srv, "tok-bob")
	waitForRoomSize(t, reg, CallRoom(convID), 2)

	if err := alice.WriteJSON(map[string]any{"type": "call-ice-candidate", "candidate": map[string]any{"sdpMid": "0"}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readFrame(t, bob)
	if frame["type"] != event.TypeCallCandidate || frame["fromUserId"] != "alice" {
		t.Fatalf("unexpected candidate frame: %v", frame)
	}
}

func TestCallMalformedFrameClosesConnection(t *testing.T) {
	reg := NewMemoryRegistry(zap.NewNop())
	convID := primitive.NewObjectID().Hex()
	srv := callTestServer(t, reg, memberAccess{"alice": true}, convID)

	alice := dialWS(t, srv, "tok-alice")
	waitForRoomSize(t, reg, CallRoom(convID), 1)

	if err := alice.WriteMessage(websocket.TextMessage, []byte("{broken")); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitForRoomSize(t, reg, CallRoom(convID), 0)
}
