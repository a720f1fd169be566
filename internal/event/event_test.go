package event

import (
	"encoding/json"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Stevy64/Kongossa/internal/model"
)

func TestDecodeChat(t *testing.T) {
	in, err := DecodeChat([]byte(`{"type":"chat_message","content":"salut"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if in.Type != TypeChatMessage || in.Content != "salut" {
		t.Errorf("got %+v", in)
	}

	if _, err := DecodeChat([]byte(`{"type":`)); err == nil {
		t.Error("malformed frame decoded without error")
	}
}

func TestDecodeCallPassesBlobsThrough(t *testing.T) {
	in, err := DecodeCall([]byte(`{"type":"call-offer","offer":{"sdp":"v=0","type":"offer"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if in.Type != TypeCallOffer {
		t.Errorf("type = %q", in.Type)
	}
	if string(in.Offer) != `{"sdp":"v=0","type":"offer"}` {
		t.Errorf("offer not preserved verbatim: %s", in.Offer)
	}
}

func TestChatMessageFrameShape(t *testing.T) {
	view := model.MessageView{
		ID:       primitive.NewObjectID().Hex(),
		Content:  "salut",
		Sender:   "Alice",
		SenderID: "alice",
	}
	var frame struct {
		Type    string            `json:"type"`
		Message model.MessageView `json:"message"`
	}
	if err := json.Unmarshal(ChatMessageFrame(view), &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.Type != TypeChatMessage {
		t.Errorf("type = %q", frame.Type)
	}
	if frame.Message != view {
		t.Errorf("message = %+v, want %+v", frame.Message, view)
	}
}

func TestCallOfferFrameCarriesSenderIdentity(t *testing.T) {
	offer := json.RawMessage(`{"sdp":"v=0"}`)
	var frame map[string]any
	if err := json.Unmarshal(CallOfferFrame("alice", "Alice", offer), &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame["type"] != TypeCallOffer || frame["fromUserId"] != "alice" || frame["fromUsername"] != "Alice" {
		t.Errorf("got %v", frame)
	}
}

func TestMessageReadFrame(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var frame struct {
		Type      string    `json:"type"`
		MessageID string    `json:"messageId"`
		ReadAt    time.Time `json:"readAt"`
	}
	if err := json.Unmarshal(MessageReadFrame("m1", at), &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.Type != TypeMessageRead || frame.MessageID != "m1" || !frame.ReadAt.Equal(at) {
		t.Errorf("got %+v", frame)
	}
}
