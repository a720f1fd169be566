package event

import (
	"encoding/json"
	"time"

	"github.com/Stevy64/Kongossa/internal/model"
)

// Chat event types - client to server
const (
	TypeChatMessage = "chat_message"
	TypeTyping      = "typing"
	TypeStopTyping  = "stop_typing"
)

// Chat event types - server to client
const (
	TypeUserTyping        = "user_typing"
	TypeUserStoppedTyping = "user_stopped_typing"
	TypeMessageRead       = "message_read"
)

// ChatInbound is a client-to-server chat frame. It is decoded exactly once
// at the socket boundary; dispatch is by Type only.
type ChatInbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// DecodeChat parses an inbound chat frame.
func DecodeChat(data []byte) (*ChatInbound, error) {
	var in ChatInbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

type chatMessageFrame struct {
	Type    string            `json:"type"`
	Message model.MessageView `json:"message"`
}

type userTypingFrame struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

type messageReadFrame struct {
	Type      string    `json:"type"`
	MessageID string    `json:"messageId"`
	ReadAt    time.Time `json:"readAt"`
}

// ChatMessageFrame builds the outbound frame for a persisted message.
func ChatMessageFrame(view model.MessageView) []byte {
	frame, _ := json.Marshal(chatMessageFrame{Type: TypeChatMessage, Message: view})
	return frame
}

// UserTypingFrame builds the ephemeral typing indicator frame.
func UserTypingFrame(userID, username string) []byte {
	frame, _ := json.Marshal(userTypingFrame{Type: TypeUserTyping, UserID: userID, Username: username})
	return frame
}

// UserStoppedTypingFrame builds the ephemeral stop-typing frame.
func UserStoppedTypingFrame(userID string) []byte {
	frame, _ := json.Marshal(userTypingFrame{Type: TypeUserStoppedTyping, UserID: userID})
	return frame
}

// MessageReadFrame builds the read-receipt frame broadcast to the room.
func MessageReadFrame(messageID string, readAt time.Time) []byte {
	frame, _ := json.Marshal(messageReadFrame{Type: TypeMessageRead, MessageID: messageID, ReadAt: readAt})
	return frame
}
