package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attachment kinds, decided by the upload collaborator from the declared
// MIME type before the message ever reaches the store.
const (
	AttachmentImage = "image"
	AttachmentVideo = "video"
	AttachmentAudio = "audio"
	AttachmentFile  = "file"
)

// Attachment is a reference to an already-uploaded file. At most one per
// message; Filename is only kept for the generic "file" kind.
type Attachment struct {
	Kind     string `json:"kind" bson:"kind"`
	URL      string `json:"url" bson:"url"`
	Filename string `json:"filename,omitempty" bson:"filename,omitempty"`
}

// Message is a chat message in a direct conversation. Content may be empty
// when an attachment is present. ReadAt is monotonic: once set it is never
// cleared or moved.
type Message struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `json:"conversationId" bson:"conversation_id"`
	SenderID       string             `json:"senderId" bson:"sender_id"`
	Sender         string             `json:"sender" bson:"sender"`
	SenderAvatar   string             `json:"senderAvatarUrl,omitempty" bson:"sender_avatar,omitempty"`
	Content        string             `json:"content" bson:"content"`
	Attachment     *Attachment        `json:"attachment,omitempty" bson:"attachment,omitempty"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
	ReadAt         *time.Time         `json:"readAt" bson:"read_at"`
}

// MessageView is the wire representation broadcast to room members and
// returned by the HTTP API. Socket-created and HTTP-created messages share
// this exact shape.
type MessageView struct {
	ID                 string     `json:"id"`
	Content            string     `json:"content"`
	Sender             string     `json:"sender"`
	SenderID           string     `json:"senderId"`
	SenderAvatarURL    string     `json:"senderAvatarUrl,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	AttachmentURL      string     `json:"attachmentUrl,omitempty"`
	AttachmentKind     string     `json:"attachmentKind,omitempty"`
	AttachmentFilename string     `json:"attachmentFilename,omitempty"`
	ReadAt             *time.Time `json:"readAt"`
}

// View builds the immutable wire snapshot of the message. Broadcast paths
// must use this value, never the live document.
func (m *Message) View() MessageView {
	v := MessageView{
		ID:              m.ID.Hex(),
		Content:         m.Content,
		Sender:          m.Sender,
		SenderID:        m.SenderID,
		SenderAvatarURL: m.SenderAvatar,
		CreatedAt:       m.CreatedAt,
		ReadAt:          m.ReadAt,
	}
	if m.Attachment != nil {
		v.AttachmentURL = m.Attachment.URL
		v.AttachmentKind = m.Attachment.Kind
		v.AttachmentFilename = m.Attachment.Filename
	}
	return v
}
