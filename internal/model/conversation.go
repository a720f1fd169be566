package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is a direct chat between exactly two users.
// ParticipantIDs is stored sorted so a pair of users maps to a single
// document regardless of who initiated the conversation.
type Conversation struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ParticipantIDs []string           `json:"participantIds" bson:"participant_ids"`
	Participants   []Participant      `json:"participants" bson:"participants"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updated_at"`
}

// Participant is a denormalized user snapshot embedded in a conversation.
type Participant struct {
	UserID    string `json:"userId" bson:"user_id"`
	Username  string `json:"username" bson:"username"`
	AvatarURL string `json:"avatarUrl" bson:"avatar_url"`
}

// ParticipantOf reports whether the given user belongs to the conversation.
func (c *Conversation) ParticipantOf(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not the given user.
// The result is deterministic: a direct conversation has exactly two
// participants, so given one of them the other is fixed.
func (c *Conversation) OtherParticipant(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID != userID {
			return p, true
		}
	}
	return Participant{}, false
}
