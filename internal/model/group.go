package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group access request statuses.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// Group is a discussion group with a creator and an arbitrary-size member
// set. Unlike direct conversations, group messages carry no read receipt.
type Group struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description" bson:"description"`
	CreatorID   string             `json:"creatorId" bson:"creator_id"`
	MemberIDs   []string           `json:"memberIds" bson:"member_ids"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updated_at"`
}

// MemberOf reports whether the given user is a member of the group.
func (g *Group) MemberOf(userID string) bool {
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// GroupMessage is a message posted in a group.
type GroupMessage struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	GroupID   primitive.ObjectID `json:"groupId" bson:"group_id"`
	SenderID  string             `json:"senderId" bson:"sender_id"`
	Sender    string             `json:"sender" bson:"sender"`
	Content   string             `json:"content" bson:"content"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}

// GroupRequest is a pending/resolved request to join a group.
type GroupRequest struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	GroupID    primitive.ObjectID `json:"groupId" bson:"group_id"`
	UserID     string             `json:"userId" bson:"user_id"`
	Username   string             `json:"username" bson:"username"`
	Status     string             `json:"status" bson:"status"`
	CreatedAt  time.Time          `json:"createdAt" bson:"created_at"`
	ResolvedAt *time.Time         `json:"resolvedAt" bson:"resolved_at"`
}
