package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types. Closed enumeration; unread rows are collapsed per
// (user, type, related user, related URL) tuple.
const (
	NotifMessage              = "message"
	NotifGroupMessage         = "group_message"
	NotifGroupRequest         = "group_request"
	NotifGroupRequestApproved = "group_request_approved"
	NotifGroupRequestRejected = "group_request_rejected"
	NotifGroupActivity        = "group_activity"
	NotifPostLike             = "post_like"
	NotifPostComment          = "post_comment"
	NotifTopicUpdate          = "topic_update"
)

// Notification is an in-app notification for a user. For a given
// (user, type, related user, related URL) tuple there is at most one unread
// document at any time; a repeated event refreshes that document in place.
type Notification struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID        string             `json:"userId" bson:"user_id"`
	Type          string             `json:"type" bson:"type"`
	Title         string             `json:"title" bson:"title"`
	Message       string             `json:"message" bson:"message"`
	IsRead        bool               `json:"isRead" bson:"is_read"`
	RelatedUserID string             `json:"relatedUserId,omitempty" bson:"related_user_id,omitempty"`
	RelatedURL    string             `json:"relatedUrl,omitempty" bson:"related_url,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"created_at"`
}
