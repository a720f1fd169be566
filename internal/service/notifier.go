package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Stevy64/Kongossa/internal/event"
	"github.com/Stevy64/Kongossa/internal/model"
)

// NotificationStore is the slice of persistence the notifier needs.
type NotificationStore interface {
	UpsertUnread(ctx context.Context, userID, ntype, relatedUserID, relatedURL, title, message string) (*model.Notification, error)
	ClearMatching(ctx context.Context, userID, ntype, relatedUserID, relatedURL string) (int64, error)
}

// Notifier turns persistence events into notifications. It is subscribed to
// the bus once at container build and runs synchronously on the publishing
// goroutine, so the at-most-one-unread collapse is settled by the time the
// triggering write returns. A notification failure is logged, never
// propagated: it must not fail the message send it decorates.
type Notifier struct {
	store  NotificationStore
	logger *zap.Logger
}

var _ event.Listener = (*Notifier)(nil)

func NewNotifier(store NotificationStore, logger *zap.Logger) *Notifier {
	return &Notifier{
		store:  store,
		logger: logger,
	}
}

func chatURL(conversationID string) string {
	return "/chat/" + conversationID + "/"
}

func groupURL(groupID string) string {
	return "/forum/groups/" + groupID + "/"
}

func manageGroupURL(groupID string) string {
	return "/forum/groups/" + groupID + "/manage/"
}

// MessagePersisted notifies the other participant about a new direct
// message, collapsing into any existing unread row for the same sender and
// conversation.
func (n *Notifier) MessagePersisted(ctx context.Context, msg model.Message, conv model.Conversation) {
	other, ok := conv.OtherParticipant(msg.SenderID)
	if !ok {
		return
	}

	_, err := n.store.UpsertUnread(ctx,
		other.UserID,
		model.NotifMessage,
		msg.SenderID,
		chatURL(conv.ID.Hex()),
		"New message",
		fmt.Sprintf("%s sent you a message", msg.Sender),
	)
	if err != nil {
		n.logger.Error("message notification failed",
			zap.String("recipient", other.UserID),
			zap.String("conversation_id", conv.ID.Hex()),
			zap.Error(err),
		)
	}
}

// MessageRead clears the reader's unread new-message notification for that
// sender and conversation.
func (n *Notifier) MessageRead(ctx context.Context, msg model.Message, conv model.Conversation, readerID string) {
	if readerID == msg.SenderID {
		return
	}
	n.clear(ctx, readerID, model.NotifMessage, msg.SenderID, chatURL(conv.ID.Hex()))
}

// ConversationRead clears the reader's unread new-message notification when
// the whole conversation is swept read on open.
func (n *Notifier) ConversationRead(ctx context.Context, conv model.Conversation, readerID string) {
	other, ok := conv.OtherParticipant(readerID)
	if !ok {
		return
	}
	n.clear(ctx, readerID, model.NotifMessage, other.UserID, chatURL(conv.ID.Hex()))
}

// GroupMessagePersisted notifies every member except the author, each with
// its own independently-collapsed unread row. The per-member loop runs
// synchronously so the collapse invariant holds at publish time.
func (n *Notifier) GroupMessagePersisted(ctx context.Context, msg model.GroupMessage, grp model.Group) {
	body := fmt.Sprintf("%s posted in %q", msg.Sender, grp.Name)
	for _, memberID := range grp.MemberIDs {
		if memberID == msg.SenderID {
			continue
		}
		_, err := n.store.UpsertUnread(ctx,
			memberID,
			model.NotifGroupMessage,
			msg.SenderID,
			groupURL(grp.ID.Hex()),
			"New group message",
			body,
		)
		if err != nil {
			n.logger.Error("group message notification failed",
				zap.String("recipient", memberID),
				zap.String("group_id", grp.ID.Hex()),
				zap.Error(err),
			)
		}
	}
}

// GroupRequestCreated notifies the group creator about a new access request.
func (n *Notifier) GroupRequestCreated(ctx context.Context, req model.GroupRequest, grp model.Group) {
	_, err := n.store.UpsertUnread(ctx,
		grp.CreatorID,
		model.NotifGroupRequest,
		req.UserID,
		manageGroupURL(grp.ID.Hex()),
		"New access request",
		fmt.Sprintf("%s asked to join %q", req.Username, grp.Name),
	)
	if err != nil {
		n.logger.Error("group request notification failed",
			zap.String("recipient", grp.CreatorID),
			zap.String("group_id", grp.ID.Hex()),
			zap.Error(err),
		)
	}
}

// GroupRequestResolved notifies the requester of the outcome and clears the
// creator's now-consumed request notification.
func (n *Notifier) GroupRequestResolved(ctx context.Context, req model.GroupRequest, grp model.Group) {
	ntype := model.NotifGroupRequestRejected
	title := "Access request rejected"
	body := fmt.Sprintf("Your request to join %q was rejected", grp.Name)
	if req.Status == model.RequestApproved {
		ntype = model.NotifGroupRequestApproved
		title = "Access request approved"
		body = fmt.Sprintf("Your request to join %q was approved", grp.Name)
	}

	_, err := n.store.UpsertUnread(ctx,
		req.UserID,
		ntype,
		grp.CreatorID,
		groupURL(grp.ID.Hex()),
		title,
		body,
	)
	if err != nil {
		n.logger.Error("request outcome notification failed",
			zap.String("recipient", req.UserID),
			zap.String("group_id", grp.ID.Hex()),
			zap.Error(err),
		)
	}

	n.clear(ctx, grp.CreatorID, model.NotifGroupRequest, req.UserID, manageGroupURL(grp.ID.Hex()))
}

func (n *Notifier) clear(ctx context.Context, userID, ntype, relatedUserID, relatedURL string) {
	if _, err := n.store.ClearMatching(ctx, userID, ntype, relatedUserID, relatedURL); err != nil {
		n.logger.Error("notification clear failed",
			zap.String("user_id", userID),
			zap.String("type", ntype),
			zap.Error(err),
		)
	}
}
