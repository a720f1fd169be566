package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Stevy64/Kongossa/internal/event"
	"github.com/Stevy64/Kongossa/internal/hub"
	"github.com/Stevy64/Kongossa/internal/model"
	"github.com/Stevy64/Kongossa/internal/repo"
	"github.com/Stevy64/Kongossa/internal/service"
)

// ChatHandler serves the HTTP side of direct chat: starting conversations,
// sending with attachments, read marking, history and the polling fallback.
// Messages created here are structurally identical to socket-created ones
// and fan out through the same registry broadcast path.
type ChatHandler struct {
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	users         repo.UserRepository
	registry      hub.Registry
	logger        *zap.Logger
}

func NewChatHandler(conversations repo.ConversationRepository, messages repo.MessageRepository, users repo.UserRepository, registry hub.Registry, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		conversations: conversations,
		messages:      messages,
		users:         users,
		registry:      registry,
		logger:        logger,
	}
}

// StartConversation finds or creates the conversation with another user.
func (h *ChatHandler) StartConversation(c *gin.Context) {
	user := currentUser(c)

	other, err := h.users.GetByUserID(c.Request.Context(), c.Param("userId"))
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}

	conv, err := h.conversations.StartConversation(c.Request.Context(), *user, *other)
	if err != nil {
		if errors.Is(err, repo.ErrSelfConversation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// Sidebar lists the user's conversations, most recently active first, with
// per-conversation unread counts.
func (h *ChatHandler) Sidebar(c *gin.Context) {
	user := currentUser(c)

	convs, err := h.conversations.ListForUser(c.Request.Context(), user.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}

	type entry struct {
		Conversation model.Conversation `json:"conversation"`
		Other        *model.Participant `json:"other,omitempty"`
		UnreadCount  int64              `json:"unreadCount"`
	}
	entries := make([]entry, 0, len(convs))
	for _, conv := range convs {
		e := entry{Conversation: conv}
		if other, ok := conv.OtherParticipant(user.UserID); ok {
			e.Other = &other
		}
		if count, err := h.messages.CountUnread(c.Request.Context(), conv.ID.Hex(), user.UserID); err == nil {
			e.UnreadCount = count
		}
		entries = append(entries, e)
	}

	c.JSON(http.StatusOK, gin.H{"conversations": entries})
}

type sendMessageRequest struct {
	Content               string `json:"content"`
	AttachmentURL         string `json:"attachmentUrl"`
	AttachmentFilename    string `json:"attachmentFilename"`
	AttachmentContentType string `json:"attachmentContentType"`
}

// SendMessage is the attachment-capable send endpoint. The attachment kind
// is classified from the declared MIME type before the store is called.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	user := currentUser(c)
	conversationID := c.Param("conversationId")

	if !h.requireParticipant(c, conversationID, user.UserID) {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	att := service.ClassifyAttachment(req.AttachmentURL, req.AttachmentFilename, req.AttachmentContentType)
	msg, err := h.messages.CreateMessage(c.Request.Context(), conversationID, *user, strings.TrimSpace(req.Content), att)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "message requires text or an attachment"})
		case errors.Is(err, repo.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		default:
			h.logger.Error("http send failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		}
		return
	}

	view := msg.View()
	h.registry.Broadcast(hub.ChatRoom(conversationID), event.ChatMessageFrame(view))

	c.JSON(http.StatusCreated, gin.H{"message": view})
}

// History returns a page of the conversation's messages, oldest first.
func (h *ChatHandler) History(c *gin.Context) {
	user := currentUser(c)
	conversationID := c.Param("conversationId")

	if !h.requireParticipant(c, conversationID, user.UserID) {
		return
	}

	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page number"})
		return
	}

	result, err := h.messages.ListPage(c.Request.Context(), conversationID, page)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":   messageViews(result.Data),
		"page":       result.Page,
		"totalPages": result.TotalPages,
		"total":      result.Total,
	})
}

// NewMessages is the degraded-mode polling endpoint for clients without a
// socket: everything newer than the given message ID, oldest first.
func (h *ChatHandler) NewMessages(c *gin.Context) {
	user := currentUser(c)
	conversationID := c.Param("conversationId")

	if !h.requireParticipant(c, conversationID, user.UserID) {
		return
	}

	msgs, err := h.messages.ListAfter(c.Request.Context(), conversationID, c.Query("after"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messageViews(msgs)})
}

// OpenConversation marks everything from the other participant as read,
// mirroring what happens when the reader opens the conversation view.
func (h *ChatHandler) OpenConversation(c *gin.Context) {
	user := currentUser(c)
	conversationID := c.Param("conversationId")

	if !h.requireParticipant(c, conversationID, user.UserID) {
		return
	}

	updated, err := h.messages.MarkAllUnreadFromOther(c.Request.Context(), conversationID, user.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// MarkMessageRead sets the read receipt on one message and announces it to
// the room. Reading your own message is a no-op.
func (h *ChatHandler) MarkMessageRead(c *gin.Context) {
	user := currentUser(c)
	messageID := c.Param("messageId")

	msg, err := h.messages.GetByID(c.Request.Context(), messageID)
	if err != nil {
		if errors.Is(err, repo.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load message"})
		return
	}

	conversationID := msg.ConversationID.Hex()
	if !h.requireParticipant(c, conversationID, user.UserID) {
		return
	}

	if msg.SenderID == user.UserID {
		c.JSON(http.StatusOK, gin.H{"message": msg.View()})
		return
	}

	updated, err := h.messages.MarkRead(c.Request.Context(), messageID, user.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark message read"})
		return
	}

	if updated.ReadAt != nil {
		h.registry.Broadcast(hub.ChatRoom(conversationID), event.MessageReadFrame(updated.ID.Hex(), *updated.ReadAt))
	}

	c.JSON(http.StatusOK, gin.H{"message": updated.View()})
}

// requireParticipant writes the refusal response itself and reports whether
// the caller may proceed.
func (h *ChatHandler) requireParticipant(c *gin.Context, conversationID, userID string) bool {
	ok, err := h.conversations.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check access"})
		return false
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return false
	}
	return true
}

func messageViews(msgs []model.Message) []model.MessageView {
	views := make([]model.MessageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, msgs[i].View())
	}
	return views
}
