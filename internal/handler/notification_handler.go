package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Stevy64/Kongossa/internal/repo"
)

// NotificationHandler serves the in-app notification list and read marking.
type NotificationHandler struct {
	notifications repo.NotificationRepository
	logger        *zap.Logger
}

func NewNotificationHandler(notifications repo.NotificationRepository, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger,
	}
}

// List returns a page of the user's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	user := currentUser(c)

	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page number"})
		return
	}

	result, err := h.notifications.ListForUser(c.Request.Context(), user.UserID, page)
	if err != nil {
		h.logger.Error("notification list failed", zap.String("user_id", user.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}

	unread, err := h.notifications.CountUnread(c.Request.Context(), user.UserID)
	if err != nil {
		unread = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": result.Data,
		"unreadCount":   unread,
		"page":          result.Page,
		"totalPages":    result.TotalPages,
	})
}

// UnreadCount returns just the badge number.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	user := currentUser(c)

	count, err := h.notifications.CountUnread(c.Request.Context(), user.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}

// MarkRead marks one of the user's notifications read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	user := currentUser(c)

	err := h.notifications.MarkRead(c.Request.Context(), c.Param("notificationId"), user.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notification read"})
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead marks every unread notification of the user read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	user := currentUser(c)

	updated, err := h.notifications.MarkAllRead(c.Request.Context(), user.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notifications read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
