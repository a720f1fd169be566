package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Stevy64/Kongossa/internal/repo"
)

// GroupHandler serves group messaging and access requests. Group fanout is
// notification-based; groups have no socket room of their own.
type GroupHandler struct {
	groups repo.GroupRepository
	logger *zap.Logger
}

func NewGroupHandler(groups repo.GroupRepository, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{
		groups: groups,
		logger: logger,
	}
}

type postGroupMessageRequest struct {
	Content string `json:"content"`
}

// PostMessage appends a message to the group; members only.
func (h *GroupHandler) PostMessage(c *gin.Context) {
	user := currentUser(c)
	groupID := c.Param("groupId")

	var req postGroupMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	msg, err := h.groups.CreateMessage(c.Request.Context(), groupID, *user, strings.TrimSpace(req.Content))
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrGroupNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		case errors.Is(err, repo.ErrNotMember):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
		case errors.Is(err, repo.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "message requires text"})
		default:
			h.logger.Error("group post failed", zap.String("group_id", groupID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to post message"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// ListMessages returns a page of the group's messages; members only.
func (h *GroupHandler) ListMessages(c *gin.Context) {
	user := currentUser(c)
	groupID := c.Param("groupId")

	grp, err := h.groups.GetByID(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, repo.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return
	}
	if !grp.MemberOf(user.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
		return
	}

	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page number"})
		return
	}

	result, err := h.groups.ListMessages(c.Request.Context(), groupID, page)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":   result.Data,
		"page":       result.Page,
		"totalPages": result.TotalPages,
		"total":      result.Total,
	})
}

// CreateRequest records an access request for the group.
func (h *GroupHandler) CreateRequest(c *gin.Context) {
	user := currentUser(c)
	groupID := c.Param("groupId")

	req, err := h.groups.CreateRequest(c.Request.Context(), groupID, *user)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrGroupNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		case errors.Is(err, repo.ErrAlreadyMember):
			c.JSON(http.StatusConflict, gin.H{"error": "already a member"})
		default:
			h.logger.Error("group request failed", zap.String("group_id", groupID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create request"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"request": req})
}

type resolveRequestBody struct {
	Approve bool `json:"approve"`
}

// ResolveRequest approves or rejects a pending request; creator only.
func (h *GroupHandler) ResolveRequest(c *gin.Context) {
	user := currentUser(c)
	requestID := c.Param("requestId")

	var body resolveRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req, err := h.groups.ResolveRequest(c.Request.Context(), requestID, user.UserID, body.Approve)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrRequestNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		case errors.Is(err, repo.ErrNotCreator):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the group creator may resolve requests"})
		case errors.Is(err, repo.ErrRequestResolved):
			c.JSON(http.StatusConflict, gin.H{"error": "request already resolved"})
		default:
			h.logger.Error("request resolution failed", zap.String("request_id", requestID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve request"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": req})
}
