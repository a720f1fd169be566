package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Stevy64/Kongossa/internal/db"
	"github.com/Stevy64/Kongossa/internal/event"
	"github.com/Stevy64/Kongossa/internal/model"
)

var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrNotMember       = errors.New("user is not a group member")
	ErrNotCreator      = errors.New("only the group creator may do this")
	ErrAlreadyMember   = errors.New("user is already a group member")
	ErrRequestNotFound = errors.New("group request not found")
	ErrRequestResolved = errors.New("group request already resolved")
)

type groupRepository struct {
	groups   *db.Repository[model.Group]
	messages *db.Repository[model.GroupMessage]
	requests *db.Repository[model.GroupRequest]
	bus      *event.Bus
	logger   *zap.Logger
}

type GroupRepository interface {
	GetByID(ctx context.Context, groupID string) (*model.Group, error)
	CreateMessage(ctx context.Context, groupID string, sender model.User, content string) (*model.GroupMessage, error)
	ListMessages(ctx context.Context, groupID string, page int64) (*db.PaginatedResult[model.GroupMessage], error)
	CreateRequest(ctx context.Context, groupID string, user model.User) (*model.GroupRequest, error)
	ResolveRequest(ctx context.Context, requestID, actorID string, approve bool) (*model.GroupRequest, error)
}

func NewGroupRepository(groups *db.Repository[model.Group], messages *db.Repository[model.GroupMessage], requests *db.Repository[model.GroupRequest], bus *event.Bus, logger *zap.Logger) GroupRepository {
	return &groupRepository{
		groups:   groups,
		messages: messages,
		requests: requests,
		bus:      bus,
		logger:   logger,
	}
}

func (r *groupRepository) GetByID(ctx context.Context, groupID string) (*model.Group, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	grp, err := r.groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrGroupNotFound
		}
		if _, hexErr := objectID(groupID); hexErr != nil {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("fetch group: %w", err)
	}
	return grp, nil
}

// CreateMessage persists a group message. Group messages carry no read
// receipt; read tracking exists only for direct conversations.
func (r *groupRepository) CreateMessage(ctx context.Context, groupID string, sender model.User, content string) (*model.GroupMessage, error) {
	if content == "" {
		return nil, ErrEmptyMessage
	}

	grp, err := r.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !grp.MemberOf(sender.UserID) {
		return nil, ErrNotMember
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	msg := model.GroupMessage{
		ID:        primitive.NewObjectID(),
		GroupID:   grp.ID,
		SenderID:  sender.UserID,
		Sender:    sender.Username,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.messages.Create(ctx, msg); err != nil {
		r.logger.Error("failed to insert group message",
			zap.String("group_id", groupID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("insert group message: %w", err)
	}

	if _, err := r.groups.UpdateByID(ctx, groupID, bson.M{"updated_at": msg.CreatedAt}); err != nil {
		r.logger.Warn("failed to touch group", zap.String("group_id", groupID), zap.Error(err))
	}

	r.bus.GroupMessagePersisted(ctx, msg, *grp)
	return &msg, nil
}

func (r *groupRepository) ListMessages(ctx context.Context, groupID string, page int64) (*db.PaginatedResult[model.GroupMessage], error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("group_id", groupID).Build()
	return r.messages.FindWithPagination(ctx, filter, db.PaginationParams{
		Page:     page,
		PageSize: messagePageSize,
		SortBy:   "created_at",
		SortDesc: false,
	})
}

// CreateRequest records a pending access request. If the user already has a
// pending request the existing one is returned and no event is published.
func (r *groupRepository) CreateRequest(ctx context.Context, groupID string, user model.User) (*model.GroupRequest, error) {
	grp, err := r.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if grp.MemberOf(user.UserID) {
		return nil, ErrAlreadyMember
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	pending := db.NewFilter().
		Eq("group_id", grp.ID).
		Eq("user_id", user.UserID).
		Eq("status", model.RequestPending).
		Build()
	if existing, err := r.requests.FindOne(ctx, pending); err == nil {
		return existing, nil
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("check pending request: %w", err)
	}

	req := model.GroupRequest{
		ID:        primitive.NewObjectID(),
		GroupID:   grp.ID,
		UserID:    user.UserID,
		Username:  user.Username,
		Status:    model.RequestPending,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.requests.Create(ctx, req); err != nil {
		r.logger.Error("failed to insert group request",
			zap.String("group_id", groupID),
			zap.String("user_id", user.UserID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("insert group request: %w", err)
	}

	r.bus.GroupRequestCreated(ctx, req, *grp)
	return &req, nil
}

// ResolveRequest approves or rejects a pending request. Only the group
// creator may resolve; approval also adds the requester to the member set.
func (r *groupRepository) ResolveRequest(ctx context.Context, requestID, actorID string, approve bool) (*model.GroupRequest, error) {
	oid, err := objectID(requestID)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	req, err := r.requests.FindOne(ctx, db.NewFilter().Eq("_id", oid).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("fetch group request: %w", err)
	}

	grp, err := r.GetByID(ctx, req.GroupID.Hex())
	if err != nil {
		return nil, err
	}
	if grp.CreatorID != actorID {
		return nil, ErrNotCreator
	}
	if req.Status != model.RequestPending {
		return nil, ErrRequestResolved
	}

	status := model.RequestRejected
	if approve {
		status = model.RequestApproved
	}
	now := time.Now().UTC()
	if _, err := r.requests.Update(ctx, db.NewFilter().Eq("_id", oid).Build(), bson.M{
		"status":      status,
		"resolved_at": now,
	}); err != nil {
		return nil, fmt.Errorf("resolve group request: %w", err)
	}
	req.Status = status
	req.ResolvedAt = &now

	if approve {
		filter := db.NewFilter().Eq("_id", grp.ID).Build()
		if _, err := r.groups.UpdateRaw(ctx, filter, bson.M{
			"$addToSet": bson.M{"member_ids": req.UserID},
			"$set":      bson.M{"updated_at": now},
		}); err != nil {
			r.logger.Error("failed to add approved member",
				zap.String("group_id", grp.ID.Hex()),
				zap.String("user_id", req.UserID),
				zap.Error(err),
			)
			return nil, fmt.Errorf("add group member: %w", err)
		}
	}

	r.bus.GroupRequestResolved(ctx, *req, *grp)
	return req, nil
}
