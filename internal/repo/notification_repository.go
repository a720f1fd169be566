package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Stevy64/Kongossa/internal/db"
	"github.com/Stevy64/Kongossa/internal/model"
)

var ErrNotificationNotFound = errors.New("notification not found")

const notificationPageSize = 20

type notificationRepository struct {
	repo   *db.Repository[model.Notification]
	logger *zap.Logger
}

type NotificationRepository interface {
	UpsertUnread(ctx context.Context, userID, ntype, relatedUserID, relatedURL, title, message string) (*model.Notification, error)
	ClearMatching(ctx context.Context, userID, ntype, relatedUserID, relatedURL string) (int64, error)
	ListForUser(ctx context.Context, userID string, page int64) (*db.PaginatedResult[model.Notification], error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
}

func NewNotificationRepository(repo *db.Repository[model.Notification], logger *zap.Logger) NotificationRepository {
	return &notificationRepository{
		repo:   repo,
		logger: logger,
	}
}

// unreadKey is the collapse key: all unread-notification operations address
// documents by this exact quadruple plus is_read=false.
func unreadKey(userID, ntype, relatedUserID, relatedURL string) bson.M {
	return db.NewFilter().
		Eq("user_id", userID).
		Eq("type", ntype).
		Eq("related_user_id", relatedUserID).
		Eq("related_url", relatedURL).
		Eq("is_read", false).
		Build()
}

// UpsertUnread refreshes the unread notification for the key, creating it if
// none exists. A single upsert guarantees at most one unread document per
// (user, type, related user, related URL) tuple even under concurrent sends.
func (r *notificationRepository) UpsertUnread(ctx context.Context, userID, ntype, relatedUserID, relatedURL, title, message string) (*model.Notification, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"title":      title,
		"message":    message,
		"created_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	n, err := r.repo.FindOneAndUpdate(ctx, unreadKey(userID, ntype, relatedUserID, relatedURL), update, opts)
	if err != nil {
		r.logger.Error("failed to upsert notification",
			zap.String("user_id", userID),
			zap.String("type", ntype),
			zap.Error(err),
		)
		return nil, fmt.Errorf("upsert notification: %w", err)
	}

	r.logger.Debug("notification upserted",
		zap.String("notification_id", n.ID.Hex()),
		zap.String("user_id", userID),
		zap.String("type", ntype),
	)
	return n, nil
}

// ClearMatching marks every unread notification for the key as read, used
// when the event the notification describes has been consumed.
func (r *notificationRepository) ClearMatching(ctx context.Context, userID, ntype, relatedUserID, relatedURL string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	res, err := r.repo.UpdateMany(ctx, unreadKey(userID, ntype, relatedUserID, relatedURL), bson.M{"is_read": true})
	if err != nil {
		r.logger.Error("failed to clear notifications",
			zap.String("user_id", userID),
			zap.String("type", ntype),
			zap.Error(err),
		)
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID string, page int64) (*db.PaginatedResult[model.Notification], error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("user_id", userID).Build()
	return r.repo.FindWithPagination(ctx, filter, db.PaginationParams{
		Page:     page,
		PageSize: notificationPageSize,
		SortBy:   "created_at",
		SortDesc: true,
	})
}

func (r *notificationRepository) MarkRead(ctx context.Context, notificationID, userID string) error {
	oid, err := objectID(notificationID)
	if err != nil {
		return ErrNotificationNotFound
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("_id", oid).Eq("user_id", userID).Build()
	res, err := r.repo.Update(ctx, filter, bson.M{"is_read": true})
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("user_id", userID).Eq("is_read", false).Build()
	res, err := r.repo.UpdateMany(ctx, filter, bson.M{"is_read": true})
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("user_id", userID).Eq("is_read", false).Build()
	return r.repo.Count(ctx, filter)
}
