package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Stevy64/Kongossa/internal/db"
	"github.com/Stevy64/Kongossa/internal/event"
	"github.com/Stevy64/Kongossa/internal/model"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyMessage    = errors.New("message requires text or an attachment")
	ErrInvalidID       = errors.New("invalid identifier")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Retry configuration
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second

	// History page size served to clients
	messagePageSize = 15
)

type messageRepository struct {
	repo          *db.Repository[model.Message]
	conversations ConversationRepository
	bus           *event.Bus
	logger        *zap.Logger
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, conversationID string, sender model.User, content string, att *model.Attachment) (*model.Message, error)
	GetByID(ctx context.Context, messageID string) (*model.Message, error)
	MarkRead(ctx context.Context, messageID, readerID string) (*model.Message, error)
	MarkAllUnreadFromOther(ctx context.Context, conversationID, readerID string) (int64, error)
	ListPage(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error)
	ListAfter(ctx context.Context, conversationID, afterID string) ([]model.Message, error)
	CountUnread(ctx context.Context, conversationID, readerID string) (int64, error)
}

func NewMessageRepository(repo *db.Repository[model.Message], conversations ConversationRepository, bus *event.Bus, logger *zap.Logger) MessageRepository {
	return &messageRepository{
		repo:          repo,
		conversations: conversations,
		bus:           bus,
		logger:        logger,
	}
}

// -----------------------------------------------------------------------------
// CreateMessage
// -----------------------------------------------------------------------------

// CreateMessage persists a message and bumps the conversation's updated_at.
// No authorization check happens here: the gateway established membership at
// connect time and the HTTP layer checks before calling in. Listeners on the
// bus are invoked only after the insert succeeded.
func (m *messageRepository) CreateMessage(ctx context.Context, conversationID string, sender model.User, content string, att *model.Attachment) (*model.Message, error) {
	if content == "" && att == nil {
		return nil, ErrEmptyMessage
	}

	conv, err := m.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	msg := model.Message{
		ID:             primitive.NewObjectID(),
		ConversationID: conv.ID,
		SenderID:       sender.UserID,
		Sender:         sender.Username,
		SenderAvatar:   sender.AvatarURL,
		Content:        content,
		Attachment:     att,
		CreatedAt:      time.Now().UTC(),
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
			m.logger.Warn("retrying message insert",
				zap.String("conversation_id", conversationID),
				zap.Int("attempt", attempt+1),
			)
		}

		_, err := m.repo.Create(ctx, msg)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}
	if lastErr != nil {
		m.logger.Error("failed to insert message",
			zap.String("conversation_id", conversationID),
			zap.Error(lastErr),
		)
		return nil, fmt.Errorf("insert message: %w", lastErr)
	}

	if err := m.conversations.Touch(ctx, conversationID, msg.CreatedAt); err != nil {
		// The message itself is durable; a missed activity bump only affects
		// sidebar ordering until the next message.
		m.logger.Warn("failed to touch conversation",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}

	m.logger.Info("message inserted",
		zap.String("message_id", msg.ID.Hex()),
		zap.String("conversation_id", conversationID),
		zap.String("sender_id", sender.UserID),
	)

	m.bus.MessagePersisted(ctx, msg, *conv)
	return &msg, nil
}

// -----------------------------------------------------------------------------
// Read state
// -----------------------------------------------------------------------------

func (m *messageRepository) GetByID(ctx context.Context, messageID string) (*model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.repo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		if _, hexErr := objectID(messageID); hexErr != nil {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	return msg, nil
}

// MarkRead sets read_at on the message if it is still unread. Idempotent:
// a second call finds read_at already set and returns the message unchanged,
// so a timestamp can never move backward.
func (m *messageRepository) MarkRead(ctx context.Context, messageID, readerID string) (*model.Message, error) {
	oid, err := objectID(messageID)
	if err != nil {
		return nil, ErrMessageNotFound
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("_id", oid).Null("read_at").Build()
	update := bson.M{"$set": bson.M{"read_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	msg, err := m.repo.FindOneAndUpdate(ctx, filter, update, opts)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Either the message does not exist or it is already read.
			return m.GetByID(ctx, messageID)
		}
		m.logger.Error("failed to mark message read",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("mark read: %w", err)
	}

	if conv, convErr := m.conversations.GetByID(ctx, msg.ConversationID.Hex()); convErr == nil {
		m.bus.MessageRead(ctx, *msg, *conv, readerID)
	} else {
		m.logger.Warn("read event dropped, conversation gone",
			zap.String("message_id", messageID),
			zap.Error(convErr),
		)
	}
	return msg, nil
}

// MarkAllUnreadFromOther bulk-reads every unread message authored by the
// other participant. A single UpdateMany keeps the sweep atomic with respect
// to concurrent sends: a message is either matched or it is not.
func (m *messageRepository) MarkAllUnreadFromOther(ctx context.Context, conversationID, readerID string) (int64, error) {
	conv, err := m.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("conversation_id", conv.ID).
		Ne("sender_id", readerID).
		Null("read_at").
		Build()
	res, err := m.repo.UpdateMany(ctx, filter, bson.M{"read_at": time.Now().UTC()})
	if err != nil {
		m.logger.Error("failed to bulk mark read",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return 0, fmt.Errorf("bulk mark read: %w", err)
	}

	if res.ModifiedCount > 0 {
		m.bus.ConversationRead(ctx, *conv, readerID)
	}
	return res.ModifiedCount, nil
}

func (m *messageRepository) CountUnread(ctx context.Context, conversationID, readerID string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		ObjectID("conversation_id", conversationID).
		Ne("sender_id", readerID).
		Null("read_at").
		Build()
	return m.repo.Count(ctx, filter)
}

// -----------------------------------------------------------------------------
// History
// -----------------------------------------------------------------------------

func (m *messageRepository) ListPage(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	if conversationID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("conversation_id", conversationID).Build()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
		}

		result, err := m.repo.FindWithPagination(ctx, filter, db.PaginationParams{
			Page:     page,
			PageSize: messagePageSize,
			SortBy:   "created_at",
			SortDesc: false,
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	m.logger.Error("failed to list messages",
		zap.String("conversation_id", conversationID),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("list messages: %w", lastErr)
}

// ListAfter returns messages newer than afterID, oldest first. This backs the
// degraded-mode polling endpoint for clients without a socket.
func (m *messageRepository) ListAfter(ctx context.Context, conversationID, afterID string) ([]model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	f := db.NewFilter().ObjectID("conversation_id", conversationID)
	if afterID != "" {
		if oid, err := objectID(afterID); err == nil {
			f.Gt("_id", oid)
		}
	}
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	return m.repo.FindAll(ctx, f.Build(), opts)
}

// -----------------------------------------------------------------------------
// Package helpers
// -----------------------------------------------------------------------------

func objectID(id string) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(id)
}

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}
