package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Stevy64/Kongossa/internal/db"
	"github.com/Stevy64/Kongossa/internal/model"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrSelfConversation     = errors.New("cannot start a conversation with yourself")
)

type conversationRepository struct {
	repo   *db.Repository[model.Conversation]
	logger *zap.Logger
}

type ConversationRepository interface {
	GetByID(ctx context.Context, conversationID string) (*model.Conversation, error)
	StartConversation(ctx context.Context, a, b model.User) (*model.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]model.Conversation, error)
	Touch(ctx context.Context, conversationID string, at time.Time) error
}

func NewConversationRepository(repo *db.Repository[model.Conversation], logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		repo:   repo,
		logger: logger,
	}
}

// GetByID fetches a conversation by ID. A malformed ID is reported the same
// way as a missing document.
func (r *conversationRepository) GetByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	conv, err := r.repo.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || conversationID == "" {
			return nil, ErrConversationNotFound
		}
		if _, hexErr := objectID(conversationID); hexErr != nil {
			return nil, ErrConversationNotFound
		}
		r.logger.Error("failed to fetch conversation",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	return conv, nil
}

// StartConversation finds or creates the single conversation between two
// users. The participant pair is stored sorted and the lookup-or-create is
// a single upsert, so concurrent first contacts cannot create duplicates.
func (r *conversationRepository) StartConversation(ctx context.Context, a, b model.User) (*model.Conversation, error) {
	if a.UserID == b.UserID {
		return nil, ErrSelfConversation
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	pair := []string{a.UserID, b.UserID}
	sort.Strings(pair)

	participants := []model.Participant{
		{UserID: a.UserID, Username: a.Username, AvatarURL: a.AvatarURL},
		{UserID: b.UserID, Username: b.Username, AvatarURL: b.AvatarURL},
	}
	if pair[0] != a.UserID {
		participants[0], participants[1] = participants[1], participants[0]
	}

	now := time.Now().UTC()
	filter := db.NewFilter().Eq("participant_ids", pair).Build()
	update := bson.M{"$setOnInsert": bson.M{
		"participants": participants,
		"created_at":   now,
		"updated_at":   now,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	conv, err := r.repo.FindOneAndUpdate(ctx, filter, update, opts)
	if err != nil {
		r.logger.Error("failed to start conversation",
			zap.Strings("participants", pair),
			zap.Error(err),
		)
		return nil, fmt.Errorf("start conversation: %w", err)
	}

	r.logger.Debug("conversation resolved",
		zap.String("conversation_id", conv.ID.Hex()),
		zap.Strings("participants", pair),
	)
	return conv, nil
}

// IsParticipant reports whether the user belongs to the conversation.
// An unknown conversation yields (false, nil), matching connect-time
// authorization where a missing room is a refusal, not a server error.
func (r *conversationRepository) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	conv, err := r.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			return false, nil
		}
		return false, err
	}
	return conv.ParticipantOf(userID), nil
}

// ListForUser returns the user's conversations, most recently active first.
func (r *conversationRepository) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("participant_ids", userID).Build()
	opts := options.Find().SetSort(bson.M{"updated_at": -1})
	convs, err := r.repo.FindAll(ctx, filter, opts)
	if err != nil {
		r.logger.Error("failed to list conversations", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// Touch bumps the conversation's updated_at, used on every new message.
func (r *conversationRepository) Touch(ctx context.Context, conversationID string, at time.Time) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := r.repo.UpdateByID(ctx, conversationID, bson.M{"updated_at": at})
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
