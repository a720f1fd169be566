package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Stevy64/Kongossa/internal/db"
	"github.com/Stevy64/Kongossa/internal/model"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUserNotFound    = errors.New("user not found")
)

type userRepository struct {
	users    *db.Repository[model.User]
	sessions *db.Repository[model.Session]
	logger   *zap.Logger
}

type UserRepository interface {
	GetByUserID(ctx context.Context, userID string) (*model.User, error)
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

func NewUserRepository(users *db.Repository[model.User], sessions *db.Repository[model.Session], logger *zap.Logger) UserRepository {
	return &userRepository{
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

func (r *userRepository) GetByUserID(ctx context.Context, userID string) (*model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := r.users.FindOne(ctx, db.NewFilter().Eq("user_id", userID).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	return user, nil
}

// Authenticate resolves a session token to its user. Session issuance is the
// identity service's job; an unknown or expired token is simply unauthenticated.
func (r *userRepository) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	session, err := r.sessions.FindOne(ctx, db.NewFilter().Eq("token", token).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	if session.Expired(time.Now().UTC()) {
		return nil, ErrUnauthenticated
	}

	user, err := r.GetByUserID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			r.logger.Warn("session points at missing user", zap.String("user_id", session.UserID))
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}
