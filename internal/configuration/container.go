package configuration

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Stevy64/Kongossa/internal/db"
	"github.com/Stevy64/Kongossa/internal/event"
	"github.com/Stevy64/Kongossa/internal/handler"
	"github.com/Stevy64/Kongossa/internal/hub"
	"github.com/Stevy64/Kongossa/internal/model"
	"github.com/Stevy64/Kongossa/internal/repo"
	"github.com/Stevy64/Kongossa/internal/service"
)

type Container struct {
	ChatHandler         *handler.ChatHandler
	GroupHandler        *handler.GroupHandler
	NotificationHandler *handler.NotificationHandler
	MonitorHandler      handler.MonitorHandler
	AuthMiddleware      gin.HandlerFunc
	ChatGateway         *hub.ChatGateway
	CallRelay           *hub.CallRelay
	Registry            hub.Registry
	Config              Config
	Logger              *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
	redisClient *redis.Client
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	con, err := db.OpenConnection(config.ChatDatabase.Uri, config.ChatDatabase.Database)
	if err != nil {
		return nil, err
	}

	usersColl := db.NewRepository[model.User](con, config.ChatDatabase.UsersCollection)
	sessionsColl := db.NewRepository[model.Session](con, config.ChatDatabase.SessionsCollection)
	conversationsColl := db.NewRepository[model.Conversation](con, config.ChatDatabase.ConversationsCollection)
	messagesColl := db.NewRepository[model.Message](con, config.ChatDatabase.MessagesCollection)
	notificationsColl := db.NewRepository[model.Notification](con, config.ChatDatabase.NotificationsCollection)
	groupsColl := db.NewRepository[model.Group](con, config.ChatDatabase.GroupsCollection)
	groupMessagesColl := db.NewRepository[model.GroupMessage](con, config.ChatDatabase.GroupMessagesCollection)
	groupRequestsColl := db.NewRepository[model.GroupRequest](con, config.ChatDatabase.GroupRequestsCollection)

	bus := event.NewBus()

	userRepo := repo.NewUserRepository(usersColl, sessionsColl, logger)
	conversationRepo := repo.NewConversationRepository(conversationsColl, logger)
	messageRepo := repo.NewMessageRepository(messagesColl, conversationRepo, bus, logger)
	notificationRepo := repo.NewNotificationRepository(notificationsColl, logger)
	groupRepo := repo.NewGroupRepository(groupsColl, groupMessagesColl, groupRequestsColl, bus, logger)

	// Notifications ride on persistence events, never on request paths.
	bus.Subscribe(service.NewNotifier(notificationRepo, logger))

	var registry hub.Registry
	var redisClient *redis.Client
	if config.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		registry = hub.NewRedisRegistry(redisClient, logger)
		logger.Info("registry: redis-backed", zap.String("addr", config.Redis.Addr))
	} else {
		registry = hub.NewMemoryRegistry(logger)
		logger.Info("registry: in-memory")
	}

	origins := config.Server.AllowedOrigins
	chatGateway := hub.NewChatGateway(registry, userRepo, conversationRepo, messageRepo, origins, logger)
	callRelay := hub.NewCallRelay(registry, userRepo, conversationRepo, origins, logger)

	return &Container{
		ChatHandler:         handler.NewChatHandler(conversationRepo, messageRepo, userRepo, registry, logger),
		GroupHandler:        handler.NewGroupHandler(groupRepo, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationRepo, logger),
		MonitorHandler:      handler.NewMonitorHandler(registry),
		AuthMiddleware:      handler.AuthRequired(userRepo),
		ChatGateway:         chatGateway,
		CallRelay:           callRelay,
		Registry:            registry,
		Config:              *config,
		Logger:              logger,
		mongoClient:         con,
		redisClient:         redisClient,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the registry first (closes all WebSocket connections)
	if c.Registry != nil {
		c.Registry.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	if c.redisClient != nil {
		_ = c.redisClient.Close()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
