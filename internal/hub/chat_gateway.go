package hub

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Stevy64/Kongossa/internal/event"
	"github.com/Stevy64/Kongossa/internal/model"
)

// Application close codes sent when a connection is refused.
const (
	CloseInternalError   = 4000
	CloseUnauthenticated = 4001
	CloseForbidden       = 4003
)

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// AccessChecker answers whether a user may enter a conversation's rooms.
type AccessChecker interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// MessageStore persists chat messages. The gateway trusts it to bump the
// conversation's activity timestamp and to notify persistence listeners.
type MessageStore interface {
	CreateMessage(ctx context.Context, conversationID string, sender model.User, content string, att *model.Attachment) (*model.Message, error)
}

// ChatRoom names the fanout room for a conversation's chat channel.
func ChatRoom(conversationID string) string {
	return "chat_" + conversationID
}

// ChatGateway owns the chat socket endpoint: it authenticates and authorizes
// the connect, joins the room, and dispatches inbound frames. Messages are
// persisted before they are broadcast; a message is never broadcast without
// being durably stored first.
type ChatGateway struct {
	registry Registry
	auth     Authenticator
	access   AccessChecker
	store    MessageStore
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewChatGateway(registry Registry, auth Authenticator, access AccessChecker, store MessageStore, allowedOrigins []string, logger *zap.Logger) *ChatGateway {
	return &ChatGateway{
		registry: registry,
		auth:     auth,
		access:   access,
		store:    store,
		upgrader: newUpgrader(allowedOrigins),
		logger:   logger,
	}
}

// ServeWS upgrades the request and runs the connection to completion.
func (g *ChatGateway) ServeWS(w http.ResponseWriter, r *http.Request, conversationID string) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("chat upgrade failed", zap.Error(err))
		return
	}

	// The handler outlives the request context once hijacked; socket-path
	// store calls carry their own timeouts.
	ctx := context.Background()

	user, err := g.auth.Authenticate(ctx, TokenFromRequest(r))
	if err != nil {
		closeWithCode(conn, CloseUnauthenticated, "unauthenticated")
		return
	}

	ok, err := g.access.IsParticipant(ctx, conversationID, user.UserID)
	if err != nil || !ok {
		// Membership that cannot be established is membership denied.
		closeWithCode(conn, CloseForbidden, "forbidden")
		return
	}

	room := ChatRoom(conversationID)
	client := NewClient(user.UserID, user.Username, conn, g.logger)
	g.registry.Join(room, client)
	go client.writePump()

	g.logger.Info("chat client connected",
		zap.String("client_id", client.ID),
		zap.String("user_id", user.UserID),
		zap.String("conversation_id", conversationID),
	)

	client.readPump(func(data []byte) error {
		g.handleFrame(ctx, conversationID, room, user, data)
		// Malformed or failing chat events never close the connection.
		return nil
	})

	g.registry.Leave(room, client)
	g.logger.Info("chat client disconnected",
		zap.String("client_id", client.ID),
		zap.String("user_id", user.UserID),
	)
}

func (g *ChatGateway) handleFrame(ctx context.Context, conversationID, room string, user *model.User, data []byte) {
	in, err := event.DecodeChat(data)
	if err != nil {
		g.logger.Warn("malformed chat frame ignored",
			zap.String("user_id", user.UserID),
			zap.Error(err),
		)
		return
	}

	switch in.Type {
	case event.TypeChatMessage:
		content := strings.TrimSpace(in.Content)
		if content == "" {
			// Socket frames carry no attachment, so empty text means an
			// empty message. Rejected silently.
			return
		}
		msg, err := g.store.CreateMessage(ctx, conversationID, *user, content, nil)
		if err != nil {
			// The event is dropped but a transient storage failure must not
			// cascade into disconnecting the user.
			g.logger.Error("message not persisted, broadcast aborted",
				zap.String("conversation_id", conversationID),
				zap.String("user_id", user.UserID),
				zap.Error(err),
			)
			return
		}
		// Echo on: the sender's other tabs/devices see the message arrive
		// through the same channel, which doubles as persistence confirmation.
		g.registry.Broadcast(room, event.ChatMessageFrame(msg.View()))

	case event.TypeTyping:
		g.registry.Broadcast(room, event.UserTypingFrame(user.UserID, user.Username))

	case event.TypeStopTyping:
		g.registry.Broadcast(room, event.UserStoppedTypingFrame(user.UserID))

	default:
		g.logger.Warn("unknown chat event type ignored",
			zap.String("type", in.Type),
			zap.String("user_id", user.UserID),
		)
	}
}

// TokenFromRequest extracts the session token: Authorization bearer header
// for HTTP calls, ?token= query for websocket connects (browsers cannot set
// headers on socket upgrades).
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, found := strings.CutPrefix(h, "Bearer "); found {
			return token
		}
	}
	return r.URL.Query().Get("token")
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
}
