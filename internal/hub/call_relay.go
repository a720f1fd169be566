package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Stevy64/Kongossa/internal/event"
	"github.com/Stevy64/Kongossa/internal/model"
	"github.com/Stevy64/Kongossa/internal/repo"
)

func isUnauthenticated(err error) bool {
	return errors.Is(err, repo.ErrUnauthenticated)
}

// CallRoom names the fanout room for a conversation's signaling channel.
// Chat and call rooms share the conversation ID but never each other's
// membership.
func CallRoom(conversationID string) string {
	return "call_" + conversationID
}

// CallRelay owns the call signaling endpoint. It mirrors the chat gateway's
// connect flow but fails closed: any unexpected error tears the connection
// down, since a half-initialized call room is worse than forcing a
// reconnect. Signaling payloads are relayed verbatim and never persisted.
type CallRelay struct {
	registry Registry
	auth     Authenticator
	access   AccessChecker
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewCallRelay(registry Registry, auth Authenticator, access AccessChecker, allowedOrigins []string, logger *zap.Logger) *CallRelay {
	return &CallRelay{
		registry: registry,
		auth:     auth,
		access:   access,
		upgrader: newUpgrader(allowedOrigins),
		logger:   logger,
	}
}

// ServeWS upgrades the request and runs the signaling connection.
func (rl *CallRelay) ServeWS(w http.ResponseWriter, r *http.Request, conversationID string) {
	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rl.logger.Warn("call upgrade failed", zap.Error(err))
		return
	}

	ctx := context.Background()

	user, err := rl.auth.Authenticate(ctx, TokenFromRequest(r))
	if err != nil {
		if isUnauthenticated(err) {
			closeWithCode(conn, CloseUnauthenticated, "unauthenticated")
		} else {
			closeWithCode(conn, CloseInternalError, "internal error")
		}
		return
	}

	ok, err := rl.access.IsParticipant(ctx, conversationID, user.UserID)
	if err != nil {
		closeWithCode(conn, CloseInternalError, "internal error")
		return
	}
	if !ok {
		closeWithCode(conn, CloseForbidden, "forbidden")
		return
	}

	room := CallRoom(conversationID)
	client := NewClient(user.UserID, user.Username, conn, rl.logger)
	rl.registry.Join(room, client)
	go client.writePump()

	rl.logger.Info("call client connected",
		zap.String("client_id", client.ID),
		zap.String("user_id", user.UserID),
		zap.String("conversation_id", conversationID),
	)

	client.readPump(func(data []byte) error {
		return rl.handleFrame(room, user, data)
	})

	rl.registry.Leave(room, client)
	rl.logger.Info("call client disconnected",
		zap.String("client_id", client.ID),
		zap.String("user_id", user.UserID),
	)
}

func (rl *CallRelay) handleFrame(room string, user *model.User, data []byte) error {
	in, err := event.DecodeCall(data)
	if err != nil {
		// Fail closed on a signaling channel that cannot be parsed.
		return fmt.Errorf("malformed signaling frame: %w", err)
	}

	switch in.Type {
	case event.TypeCallOffer:
		// The sender never receives its own offer/answer/candidate back,
		// on any of its connections.
		rl.registry.BroadcastExcept(room, event.CallOfferFrame(user.UserID, user.Username, in.Offer), user.UserID)
	case event.TypeCallAnswer:
		rl.registry.BroadcastExcept(room, event.CallAnswerFrame(user.UserID, in.Answer), user.UserID)
	case event.TypeCallCandidate:
		rl.registry.BroadcastExcept(room, event.CallCandidateFrame(user.UserID, in.Candidate), user.UserID)
	case event.TypeCallEnd:
		// Authoritative terminal signal: every member acknowledges it,
		// the originator included.
		rl.registry.Broadcast(room, event.CallEndFrame(user.UserID))
	default:
		rl.logger.Warn("unknown call event type ignored",
			zap.String("type", in.Type),
			zap.String("user_id", user.UserID),
		)
	}
	return nil
}
