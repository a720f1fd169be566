package hub

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// tuning parameters
	writeWait      = 10 * time.Second    // time allowed to write a message to the peer
	pongWait       = 60 * time.Second    // time allowed to read the next pong message from the peer
	pingInterval   = (pongWait * 9) / 10 // send pings to peer with this period
	maxMessageSize = 64 * 1024           // max inbound message size (64KB)
	sendBufSize    = 256                 // per-connection outbound buffer size
	sendTimeout    = 2 * time.Second     // timeout for enqueuing outbound frames
)

// Client is one live WebSocket connection belonging to a user. A user may
// hold several clients at once (tabs, devices); room membership is tracked
// per client, delivery suppression per user.
type Client struct {
	ID       string
	UserID   string
	Username string

	conn   *websocket.Conn
	egress chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	logger *zap.Logger
}

func NewClient(userID, username string, conn *websocket.Conn, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:       uuid.New().String(),
		UserID:   userID,
		Username: username,
		conn:     conn,
		egress:   make(chan []byte, sendBufSize),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
}

// readPump reads inbound frames and hands each to handle, one at a time.
// Handling runs inline on this goroutine: the next frame from this
// connection is not read until the previous one is fully processed, which
// is what preserves per-sender ordering. A non-nil error from handle tears
// the connection down. Blocks until the connection dies.
func (c *Client) readPump(handle func(data []byte) error) {
	defer c.Close()

	c.conn.SetReadLimit(int64(maxMessageSize))
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				c.logger.Debug("client disconnected", zap.String("client_id", c.ID))
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				c.logger.Debug("client timed out", zap.String("client_id", c.ID))
				return
			}
			c.logger.Debug("read error",
				zap.String("client_id", c.ID),
				zap.Error(err),
			)
			return
		}

		if err := handle(data); err != nil {
			c.logger.Warn("closing connection on handler error",
				zap.String("client_id", c.ID),
				zap.Error(err),
			)
			return
		}
	}
}

// writePump drains the egress buffer onto the socket and keeps the
// connection alive with pings. Exactly one writePump runs per client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
			return
		case frame := <-c.egress:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("write error",
					zap.String("client_id", c.ID),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Send enqueues a frame for delivery. Returns false if the client is closed
// or too slow; a full egress buffer disconnects the client so one stuck
// reader cannot hold broadcast memory forever.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- frame:
		return true
	case <-time.After(sendTimeout):
		c.logger.Warn("egress full, disconnecting client", zap.String("client_id", c.ID))
		c.Close()
		return false
	}
}

// Close tears the connection down. Safe to call from any goroutine, any
// number of times.
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

// closeWithCode rejects a connection that never became a Client: write the
// close frame with the given application code, then drop the socket.
func closeWithCode(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}
