// Package ws is the websocket transport adapter: it authenticates the
// upgrade, registers the connection and pumps frames between the
// network and the presence engine.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sketchdesk/presence/internal/app"
	"github.com/sketchdesk/presence/internal/core"
)

// Close codes sent before dropping a connection that never registers.
const (
	CloseAuthFailed = 4001
	CloseServerFull = 4002
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Svc        *app.Service
	Auth       core.Authenticator
	ReadLimit  int64
	SendBuffer int
}

func NewController(svc *app.Service, auth core.Authenticator, readLimit int64, sendBuffer int) *Controller {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &Controller{Svc: svc, Auth: auth, ReadLimit: readLimit, SendBuffer: sendBuffer}
}

// wsConn implements core.Conn over a gorilla websocket. Writes go
// through a buffered channel drained by writePump; TrySend never
// blocks the presence engine.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn *websocket.Conn, buffer int) *wsConn {
	return &wsConn{conn: conn, send: make(chan core.Frame, buffer)}
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the ?token= query parameter, upgrades, and
// registers the connection before any frame is routed. Rejections use
// distinguishable close codes so clients can tell "bad token" from
// "server at capacity". ctx is the server lifetime, not the request:
// the pumps outlive the handler.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	token := c.Query("token")
	user, err := ctl.Auth.Verify(token)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Msg("rejected token")
		conn, upErr := upgrader.Upgrade(c.Writer, c.Request, nil)
		if upErr == nil {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(CloseAuthFailed, "authentication failed"))
			_ = conn.Close()
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("upgrade failed")
		return
	}
	if ctl.ReadLimit > 0 {
		conn.SetReadLimit(ctl.ReadLimit)
	}

	wc := newWSConn(conn, ctl.SendBuffer)
	if err := ctl.Svc.Register(user, wc); err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("user", string(user)).Msg("registration rejected")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(CloseServerFull, "server at capacity"))
		_ = conn.Close()
		return
	}

	log.Info().Str("module", "adapters.ws").Str("user", string(user)).Msg("connection established")
	go ctl.writePump(ctx, wc)
	go ctl.readPump(ctx, user, wc)
}
