package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sketchdesk/presence/internal/core"
	"github.com/sketchdesk/presence/internal/domain"
)

const writeDeadline = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump processes inbound frames in arrival order for this
// connection. Transport close is the only cancellation signal: the
// deferred unregister cascades into a room leave when applicable.
func (ctl *Controller) readPump(ctx context.Context, user domain.UserID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "adapters.ws").Str("user", string(user)).Msg("readPump closing")
		ctl.Svc.Unregister(c)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.handleFrame(ctx, user, c, data)
		}
	}
}

func (ctl *Controller) sendJSON(c core.Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
