package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/sketchdesk/presence/internal/app"
	"github.com/sketchdesk/presence/internal/core"
	"github.com/sketchdesk/presence/internal/domain"
	"github.com/sketchdesk/presence/internal/protocol"
)

// handleFrame dispatches one inbound frame. Protocol-level failures
// are answered on the same connection and never tear it down; only
// transport errors close a connection.
func (ctl *Controller) handleFrame(ctx context.Context, user domain.UserID, c core.Conn, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		ctl.sendJSON(c, protocol.NewError("invalid message"))
		return
	}

	switch env.Type {
	case protocol.TypeJoinRoom:
		ctl.handleJoin(ctx, user, c, data)
	case protocol.TypeLeaveRoom:
		ctl.handleLeave(user, c)
	case protocol.TypeChat:
		ctl.handleChat(ctx, user, c, data)
	case protocol.TypeCursorMove:
		ctl.handleCursor(user, data)
	case protocol.TypeHealth:
		ctl.sendJSON(c, protocol.HealthGood{Type: protocol.TypeHealthGood})
	default:
		log.Warn().Str("module", "adapters.ws").Str("type", env.Type).Msg("unknown message type")
		ctl.sendJSON(c, protocol.NewError("unknown message type"))
	}
}

func (ctl *Controller) handleJoin(ctx context.Context, user domain.UserID, c core.Conn, data []byte) {
	var p protocol.JoinRoom
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.sendJSON(c, protocol.NewError("invalid message"))
		return
	}

	if err := ctl.Svc.Join(ctx, p.RoomID, user); err != nil {
		switch {
		case errors.Is(err, app.ErrRoomNotFound):
			ctl.sendJSON(c, protocol.NewError("room not found"))
		case errors.Is(err, app.ErrRoomFull):
			ctl.sendJSON(c, protocol.NewError("room is full"))
		default:
			log.Error().Err(err).Str("module", "adapters.ws").Str("room", string(p.RoomID)).Msg("join failed")
			ctl.sendJSON(c, protocol.NewError("failed to join room"))
		}
		return
	}

	info, _ := ctl.Svc.RoomInfo(p.RoomID)
	ctl.sendJSON(c, protocol.RoomJoined{
		Type:      protocol.TypeRoomJoined,
		RoomID:    p.RoomID,
		UserCount: info.UserCount,
	})
}

func (ctl *Controller) handleLeave(user domain.UserID, c core.Conn) {
	roomID, err := ctl.Svc.Leave(user)
	if err != nil {
		ctl.sendJSON(c, protocol.NewError("not in a room"))
		return
	}
	ctl.sendJSON(c, protocol.RoomLeft{Type: protocol.TypeRoomLeft, RoomID: roomID})
}

func (ctl *Controller) handleChat(ctx context.Context, user domain.UserID, c core.Conn, data []byte) {
	var p protocol.Chat
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendJSON(c, protocol.NewError("invalid message"))
		return
	}

	if _, err := ctl.Svc.Chat(ctx, user, p.Message); err != nil {
		if errors.Is(err, app.ErrNotInRoom) {
			ctl.sendJSON(c, protocol.NewError("not in a room"))
			return
		}
		log.Error().Err(err).Str("module", "adapters.ws").Str("user", string(user)).Msg("chat persist failed")
		ctl.sendJSON(c, protocol.NewError("failed to save message"))
	}
}

// handleCursor never replies: a cursor update from an idle connection
// is dropped on the floor, unlike chat which answers with an error.
func (ctl *Controller) handleCursor(user domain.UserID, data []byte) {
	var p protocol.CursorMove
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	ctl.Svc.Cursor(user, p.Position)
}
