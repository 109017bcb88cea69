// Package app is the presence engine: who is connected, which room
// each connection is in, and fan-out of frames to room members.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/sketchdesk/presence/internal/core"
	"github.com/sketchdesk/presence/internal/domain"
	"github.com/sketchdesk/presence/internal/protocol"
)

const (
	DefaultMaxConnections = 100
	DefaultMaxRoomMembers = 5
)

var (
	ErrServerFull    = errors.New("server at capacity")
	ErrNotRegistered = errors.New("connection not registered")
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrNotInRoom     = errors.New("not in a room")
)

// Service is the single owner of the connection registry and the room
// directory. One mutex guards both structures: the connection<->room
// mirror cannot be kept consistent under independent locks, so every
// multi-step join/leave sequence runs as one critical section. The
// only external calls (room oracle, chat store) happen outside the
// lock so slow collaborators never stall other connections.
type Service struct {
	mu  sync.Mutex
	reg *registry
	dir *directory

	oracle core.RoomOracle
	chat   core.ChatStore

	maxMembers int
	now        func() time.Time
}

func NewService(oracle core.RoomOracle, chat core.ChatStore, maxConns, maxMembers int) *Service {
	if maxConns <= 0 {
		maxConns = DefaultMaxConnections
	}
	if maxMembers <= 0 {
		maxMembers = DefaultMaxRoomMembers
	}
	return &Service{
		reg:        newRegistry(maxConns),
		dir:        newDirectory(),
		oracle:     oracle,
		chat:       chat,
		maxMembers: maxMembers,
		now:        time.Now,
	}
}

// Register inserts a freshly authenticated connection. A second
// connection for the same identity evicts the first: the stale
// transport is closed and its room membership is released before the
// new one takes the slot.
func (s *Service) Register(user domain.UserID, conn core.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.reg.byIdentity(user); ok {
		s.detachLocked(old)
		old.Conn.Close()
		log.Info().Str("module", "app.presence").Str("user", string(user)).Msg("evicted stale connection")
	}

	if s.reg.full() {
		return ErrServerFull
	}
	s.reg.add(user, conn, s.now())
	log.Info().Str("module", "app.presence").Str("user", string(user)).Int("connections", s.reg.size()).Msg("registered")
	return nil
}

// Unregister removes the connection owning the given transport handle.
// If it is in a room the leave protocol runs first, so the mirror
// invariant holds through teardown. Unknown handles are a no-op.
func (s *Service) Unregister(conn core.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.reg.byHandle(conn)
	if !ok {
		return
	}
	s.detachLocked(c)
	log.Info().Str("module", "app.presence").Str("user", string(c.User)).Msg("unregistered")
}

func (s *Service) detachLocked(c *Connection) {
	if c.Room != "" {
		s.leaveLocked(c)
	}
	s.reg.remove(c)
}

// Join moves an identity into a room. The existence check runs against
// the oracle before the lock is taken; everything after it is one
// atomic step. Joining the room you are already in is idempotent
// success and emits no second user-joined.
func (s *Service) Join(ctx context.Context, roomID domain.RoomID, user domain.UserID) error {
	exists, err := s.oracle.Exists(ctx, roomID)
	if err != nil {
		return fmt.Errorf("room lookup: %w", err)
	}
	if !exists {
		return ErrRoomNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.reg.byIdentity(user)
	if !ok {
		return ErrNotRegistered
	}
	now := s.now()

	if c.Room == roomID {
		if r, ok := s.dir.get(roomID); ok {
			r.lastActivity = now
		}
		return nil
	}
	if r, ok := s.dir.get(roomID); ok && len(r.members) >= s.maxMembers {
		return ErrRoomFull
	}
	if c.Room != "" {
		s.leaveLocked(c)
	}

	r := s.dir.getOrCreate(roomID, now)
	r.members[user] = c
	c.Room = roomID
	c.LastActivity = now
	r.lastActivity = now

	s.broadcastLocked(r, protocol.UserJoined{
		Type:      protocol.TypeUserJoined,
		UserID:    user,
		UserCount: len(r.members),
	}, user)

	log.Info().Str("module", "app.presence").Str("user", string(user)).Str("room", string(roomID)).Int("members", len(r.members)).Msg("joined room")
	return nil
}

// Leave removes the identity from its current room and reports which
// room was left. ErrNotInRoom when idle.
func (s *Service) Leave(user domain.UserID) (domain.RoomID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.reg.byIdentity(user)
	if !ok || c.Room == "" {
		return "", ErrNotInRoom
	}
	roomID := c.Room
	s.leaveLocked(c)
	log.Info().Str("module", "app.presence").Str("user", string(user)).Str("room", string(roomID)).Msg("left room")
	return roomID, nil
}

// leaveLocked is the shared removal path used by explicit leaves,
// join-switches and teardown. Empty rooms are pruned here, on the
// leave that empties them, not left for the idle sweep.
func (s *Service) leaveLocked(c *Connection) {
	r, ok := s.dir.get(c.Room)
	if ok {
		delete(r.members, c.User)
		r.lastActivity = s.now()
		s.broadcastLocked(r, protocol.UserLeft{
			Type:      protocol.TypeUserLeft,
			UserID:    c.User,
			UserCount: len(r.members),
		}, "")
		if len(r.members) == 0 {
			s.dir.remove(r.id)
		}
	}
	c.Room = ""
}

// Chat persists the message, then fans it out to the whole room,
// sender included. The append happens outside the lock; when it fails
// the broadcast is withheld so nothing is delivered that is absent
// from history.
func (s *Service) Chat(ctx context.Context, user domain.UserID, message string) (domain.RoomID, error) {
	s.mu.Lock()
	c, ok := s.reg.byIdentity(user)
	if !ok || c.Room == "" {
		s.mu.Unlock()
		return "", ErrNotInRoom
	}
	roomID := c.Room
	s.mu.Unlock()

	if err := s.chat.Append(ctx, roomID, user, message); err != nil {
		return roomID, fmt.Errorf("persist chat: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.dir.get(roomID)
	if !ok {
		// Room was reaped between append and send; history keeps the
		// message, delivery is best-effort anyway.
		return roomID, nil
	}
	s.broadcastLocked(r, protocol.ChatOut{
		Type:      protocol.TypeChat,
		RoomID:    roomID,
		UserID:    user,
		Message:   message,
		Timestamp: s.now(),
	}, "")
	return roomID, nil
}

// Cursor fans a cursor position out to the sender's room, excluding
// the sender. An idle sender is silently ignored: cursor updates are
// fire-and-forget, unlike chat.
func (s *Service) Cursor(user domain.UserID, pos protocol.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.reg.byIdentity(user)
	if !ok || c.Room == "" {
		return
	}
	r, ok := s.dir.get(c.Room)
	if !ok {
		return
	}
	s.broadcastLocked(r, protocol.CursorOut{
		Type:      protocol.TypeCursorMove,
		UserID:    user,
		Position:  pos,
		Timestamp: s.now(),
	}, user)
}

// broadcastLocked serializes once and TrySends to every member except
// the excluded one. Closed or saturated transports are skipped, never
// retried or queued.
func (s *Service) broadcastLocked(r *room, v any, exclude domain.UserID) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Str("room", string(r.id)).Msg("broadcast marshal")
		return
	}
	for uid, c := range r.members {
		if uid == exclude {
			continue
		}
		if err := c.Conn.TrySend(data); err != nil {
			log.Debug().Str("module", "app.presence").Str("user", string(uid)).Msg("dropped frame")
		}
	}
}

// CleanupInactiveRooms deletes every room whose last activity is older
// than threshold, member count notwithstanding. Members still present
// get a room-closed notice and are parked back to idle, so their
// connections never point at a room the directory has forgotten.
func (s *Service) CleanupInactiveRooms(now time.Time, threshold time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	for id, r := range s.dir.rooms {
		if now.Sub(r.lastActivity) <= threshold {
			continue
		}
		s.broadcastLocked(r, protocol.RoomClosed{
			Type:   protocol.TypeRoomClosed,
			RoomID: id,
			Reason: "inactive",
		}, "")
		for _, c := range r.members {
			c.Room = ""
		}
		s.dir.remove(id)
		reaped++
		log.Info().Str("module", "app.presence").Str("room", string(id)).Msg("reaped inactive room")
	}
	return reaped
}

// Stats is a read-only snapshot for observability.
func (s *Service) Stats() core.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := lo.CountBy(lo.Values(s.dir.rooms), func(r *room) bool {
		return len(r.members) > 0
	})
	return core.Stats{
		TotalUsers:  s.reg.size(),
		TotalRooms:  s.dir.size(),
		ActiveRooms: active,
	}
}

// RoomInfo reports the membership of one room.
func (s *Service) RoomInfo(id domain.RoomID) (core.RoomInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.dir.get(id)
	if !ok {
		return core.RoomInfo{}, false
	}
	return core.RoomInfo{
		UserCount: len(r.members),
		Users:     lo.Keys(r.members),
	}, true
}
