package app

import (
	"time"

	"github.com/sketchdesk/presence/internal/core"
	"github.com/sketchdesk/presence/internal/domain"
)

// Connection binds an identity to its live transport session.
// A connection belongs to at most one room at any instant; an empty
// Room means the connection is idle.
type Connection struct {
	User         domain.UserID
	Conn         core.Conn
	Room         domain.RoomID
	ConnectedAt  time.Time
	LastActivity time.Time
}

// registry is the bidirectional identity<->transport mapping. It holds
// no lock of its own: the Service serializes all access so the mirror
// with the room directory can never be observed half-updated.
type registry struct {
	limit  int
	byUser map[domain.UserID]*Connection
	byConn map[core.Conn]*Connection
}

func newRegistry(limit int) *registry {
	return &registry{
		limit:  limit,
		byUser: make(map[domain.UserID]*Connection),
		byConn: make(map[core.Conn]*Connection),
	}
}

func (r *registry) full() bool {
	return len(r.byUser) >= r.limit
}

func (r *registry) add(user domain.UserID, conn core.Conn, now time.Time) *Connection {
	c := &Connection{
		User:         user,
		Conn:         conn,
		ConnectedAt:  now,
		LastActivity: now,
	}
	r.byUser[user] = c
	r.byConn[conn] = c
	return c
}

func (r *registry) remove(c *Connection) {
	delete(r.byUser, c.User)
	delete(r.byConn, c.Conn)
}

func (r *registry) byIdentity(user domain.UserID) (*Connection, bool) {
	c, ok := r.byUser[user]
	return c, ok
}

func (r *registry) byHandle(conn core.Conn) (*Connection, bool) {
	c, ok := r.byConn[conn]
	return c, ok
}

func (r *registry) size() int {
	return len(r.byUser)
}
