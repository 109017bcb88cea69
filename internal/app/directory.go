package app

import (
	"time"

	"github.com/sketchdesk/presence/internal/domain"
)

// room is the live presence state of one room. Created lazily on the
// first successful join, deleted on the leave that empties it or by
// the idle sweep. The durable room record lives in the room store.
type room struct {
	id           domain.RoomID
	members      map[domain.UserID]*Connection
	createdAt    time.Time
	lastActivity time.Time
}

// directory maps room IDs to live room state. Like the registry it is
// lock-free on its own; the Service owns serialization.
type directory struct {
	rooms map[domain.RoomID]*room
}

func newDirectory() *directory {
	return &directory{rooms: make(map[domain.RoomID]*room)}
}

func (d *directory) get(id domain.RoomID) (*room, bool) {
	r, ok := d.rooms[id]
	return r, ok
}

func (d *directory) getOrCreate(id domain.RoomID, now time.Time) *room {
	if r, ok := d.rooms[id]; ok {
		return r
	}
	r := &room{
		id:           id,
		members:      make(map[domain.UserID]*Connection),
		createdAt:    now,
		lastActivity: now,
	}
	d.rooms[id] = r
	return r
}

func (d *directory) remove(id domain.RoomID) {
	delete(d.rooms, id)
}

func (d *directory) size() int {
	return len(d.rooms)
}
