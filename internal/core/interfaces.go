// Package core defines the contracts between the presence engine and
// its collaborators. The engine owns no tokens, no room records and no
// chat history; all of that arrives through these interfaces.
package core

import (
	"context"

	"github.com/sketchdesk/presence/internal/domain"
)

// Frame is a serialized protocol message ready for the wire.
type Frame []byte

// Conn is the transport endpoint for one client session.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	// TrySend queues a frame without blocking. Delivery is best-effort:
	// a full buffer or a closed transport returns an error and the
	// frame is dropped, never retried.
	TrySend(Frame) error
	Close()
}

// Authenticator turns a bearer token into an identity or rejects it.
// Called once per connection, before registration.
type Authenticator interface {
	Verify(token string) (domain.UserID, error)
}

// RoomOracle answers whether a room record exists. Consulted on every
// join attempt; the presence engine never creates or deletes records.
type RoomOracle interface {
	Exists(ctx context.Context, id domain.RoomID) (bool, error)
}

// ChatStore is the durable sink for chat messages. A failed append
// withholds the broadcast so delivered messages are never absent from
// history.
type ChatStore interface {
	Append(ctx context.Context, room domain.RoomID, user domain.UserID, message string) error
}

// Stats is a read-only snapshot for observability.
type Stats struct {
	TotalUsers  int `json:"total_users"`
	TotalRooms  int `json:"total_rooms"`
	ActiveRooms int `json:"active_rooms"`
}

// RoomInfo is a read-only membership view for APIs.
type RoomInfo struct {
	UserCount int             `json:"user_count"`
	Users     []domain.UserID `json:"users"`
}
