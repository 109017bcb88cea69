// Package protocol defines the JSON frames exchanged with clients.
// Every frame is an object with a "type" discriminator.
package protocol

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sketchdesk/presence/internal/domain"
)

// Inbound frame types.
const (
	TypeJoinRoom   = "join-room"
	TypeLeaveRoom  = "leave-room"
	TypeChat       = "chat"
	TypeCursorMove = "cursor-move"
	TypeHealth     = "health"
)

// Outbound frame types.
const (
	TypeRoomJoined = "room-joined"
	TypeRoomLeft   = "room-left"
	TypeRoomClosed = "room-closed"
	TypeUserJoined = "user-joined"
	TypeUserLeft   = "user-left"
	TypeHealthGood = "health-good"
	TypeError      = "error"
)

var ErrMissingType = errors.New("missing message type")

// Envelope carries only the discriminator; payloads are decoded by the
// handler that owns the type.
type Envelope struct {
	Type string `json:"type"`
}

// Decode extracts the discriminator from a raw frame.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type JoinRoom struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

type Chat struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type CursorMove struct {
	Type     string   `json:"type"`
	Position Position `json:"position"`
}

type RoomJoined struct {
	Type      string        `json:"type"`
	RoomID    domain.RoomID `json:"roomId"`
	UserCount int           `json:"userCount"`
}

type RoomLeft struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

type RoomClosed struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	Reason string        `json:"reason"`
}

type UserJoined struct {
	Type      string        `json:"type"`
	UserID    domain.UserID `json:"userId"`
	UserCount int           `json:"userCount"`
}

type UserLeft struct {
	Type      string        `json:"type"`
	UserID    domain.UserID `json:"userId"`
	UserCount int           `json:"userCount"`
}

type ChatOut struct {
	Type      string        `json:"type"`
	RoomID    domain.RoomID `json:"roomId"`
	UserID    domain.UserID `json:"userId"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

type CursorOut struct {
	Type      string        `json:"type"`
	UserID    domain.UserID `json:"userId"`
	Position  Position      `json:"position"`
	Timestamp time.Time     `json:"timestamp"`
}

type HealthGood struct {
	Type string `json:"type"`
}

type Error struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewError(msg string) Error {
	return Error{Type: TypeError, Error: msg}
}
