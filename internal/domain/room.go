package domain

import (
	"errors"
	"time"
)

const MaxRoomNameLen = 64

var (
	ErrRoomNameEmpty   = errors.New("room name empty")
	ErrRoomNameTooLong = errors.New("room name too long")
)

type RoomID string

// Room is the durable room record. It is owned by the room store,
// never by the presence core; the core only asks whether an ID exists.
type Room struct {
	ID        RoomID    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func NewRoomName(name string) (string, error) {
	if len(name) == 0 {
		return "", ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLen {
		return "", ErrRoomNameTooLong
	}
	return name, nil
}
