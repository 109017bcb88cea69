package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/sketchdesk/presence/internal/domain"
)

// Message is one persisted chat entry.
type Message struct {
	ID      uuid.UUID     `json:"id"`
	Room    domain.RoomID `json:"room"`
	User    domain.UserID `json:"user"`
	Content string        `json:"content"`
	At      time.Time     `json:"at"`
}

// ChatLog appends chat messages to BadgerDB. Keys are
// "msg:{room}:{timestamp}:{uuid}": the 19-digit zero-padded nanosecond
// timestamp keeps keys in chronological order under lexicographic
// iteration, and the UUID breaks same-nanosecond collisions.
type ChatLog struct {
	db *badger.DB
}

func NewChatLog(db *badger.DB) *ChatLog {
	return &ChatLog{db: db}
}

func chatPrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", room))
}

// Append implements core.ChatStore.
func (l *ChatLog) Append(_ context.Context, room domain.RoomID, user domain.UserID, content string) error {
	msg := Message{
		ID:      uuid.New(),
		Room:    room,
		User:    user,
		Content: content,
		At:      time.Now().UTC(),
	}
	key := fmt.Sprintf("msg:%s:%019d:%s", room, msg.At.UnixNano(), msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// History returns the most recent messages of a room, newest first,
// capped at limit.
func (l *ChatLog) History(room domain.RoomID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Message
	err := l.db.View(func(txn *badger.Txn) error {
		prefix := chatPrefix(room)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the newest possible key for this room, then walk
		// backwards while the prefix still matches.
		seek := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if len(out) >= limit {
				break
			}
			var msg Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return out, nil
}
