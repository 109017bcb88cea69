package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/sketchdesk/presence/internal/domain"
)

var ErrRoomNotFound = errors.New("room record not found")

func roomKey(id domain.RoomID) []byte {
	return []byte("room:" + string(id))
}

// RoomStore owns the durable room records. It implements
// core.RoomOracle for the presence engine and backs the room CRUD
// endpoints.
type RoomStore struct {
	db *badger.DB
}

func NewRoomStore(db *badger.DB) *RoomStore {
	return &RoomStore{db: db}
}

// Create persists a new room record and returns its generated ID.
func (s *RoomStore) Create(name string) (domain.Room, error) {
	name, err := domain.NewRoomName(name)
	if err != nil {
		return domain.Room{}, err
	}
	room := domain.Room{
		ID:        domain.RoomID(uuid.NewString()),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(room)
	if err != nil {
		return domain.Room{}, fmt.Errorf("marshal room: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(room.ID), data)
	})
	if err != nil {
		return domain.Room{}, fmt.Errorf("store room: %w", err)
	}
	return room, nil
}

// Exists answers the presence engine's join-time existence check.
func (s *RoomStore) Exists(_ context.Context, id domain.RoomID) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(roomKey(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("room lookup: %w", err)
	}
	return true, nil
}

// Get retrieves one room record.
func (s *RoomStore) Get(id domain.RoomID) (domain.Room, error) {
	var room domain.Room
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &room)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("load room: %w", err)
	}
	return room, nil
}
