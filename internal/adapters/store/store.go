// Package store holds the BadgerDB-backed collaborators: the durable
// room records the oracle answers from, and the chat history sink.
package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Open opens the database at dir, or a throwaway in-memory instance
// when dir is empty (used by tests).
func Open(dir string) (*badger.DB, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}
