// Package store persists rooms, quizzes and questions in an embedded
// badger database. Values are stored as JSON under typed key prefixes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"toohak-backend/internal/config"

	"github.com/dgraph-io/badger/v4"
)

var ErrNotFound = errors.New("not found")

const (
	roomPrefix     = "room:"
	quizPrefix     = "quiz:"
	questionPrefix = "question:"

	// conflictRetries bounds the retries of read-modify-write transactions
	// aborted by a concurrent writer.
	conflictRetries = 5
)

// Store is the badger backed room directory and quiz store.
//
// Multiple goroutines may invoke methods on a Store simultaneously.
type Store struct {
	db *badger.DB
}

// Open opens the database configured in cfg.
func Open(cfg config.DBConf) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return New(db), nil
}

// New wraps an already opened database.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set([]byte(key), data)
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

// update runs fn in a read-write transaction and retries it when badger
// reports a conflict with another transaction.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for range conflictRetries {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		slog.DebugContext(ctx, "badger transaction conflict, retrying")
	}
	return err
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}
