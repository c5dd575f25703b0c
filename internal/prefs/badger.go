package prefs

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists preferences in a local BadgerDB directory.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadgerStore opens (and if needed creates) the preference database.
func NewBadgerStore(path string, logger *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // BadgerDB's own logger uses a different interface

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}

	return &BadgerStore{db: db, logger: logger}, nil
}

func (s *BadgerStore) Get(key string) (string, bool, error) {
	var value string

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		return item.Value(func(raw []byte) error {
			value = string(raw)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", false, nil
		}

		return "", false, err
	}

	return value, true, nil
}

func (s *BadgerStore) Set(key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
