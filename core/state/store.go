package state

import (
	"errors"
	"fmt"

	"limitlesswork/core/events"
	"limitlesswork/storage"
)

// Store is the ledger state. Every mutation runs through Update, which locks
// the declared records, buffers writes and commits them as one batch.
type Store struct {
	db      storage.Database
	locks   lockTable
	emitter events.Emitter
}

// NewStore wraps the provided database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db, emitter: events.NoopEmitter{}}
}

// SetEmitter configures where committed events are published. Passing nil
// discards them.
func (s *Store) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

// Database exposes the backing store.
func (s *Store) Database() storage.Database { return s.db }

// Update runs fn with exclusive access to keys. Writes outside keys fail the
// operation. When fn returns an error nothing is written and buffered events
// are dropped; otherwise they are published after the commit.
func (s *Store) Update(keys [][]byte, fn func(*Tx) error) error {
	if s == nil || s.db == nil {
		return errors.New("state: store not configured")
	}
	release := s.locks.acquire(keys)
	defer release()

	tx := newTx(s, keys, false)
	if err := fn(tx); err != nil {
		return err
	}
	if err := s.db.Write(tx.batch()); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	tx.events.Flush(s.emitter)
	return nil
}

// View runs fn against committed state. The transaction rejects writes.
func (s *Store) View(fn func(*Tx) error) error {
	if s == nil || s.db == nil {
		return errors.New("state: store not configured")
	}
	return fn(newTx(s, nil, true))
}

func (s *Store) get(logical []byte) ([]byte, bool, error) {
	value, err := s.db.Get(storageKey(logical))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}
