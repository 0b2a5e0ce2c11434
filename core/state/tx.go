package state

import (
	"errors"

	coreerrors "limitlesswork/core/errors"
	"limitlesswork/core/events"
	"limitlesswork/storage"
)

var errReadOnly = errors.New("state: write in read-only view")

type pendingWrite struct {
	value   []byte
	deleted bool
}

// Tx is a write-buffering view over the store. Reads observe its own pending
// writes first.
type Tx struct {
	store    *Store
	declared map[string]struct{}
	readOnly bool
	writes   map[string]pendingWrite
	order    []string
	events   events.Buffer
}

func newTx(store *Store, keys [][]byte, readOnly bool) *Tx {
	declared := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		declared[string(key)] = struct{}{}
	}
	return &Tx{
		store:    store,
		declared: declared,
		readOnly: readOnly,
		writes:   make(map[string]pendingWrite),
	}
}

// Get returns the value for a logical key.
func (tx *Tx) Get(key []byte) ([]byte, bool, error) {
	if pending, ok := tx.writes[string(key)]; ok {
		if pending.deleted {
			return nil, false, nil
		}
		return append([]byte(nil), pending.value...), true, nil
	}
	return tx.store.get(key)
}

// Put buffers a write to a declared logical key.
func (tx *Tx) Put(key, value []byte) error {
	if err := tx.checkWritable(key); err != nil {
		return err
	}
	tx.record(string(key), pendingWrite{value: append([]byte(nil), value...)})
	return nil
}

// Delete buffers a removal of a declared logical key.
func (tx *Tx) Delete(key []byte) error {
	if err := tx.checkWritable(key); err != nil {
		return err
	}
	tx.record(string(key), pendingWrite{deleted: true})
	return nil
}

// Declared reports whether key is part of the locked set.
func (tx *Tx) Declared(key []byte) bool {
	_, ok := tx.declared[string(key)]
	return ok
}

func (tx *Tx) checkWritable(key []byte) error {
	if tx.readOnly {
		return errReadOnly
	}
	if !tx.Declared(key) {
		return coreerrors.ErrUndeclaredKey.Withf("%x", key)
	}
	return nil
}

func (tx *Tx) record(key string, w pendingWrite) {
	if _, ok := tx.writes[key]; !ok {
		tx.order = append(tx.order, key)
	}
	tx.writes[key] = w
}

func (tx *Tx) batch() *storage.Batch {
	batch := storage.NewBatch()
	for _, key := range tx.order {
		w := tx.writes[key]
		if w.deleted {
			batch.Delete(storageKey([]byte(key)))
			continue
		}
		batch.Put(storageKey([]byte(key)), w.value)
	}
	return batch
}

// Record returns the raw bytes of a derived-address record.
func (tx *Tx) Record(key []byte) ([]byte, bool, error) { return tx.Get(key) }

// PutRecord stores the raw bytes of a derived-address record.
func (tx *Tx) PutRecord(key, data []byte) error { return tx.Put(key, data) }

// Emit buffers an event until the transaction commits.
func (tx *Tx) Emit(e events.Event) { tx.events.Emit(e) }

// Events returns the events buffered so far.
func (tx *Tx) Events() []events.Event { return tx.events.Events() }
