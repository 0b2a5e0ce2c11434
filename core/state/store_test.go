package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"

	coreerrors "limitlesswork/core/errors"
	"limitlesswork/core/events"
	"limitlesswork/core/types"
	"limitlesswork/crypto"
	"limitlesswork/storage"
)

func newTestAddress(fill byte) crypto.Address {
	var addr crypto.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, crypto.AddressLength))
	return addr
}

func fund(t *testing.T, store *Store, addr crypto.Address, amount uint64) {
	t.Helper()
	if err := store.Update([][]byte{AccountKey(addr)}, func(tx *Tx) error {
		return tx.Credit(addr, amount)
	}); err != nil {
		t.Fatalf("fund %s: %v", addr, err)
	}
}

func balanceOf(t *testing.T, store *Store, addr crypto.Address) uint64 {
	t.Helper()
	var out uint64
	if err := store.View(func(tx *Tx) error {
		var err error
		out, err = tx.Balance(addr)
		return err
	}); err != nil {
		t.Fatalf("balance %s: %v", addr, err)
	}
	return out
}

func TestUpdateCommitsDeclaredWrites(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	alice, bob := newTestAddress(0x01), newTestAddress(0x02)
	fund(t, store, alice, 100)

	err := store.Update([][]byte{AccountKey(alice), AccountKey(bob)}, func(tx *Tx) error {
		return tx.Transfer(alice, bob, 40)
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := balanceOf(t, store, alice); got != 60 {
		t.Fatalf("alice balance = %d, want 60", got)
	}
	if got := balanceOf(t, store, bob); got != 40 {
		t.Fatalf("bob balance = %d, want 40", got)
	}
}

func TestUpdateRejectsUndeclaredWrite(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	alice, bob := newTestAddress(0x01), newTestAddress(0x02)
	fund(t, store, alice, 100)

	err := store.Update([][]byte{AccountKey(alice)}, func(tx *Tx) error {
		return tx.Transfer(alice, bob, 10)
	})
	if !errors.Is(err, coreerrors.ErrUndeclaredKey) {
		t.Fatalf("expected undeclared key error, got %v", err)
	}
	if got := balanceOf(t, store, alice); got != 100 {
		t.Fatalf("failed update leaked a write: balance %d", got)
	}
}

func TestUpdateErrorDiscardsEverything(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	alice, bob := newTestAddress(0x01), newTestAddress(0x02)
	fund(t, store, alice, 100)
	boom := errors.New("boom")

	err := store.Update([][]byte{AccountKey(alice), AccountKey(bob)}, func(tx *Tx) error {
		if err := tx.Transfer(alice, bob, 50); err != nil {
			return err
		}
		// Pending writes are visible inside the transaction.
		if bal, _ := tx.Balance(bob); bal != 50 {
			t.Fatalf("overlay read = %d, want 50", bal)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if balanceOf(t, store, alice) != 100 || balanceOf(t, store, bob) != 0 {
		t.Fatalf("aborted update must leave balances untouched")
	}
}

func TestTransferRefusesOverdraft(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	alice, bob := newTestAddress(0x01), newTestAddress(0x02)
	fund(t, store, alice, 5)
	err := store.Update([][]byte{AccountKey(alice), AccountKey(bob)}, func(tx *Tx) error {
		return tx.Transfer(alice, bob, 6)
	})
	if coreerrors.KindOf(err) != coreerrors.KindFunds {
		t.Fatalf("expected funds error, got %v", err)
	}
}

func TestCreditOverflow(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	alice := newTestAddress(0x01)
	fund(t, store, alice, ^uint64(0))
	err := store.Update([][]byte{AccountKey(alice)}, func(tx *Tx) error {
		return tx.Credit(alice, 1)
	})
	if !errors.Is(err, coreerrors.ErrAmountOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestViewRejectsWrites(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	alice := newTestAddress(0x01)
	err := store.View(func(tx *Tx) error { return tx.Credit(alice, 1) })
	if err == nil {
		t.Fatalf("expected view write to fail")
	}
}

func TestRolesSortedAndDeduplicated(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	a, b := newTestAddress(0x02), newTestAddress(0x01)
	err := store.Update([][]byte{RoleKey(RoleArbitrator)}, func(tx *Tx) error {
		for _, addr := range []crypto.Address{a, b, a} {
			if err := tx.SetRole(RoleArbitrator, addr); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("set role: %v", err)
	}
	_ = store.View(func(tx *Tx) error {
		members, err := tx.RoleMembers(RoleArbitrator)
		if err != nil {
			t.Fatalf("members: %v", err)
		}
		if len(members) != 2 || members[0] != b || members[1] != a {
			t.Fatalf("unexpected members %v", members)
		}
		ok, _ := tx.HasRole(RoleArbitrator, a)
		if !ok {
			t.Fatalf("expected membership")
		}
		ok, _ = tx.HasRole(RoleArbitrator, newTestAddress(0x09))
		if ok {
			t.Fatalf("unexpected membership")
		}
		return nil
	})
}

func TestConcurrentUpdatesSerialisePerRecord(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	alice, bob := newTestAddress(0x01), newTestAddress(0x02)
	fund(t, store, alice, 1000)
	fund(t, store, bob, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		// Opposite declaration orders must not deadlock.
		go func() {
			defer wg.Done()
			_ = store.Update([][]byte{AccountKey(alice), AccountKey(bob)}, func(tx *Tx) error {
				return tx.Transfer(alice, bob, 3)
			})
		}()
		go func() {
			defer wg.Done()
			_ = store.Update([][]byte{AccountKey(bob), AccountKey(alice)}, func(tx *Tx) error {
				return tx.Transfer(bob, alice, 1)
			})
		}()
	}
	wg.Wait()

	if got := balanceOf(t, store, alice) + balanceOf(t, store, bob); got != 2000 {
		t.Fatalf("total supply changed: %d", got)
	}
	if got := balanceOf(t, store, alice); got != 1000-300+100 {
		t.Fatalf("alice balance = %d, want 800", got)
	}
}

func TestConcurrentUpdatesOnSharedRecordCountEveryWriter(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	var counterAddr crypto.RecordAddress
	counterAddr[0] = 0x42
	counterKey := RecordKey(counterAddr)

	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(owner crypto.Address) {
			defer wg.Done()
			err := store.Update([][]byte{AccountKey(owner), counterKey}, func(tx *Tx) error {
				raw, _, err := tx.Get(counterKey)
				if err != nil {
					return err
				}
				var n uint64
				if len(raw) == 8 {
					n = binary.LittleEndian.Uint64(raw)
				}
				if err := tx.Credit(owner, 1); err != nil {
					return err
				}
				return tx.Put(counterKey, binary.LittleEndian.AppendUint64(nil, n+1))
			})
			if err != nil {
				t.Errorf("update: %v", err)
			}
		}(newTestAddress(byte(i + 1)))
	}
	wg.Wait()

	var got uint64
	if err := store.View(func(tx *Tx) error {
		raw, ok, err := tx.Get(counterKey)
		if err != nil || !ok {
			return fmt.Errorf("counter missing: %v", err)
		}
		got = binary.LittleEndian.Uint64(raw)
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if got != writers {
		t.Fatalf("counter = %d, want %d", got, writers)
	}
}

type collecting struct {
	seen []string
}

func (c *collecting) Emit(e events.Event) { c.seen = append(c.seen, e.EventType()) }

func TestEventsPublishedOnlyAfterCommit(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	sink := &collecting{}
	store.SetEmitter(sink)
	alice := newTestAddress(0x01)

	_ = store.Update([][]byte{AccountKey(alice)}, func(tx *Tx) error {
		tx.Emit(events.Wrap(&types.Event{Type: "dropped"}))
		return errors.New("abort")
	})
	if len(sink.seen) != 0 {
		t.Fatalf("aborted update published %v", sink.seen)
	}
	err := store.Update([][]byte{AccountKey(alice)}, func(tx *Tx) error {
		tx.Emit(events.Wrap(&types.Event{Type: "kept"}))
		if len(tx.Events()) != 1 {
			t.Fatalf("expected buffered event")
		}
		return tx.Credit(alice, 1)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(sink.seen) != 1 || sink.seen[0] != "kept" {
		t.Fatalf("unexpected published events %v", sink.seen)
	}
}
