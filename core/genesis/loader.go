package genesis

import (
	"fmt"

	"limitlesswork/core/state"
)

var appliedKey = []byte("genesis/applied")

// Apply seeds store from spec exactly once. It reports false when the ledger
// was already initialised and nothing was written.
func Apply(store *state.Store, spec *GenesisSpec) (bool, error) {
	if store == nil || spec == nil {
		return false, fmt.Errorf("genesis: store and spec required")
	}
	keys := [][]byte{appliedKey}
	for _, alloc := range spec.balances {
		keys = append(keys, state.AccountKey(alloc.Address))
	}
	for role := range spec.members {
		keys = append(keys, state.RoleKey(role))
	}

	applied := false
	err := store.Update(keys, func(tx *state.Tx) error {
		if _, done, err := tx.Get(appliedKey); err != nil {
			return err
		} else if done {
			return nil
		}
		for _, alloc := range spec.balances {
			if err := tx.Credit(alloc.Address, alloc.Balance); err != nil {
				return fmt.Errorf("genesis: credit %s: %w", alloc.Address, err)
			}
		}
		for _, role := range spec.RoleNames() {
			for _, member := range spec.members[role] {
				if err := tx.SetRole(role, member); err != nil {
					return fmt.Errorf("genesis: role %s: %w", role, err)
				}
			}
		}
		applied = true
		return tx.Put(appliedKey, []byte{1})
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
