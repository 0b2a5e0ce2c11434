package state

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"limitlesswork/crypto"
)

// RoleArbitrator may resolve disputes.
const RoleArbitrator = "arbitrator"

// RoleMembers returns all addresses assigned to the provided role.
func (tx *Tx) RoleMembers(role string) ([]crypto.Address, error) {
	data, ok, err := tx.Get(RoleKey(role))
	if err != nil {
		return nil, err
	}
	if !ok || len(data) == 0 {
		return []crypto.Address{}, nil
	}
	var raw [][]byte
	if err := rlp.DecodeBytes(data, &raw); err != nil {
		return nil, fmt.Errorf("state: decode role %s: %w", role, err)
	}
	members := make([]crypto.Address, 0, len(raw))
	for _, entry := range raw {
		addr, err := crypto.BytesToAddress(entry)
		if err != nil {
			return nil, err
		}
		members = append(members, addr)
	}
	return members, nil
}

// HasRole reports whether addr holds role.
func (tx *Tx) HasRole(role string, addr crypto.Address) (bool, error) {
	members, err := tx.RoleMembers(role)
	if err != nil {
		return false, err
	}
	for _, member := range members {
		if member == addr {
			return true, nil
		}
	}
	return false, nil
}

// SetRole associates an address with the specified role. Duplicate assignments
// are ignored while the stored list remains sorted for determinism.
func (tx *Tx) SetRole(role string, addr crypto.Address) error {
	if strings.TrimSpace(role) == "" {
		return fmt.Errorf("role must not be empty")
	}
	if addr.IsZero() {
		return fmt.Errorf("address must not be empty")
	}
	members, err := tx.RoleMembers(role)
	if err != nil {
		return err
	}
	for _, member := range members {
		if member == addr {
			return nil
		}
	}
	members = append(members, addr)
	sort.Slice(members, func(i, j int) bool { return bytes.Compare(members[i][:], members[j][:]) < 0 })
	raw := make([][]byte, len(members))
	for i := range members {
		raw[i] = members[i].Bytes()
	}
	encoded, err := rlp.EncodeToBytes(raw)
	if err != nil {
		return err
	}
	return tx.Put(RoleKey(role), encoded)
}
