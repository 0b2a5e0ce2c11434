package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Namespace tags for derived record addresses. Changing any of them moves
// every existing record of that type.
const (
	TagProfile  = "user-profile"
	TagUsername = "username"
	TagListing  = "listing"
	TagEscrow   = "escrow"
	TagVault    = "escrow-vault"
	TagDispute  = "dispute"
)

// RecordAddress locates a persisted record. It is derived, never assigned.
type RecordAddress [32]byte

// IsZero reports whether the address is unset.
func (a RecordAddress) IsZero() bool { return a == RecordAddress{} }

// Hex returns the 0x-prefixed hexadecimal form.
func (a RecordAddress) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a RecordAddress) String() string { return a.Hex() }

// ParseRecordAddress decodes a 32-byte hex record address.
func ParseRecordAddress(s string) (RecordAddress, error) {
	var out RecordAddress
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid record address: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("record address must be %d bytes, got %d", len(out), len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// DeriveAddress computes keccak256(tag ‖ parts...). Only the final part may
// vary in length for the result to stay unambiguous; every caller in this
// module follows that rule.
func DeriveAddress(tag string, parts ...[]byte) RecordAddress {
	inputs := make([][]byte, 0, len(parts)+1)
	inputs = append(inputs, []byte(tag))
	inputs = append(inputs, parts...)
	return RecordAddress(crypto.Keccak256Hash(inputs...))
}

// DeriveAccount returns the ledger account owned by a derived address: the
// low 20 bytes of DeriveAddress.
func DeriveAccount(tag string, parts ...[]byte) Address {
	full := DeriveAddress(tag, parts...)
	var addr Address
	copy(addr[:], full[12:])
	return addr
}
