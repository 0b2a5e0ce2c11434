package state

import (
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"limitlesswork/crypto"
)

var (
	accountPrefix = []byte("account:")
	recordPrefix  = []byte("record:")
	rolePrefix    = []byte("role:")
)

func prefixed(prefix []byte, body []byte) []byte {
	buf := make([]byte, len(prefix)+len(body))
	copy(buf, prefix)
	copy(buf[len(prefix):], body)
	return buf
}

// AccountKey is the logical key of an account balance sheet.
func AccountKey(addr crypto.Address) []byte { return prefixed(accountPrefix, addr[:]) }

// RecordKey is the logical key of a derived-address record.
func RecordKey(addr crypto.RecordAddress) []byte { return prefixed(recordPrefix, addr[:]) }

// RoleKey is the logical key of a role membership list.
func RoleKey(role string) []byte { return prefixed(rolePrefix, []byte(strings.TrimSpace(role))) }

// storageKey hashes a logical key before it reaches the database.
func storageKey(logical []byte) []byte { return ethcrypto.Keccak256(logical) }
