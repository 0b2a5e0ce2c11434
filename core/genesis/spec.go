package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"limitlesswork/core/state"
	"limitlesswork/crypto"
)

// GenesisSpec seeds a fresh ledger with balances and role members.
type GenesisSpec struct {
	ChainID *uint64             `json:"chainId,omitempty"`
	Alloc   map[string]string   `json:"alloc"` // addr -> balance
	Roles   map[string][]string `json:"roles"` // role -> []addr

	balances []Allocation
	members  map[string][]crypto.Address
}

// Allocation is one validated opening balance.
type Allocation struct {
	Address crypto.Address
	Balance uint64
}

var knownRoles = map[string]struct{}{state.RoleArbitrator: {}}

// LoadGenesisSpec reads and validates a JSON genesis file.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates raw JSON. Unknown fields are
// rejected.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

// New validates an in-memory genesis description, such as one assembled from
// node configuration.
func New(chainID *uint64, alloc map[string]string, roles map[string][]string) (*GenesisSpec, error) {
	spec := &GenesisSpec{ChainID: chainID, Alloc: alloc, Roles: roles}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return spec, nil
}

// Balances returns the opening balances sorted by address.
func (s *GenesisSpec) Balances() []Allocation { return append([]Allocation(nil), s.balances...) }

// Members returns the validated members of role, sorted.
func (s *GenesisSpec) Members(role string) []crypto.Address {
	return append([]crypto.Address(nil), s.members[role]...)
}

// RoleNames lists the assigned roles, sorted.
func (s *GenesisSpec) RoleNames() []string {
	names := make([]string, 0, len(s.members))
	for name := range s.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *GenesisSpec) validate() error {
	s.balances = s.balances[:0]
	for text, amount := range s.Alloc {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(text))
		if err != nil {
			return fmt.Errorf("alloc %q: %w", text, err)
		}
		balance, err := strconv.ParseUint(strings.TrimSpace(amount), 10, 64)
		if err != nil {
			return fmt.Errorf("alloc %q: invalid balance %q", text, amount)
		}
		s.balances = append(s.balances, Allocation{Address: addr, Balance: balance})
	}
	sort.Slice(s.balances, func(i, j int) bool { return s.balances[i].Address.Less(s.balances[j].Address) })
	for i := 1; i < len(s.balances); i++ {
		if s.balances[i].Address == s.balances[i-1].Address {
			return fmt.Errorf("alloc: duplicate address %s", s.balances[i].Address)
		}
	}

	s.members = make(map[string][]crypto.Address, len(s.Roles))
	for role, addrs := range s.Roles {
		name := strings.TrimSpace(role)
		if _, ok := knownRoles[name]; !ok {
			return fmt.Errorf("roles: unknown role %q", role)
		}
		seen := make(map[crypto.Address]struct{}, len(addrs))
		for i, text := range addrs {
			addr, err := crypto.DecodeAddress(strings.TrimSpace(text))
			if err != nil {
				return fmt.Errorf("roles[%s][%d]: %w", name, i, err)
			}
			if _, dup := seen[addr]; dup {
				continue
			}
			seen[addr] = struct{}{}
			s.members[name] = append(s.members[name], addr)
		}
		sort.Slice(s.members[name], func(i, j int) bool { return s.members[name][i].Less(s.members[name][j]) })
	}
	return nil
}
