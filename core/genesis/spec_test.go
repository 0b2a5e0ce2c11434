package genesis

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"limitlesswork/core/state"
	"limitlesswork/crypto"
	"limitlesswork/storage"
)

func testAddress(fill byte) crypto.Address {
	var addr crypto.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, crypto.AddressLength))
	return addr
}

func writeSpec(t *testing.T, spec map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadAndApplyGenesis(t *testing.T) {
	alice, bob, arb := testAddress(0x01), testAddress(0x02), testAddress(0x0A)
	path := writeSpec(t, map[string]any{
		"chainId": 7,
		"alloc":   map[string]string{alice.String(): "1000", bob.String(): "25"},
		"roles":   map[string][]string{state.RoleArbitrator: {arb.String(), arb.String()}},
	})
	spec, err := LoadGenesisSpec(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if spec.ChainID == nil || *spec.ChainID != 7 {
		t.Fatalf("chain id not parsed")
	}
	if got := spec.Members(state.RoleArbitrator); len(got) != 1 || got[0] != arb {
		t.Fatalf("arbitrators = %v", got)
	}

	store := state.NewStore(storage.NewMemDB())
	applied, err := Apply(store, spec)
	if err != nil || !applied {
		t.Fatalf("apply: %v %v", applied, err)
	}
	applied, err = Apply(store, spec)
	if err != nil || applied {
		t.Fatalf("second apply must be a no-op: %v %v", applied, err)
	}
	_ = store.View(func(tx *state.Tx) error {
		if bal, _ := tx.Balance(alice); bal != 1000 {
			t.Fatalf("alice balance = %d", bal)
		}
		if bal, _ := tx.Balance(bob); bal != 25 {
			t.Fatalf("bob balance = %d", bal)
		}
		if ok, _ := tx.HasRole(state.RoleArbitrator, arb); !ok {
			t.Fatalf("arbitrator role missing")
		}
		return nil
	})
}

func TestParseGenesisSpecRejectsBadInput(t *testing.T) {
	alice := testAddress(0x01)
	cases := map[string]string{
		"unknown field": `{"alloc":{},"validators":[]}`,
		"bad address":   `{"alloc":{"btc1xyz":"5"}}`,
		"bad balance":   `{"alloc":{"` + alice.String() + `":"-5"}}`,
		"unknown role":  `{"roles":{"admin":["` + alice.String() + `"]}}`,
	}
	for name, raw := range cases {
		if _, err := ParseGenesisSpec([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
