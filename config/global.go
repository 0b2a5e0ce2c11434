package config

import (
	"fmt"
	"path/filepath"
	"strconv"

	"limitlesswork/core/genesis"
	"limitlesswork/core/state"
	"limitlesswork/crypto"
	"limitlesswork/native/common"
)

// FeeCollectorAddress decodes the platform fee account.
func (c *Config) FeeCollectorAddress() (crypto.Address, error) {
	return crypto.DecodeAddress(c.FeeCollector)
}

// StoragePath is the location handed to storage.Open. LevelDB owns the whole
// data directory while bbolt needs a file inside it.
func (c *Config) StoragePath() string {
	if c.Backend == "bolt" {
		return filepath.Join(c.DataDir, "ledger.bolt")
	}
	return c.DataDir
}

// Pauses builds the module pause set.
func (c *Config) Pauses() *common.Pauses {
	return common.NewPauses(c.PausedModules...)
}

// GenesisSpec merges the genesis file, when configured, with the inline
// Genesis accounts and Arbitrators. An address funded in both places is an
// error.
func (c *Config) GenesisSpec() (*genesis.GenesisSpec, error) {
	alloc := map[string]string{}
	roles := map[string][]string{}
	chainID := c.ChainID
	chainIDPtr := &chainID
	if c.GenesisPath != "" {
		base, err := genesis.LoadGenesisSpec(c.GenesisPath)
		if err != nil {
			return nil, err
		}
		if base.ChainID != nil && *base.ChainID != c.ChainID {
			return nil, fmt.Errorf("genesis chain id %d does not match configured %d", *base.ChainID, c.ChainID)
		}
		for _, a := range base.Balances() {
			alloc[a.Address.String()] = strconv.FormatUint(a.Balance, 10)
		}
		for _, role := range base.RoleNames() {
			for _, member := range base.Members(role) {
				roles[role] = append(roles[role], member.String())
			}
		}
	}
	for _, account := range c.Genesis {
		addr, err := crypto.DecodeAddress(account.Address)
		if err != nil {
			return nil, fmt.Errorf("genesis account %q: %w", account.Address, err)
		}
		if _, dup := alloc[addr.String()]; dup {
			return nil, fmt.Errorf("genesis account %s funded twice", addr)
		}
		alloc[addr.String()] = strconv.FormatUint(account.Balance, 10)
	}
	for _, arbitrator := range c.Arbitrators {
		addr, err := crypto.DecodeAddress(arbitrator)
		if err != nil {
			return nil, fmt.Errorf("arbitrator %q: %w", arbitrator, err)
		}
		roles[state.RoleArbitrator] = append(roles[state.RoleArbitrator], addr.String())
	}
	return genesis.New(chainIDPtr, alloc, roles)
}
