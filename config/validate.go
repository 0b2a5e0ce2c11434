package config

import (
	"fmt"
	"strings"

	"limitlesswork/crypto"
	"limitlesswork/native/common"
	"limitlesswork/native/escrow"
)

var knownBackends = map[string]struct{}{"memory": {}, "leveldb": {}, "bolt": {}}

var knownModules = map[string]struct{}{
	common.ModuleIdentity: {},
	common.ModuleListing:  {},
	common.ModuleEscrow:   {},
	common.ModuleDispute:  {},
}

// Validate checks the values the node cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("ListenAddress must be set")
	}
	if _, ok := knownBackends[c.Backend]; !ok {
		return fmt.Errorf("Backend %q: expected memory, leveldb or bolt", c.Backend)
	}
	if c.Backend != "memory" && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir required for the %s backend", c.Backend)
	}
	if err := escrow.ValidateFeeRate(c.StandardFeeBps); err != nil {
		return fmt.Errorf("StandardFeeBps: %w", err)
	}
	if err := escrow.ValidateFeeRate(c.PremiumFeeBps); err != nil {
		return fmt.Errorf("PremiumFeeBps: %w", err)
	}
	if _, err := crypto.DecodeAddress(c.FeeCollector); err != nil {
		return fmt.Errorf("FeeCollector: %w", err)
	}
	for i, arbitrator := range c.Arbitrators {
		if _, err := crypto.DecodeAddress(arbitrator); err != nil {
			return fmt.Errorf("Arbitrators[%d]: %w", i, err)
		}
	}
	for _, module := range c.PausedModules {
		if _, ok := knownModules[strings.ToLower(strings.TrimSpace(module))]; !ok {
			return fmt.Errorf("PausedModules: unknown module %q", module)
		}
	}
	for i, account := range c.Genesis {
		if _, err := crypto.DecodeAddress(account.Address); err != nil {
			return fmt.Errorf("Genesis[%d]: %w", i, err)
		}
	}
	if c.RPC.RateLimit < 0 || c.RPC.RateBurst < 0 {
		return fmt.Errorf("rpc: RateLimit and RateBurst must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0, 1]")
	}
	return nil
}
