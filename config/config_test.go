package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"limitlesswork/core/state"
	"limitlesswork/crypto"
)

func testAddress(fill byte) crypto.Address {
	var addr crypto.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

var (
	collectorAddr  = testAddress(0xFE).String()
	arbitratorAddr = testAddress(0x0A).String()
	funderAddr     = testAddress(0x01).String()
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `ListenAddress = "127.0.0.1:9000"
DataDir = "./data"
Backend = "Bolt"
ChainID = 42
FeeCollector = "`+collectorAddr+`"
StandardFeeBps = 900
PremiumFeeBps = 600
Arbitrators = ["`+arbitratorAddr+`"]
PausedModules = ["dispute"]

[[Genesis]]
Address = "`+funderAddr+`"
Balance = 5000

[rpc]
JWTSecret = "inline"
RateLimit = 2.5
RateBurst = 4

[log]
Level = "debug"
Environment = "staging"

[telemetry]
Endpoint = "otel:4318"
Traces = true
SampleRatio = 0.5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:9000" || cfg.Backend != "bolt" || cfg.ChainID != 42 {
		t.Fatalf("unexpected node settings: %+v", cfg)
	}
	if cfg.StandardFeeBps != 900 || cfg.PremiumFeeBps != 600 {
		t.Fatalf("unexpected fee rates %d/%d", cfg.StandardFeeBps, cfg.PremiumFeeBps)
	}
	if cfg.EventLogPath != filepath.Join("./data", "events.db") {
		t.Fatalf("event log path not derived from data dir: %q", cfg.EventLogPath)
	}
	if cfg.RPC.RateLimit != 2.5 || cfg.RPC.RateBurst != 4 || cfg.RPC.JWTSecret != "inline" {
		t.Fatalf("unexpected rpc settings %+v", cfg.RPC)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Environment != "staging" {
		t.Fatalf("unexpected log settings %+v", cfg.Log)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.SampleRatio != 0.5 {
		t.Fatalf("unexpected telemetry %+v", cfg.Telemetry)
	}
	if !cfg.Pauses().IsPaused("dispute") || cfg.Pauses().IsPaused("escrow") {
		t.Fatalf("pause set not built from PausedModules")
	}

	spec, err := cfg.GenesisSpec()
	if err != nil {
		t.Fatalf("genesis spec: %v", err)
	}
	if balances := spec.Balances(); len(balances) != 1 || balances[0].Balance != 5000 {
		t.Fatalf("unexpected genesis balances %+v", balances)
	}
	if members := spec.Members(state.RoleArbitrator); len(members) != 1 || members[0] != testAddress(0x0A) {
		t.Fatalf("unexpected arbitrators %v", members)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `listenAddress: ":7000"
backend: memory
feeCollector: "`+collectorAddr+`"
standardFeeBps: 1000
premiumFeeBps: 750
rpc:
  rateLimit: 1
  rateBurst: 1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.ListenAddress != ":7000" || cfg.Backend != "memory" {
		t.Fatalf("unexpected settings %+v", cfg)
	}
	if cfg.EventLogPath != "" {
		t.Fatalf("memory backend must not derive an event log path, got %q", cfg.EventLogPath)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("defaults not applied under yaml: %+v", cfg.Log)
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if cfg.StandardFeeBps != 1000 || cfg.PremiumFeeBps != 750 {
		t.Fatalf("unexpected default fees %d/%d", cfg.StandardFeeBps, cfg.PremiumFeeBps)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload default: %v", err)
	}
	if reloaded.FeeCollector != cfg.FeeCollector || reloaded.ListenAddress != cfg.ListenAddress {
		t.Fatalf("persisted default differs: %+v vs %+v", reloaded, cfg)
	}
}

func TestLoadJWTSecretFromEnv(t *testing.T) {
	t.Setenv("MARKET_TEST_JWT", "from-env")
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `Backend = "memory"
FeeCollector = "`+collectorAddr+`"

[rpc]
JWTSecret = "inline"
JWTSecretEnv = "MARKET_TEST_JWT"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPC.JWTSecret != "from-env" {
		t.Fatalf("expected env secret, got %q", cfg.RPC.JWTSecret)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"fee above denominator", func(c *Config) { c.StandardFeeBps = 10_001 }, "StandardFeeBps"},
		{"premium above denominator", func(c *Config) { c.PremiumFeeBps = 20_000 }, "PremiumFeeBps"},
		{"bad collector", func(c *Config) { c.FeeCollector = "btc1xyz" }, "FeeCollector"},
		{"bad arbitrator", func(c *Config) { c.Arbitrators = []string{"0x1234"} }, "Arbitrators[0]"},
		{"unknown backend", func(c *Config) { c.Backend = "postgres" }, "Backend"},
		{"unknown module", func(c *Config) { c.PausedModules = []string{"swap"} }, "PausedModules"},
		{"negative burst", func(c *Config) { c.RPC.RateBurst = -1 }, "rpc"},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }, "SampleRatio"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadKeepsExplicitZeroFees(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `Backend = "memory"
FeeCollector = "`+collectorAddr+`"
StandardFeeBps = 0
PremiumFeeBps = 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StandardFeeBps != 0 || cfg.PremiumFeeBps != 0 {
		t.Fatalf("explicit zero fees replaced with %d/%d", cfg.StandardFeeBps, cfg.PremiumFeeBps)
	}

	path = writeFile(t, dir, "omitted.toml", `Backend = "memory"
FeeCollector = "`+collectorAddr+`"
`)
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StandardFeeBps != 1000 || cfg.PremiumFeeBps != 750 {
		t.Fatalf("omitted fees = %d/%d, want defaults", cfg.StandardFeeBps, cfg.PremiumFeeBps)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `Backend = "memory"
FeeCollector = "`+collectorAddr+`"
ValidatorKeystorePath = "old"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "ValidatorKeystorePath") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestGenesisSpecRejectsDoubleFunding(t *testing.T) {
	dir := t.TempDir()
	genesisPath := writeFile(t, dir, "genesis.json", `{"alloc":{"`+funderAddr+`":"10"},"roles":{}}`)
	cfg := Default()
	cfg.GenesisPath = genesisPath
	cfg.Genesis = []GenesisAccount{{Address: funderAddr, Balance: 1}}
	if _, err := cfg.GenesisSpec(); err == nil {
		t.Fatalf("expected duplicate funding to be rejected")
	}
	cfg.Genesis = nil
	cfg.Arbitrators = []string{arbitratorAddr}
	spec, err := cfg.GenesisSpec()
	if err != nil {
		t.Fatalf("merge genesis: %v", err)
	}
	if len(spec.Balances()) != 1 || len(spec.Members(state.RoleArbitrator)) != 1 {
		t.Fatalf("unexpected merged spec")
	}
}

func TestStoragePathPerBackend(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/var/lib/market"
	if got := cfg.StoragePath(); got != "/var/lib/market" {
		t.Fatalf("leveldb path = %q", got)
	}
	cfg.Backend = "bolt"
	if got := cfg.StoragePath(); got != filepath.Join("/var/lib/market", "ledger.bolt") {
		t.Fatalf("bolt path = %q", got)
	}
}
