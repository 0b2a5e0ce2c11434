package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"limitlesswork/crypto"
	"limitlesswork/native/escrow"
)

type Config struct {
	ListenAddress  string           `toml:"ListenAddress" yaml:"listenAddress"`
	DataDir        string           `toml:"DataDir" yaml:"dataDir"`
	Backend        string           `toml:"Backend" yaml:"backend"` // memory, leveldb or bolt
	EventLogPath   string           `toml:"EventLogPath" yaml:"eventLogPath"`
	ChainID        uint64           `toml:"ChainID" yaml:"chainId"`
	GenesisPath    string           `toml:"GenesisPath" yaml:"genesisPath"`
	FeeCollector   string           `toml:"FeeCollector" yaml:"feeCollector"`
	StandardFeeBps uint16           `toml:"StandardFeeBps" yaml:"standardFeeBps"`
	PremiumFeeBps  uint16           `toml:"PremiumFeeBps" yaml:"premiumFeeBps"`
	Arbitrators    []string         `toml:"Arbitrators" yaml:"arbitrators"`
	PausedModules  []string         `toml:"PausedModules" yaml:"pausedModules"`
	Genesis        []GenesisAccount `toml:"Genesis" yaml:"genesis"`
	RPC            RPC              `toml:"rpc" yaml:"rpc"`
	Log            Log              `toml:"log" yaml:"log"`
	Telemetry      Telemetry        `toml:"telemetry" yaml:"telemetry"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		ListenAddress:  ":8545",
		DataDir:        "./market-data",
		Backend:        "leveldb",
		ChainID:        1,
		FeeCollector:   crypto.DeriveAccount("fee-collector", []byte("default")).String(),
		StandardFeeBps: escrow.DefaultStandardFeeBps,
		PremiumFeeBps:  escrow.DefaultPremiumFeeBps,
		Arbitrators:    []string{},
		PausedModules:  []string{},
		RPC: RPC{
			RateLimit:    5,
			RateBurst:    10,
			ReadTimeout:  15,
			WriteTimeout: 15,
		},
		Log: Log{Level: "info", Environment: "dev"},
	}
}

// Load reads the configuration at path. A missing file is created with the
// defaults. Files ending in .yaml or .yml are decoded as YAML, everything
// else as TOML.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config %s: unknown field %s", path, undecoded[0])
		}
	}
	cfg.applyEnv()
	cfg.normalize(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (c *Config) applyEnv() {
	if name := strings.TrimSpace(c.RPC.JWTSecretEnv); name != "" {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			c.RPC.JWTSecret = value
		}
	}
}

// normalize fills derived paths. Relative genesis paths resolve against the
// config file's directory.
func (c *Config) normalize(baseDir string) {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.EventLogPath == "" && c.DataDir != "" && c.Backend != "memory" {
		c.EventLogPath = filepath.Join(c.DataDir, "events.db")
	}
	if c.GenesisPath != "" && !filepath.IsAbs(c.GenesisPath) && baseDir != "" {
		c.GenesisPath = filepath.Join(baseDir, c.GenesisPath)
	}
	if c.Arbitrators == nil {
		c.Arbitrators = []string{}
	}
	if c.PausedModules == nil {
		c.PausedModules = []string{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize(filepath.Dir(path))
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}
