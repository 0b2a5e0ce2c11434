package config

// RPC configures the JSON-RPC listener.
type RPC struct {
	// JWTSecret signs bearer tokens for market_sendTransaction. JWTSecretEnv
	// names an environment variable that overrides it.
	JWTSecret    string  `toml:"JWTSecret" yaml:"jwtSecret"`
	JWTSecretEnv string  `toml:"JWTSecretEnv" yaml:"jwtSecretEnv"`
	RateLimit    float64 `toml:"RateLimit" yaml:"rateLimit"` // submissions per second per client
	RateBurst    int     `toml:"RateBurst" yaml:"rateBurst"`
	ReadTimeout  int     `toml:"ReadTimeout" yaml:"readTimeout"` // seconds
	WriteTimeout int     `toml:"WriteTimeout" yaml:"writeTimeout"`
}

// Log selects the structured logging sink.
type Log struct {
	Level       string `toml:"Level" yaml:"level"`
	File        string `toml:"File" yaml:"file"`
	Environment string `toml:"Environment" yaml:"environment"`
	MaxSizeMB   int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups  int    `toml:"MaxBackups" yaml:"maxBackups"`
	MaxAgeDays  int    `toml:"MaxAgeDays" yaml:"maxAgeDays"`
}

// Telemetry wires the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint" yaml:"endpoint"`
	Insecure    bool    `toml:"Insecure" yaml:"insecure"`
	Headers     string  `toml:"Headers" yaml:"headers"` // key=value,key=value
	Metrics     bool    `toml:"Metrics" yaml:"metrics"`
	Traces      bool    `toml:"Traces" yaml:"traces"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"sampleRatio"`
}

// GenesisAccount funds an address when the ledger is first initialised.
type GenesisAccount struct {
	Address string `toml:"Address" yaml:"address"`
	Balance uint64 `toml:"Balance" yaml:"balance"`
}
