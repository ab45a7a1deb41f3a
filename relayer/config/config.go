package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configSubdir   = "config"
	configFileName = "pdurable_config.json"

	// DefaultNodeHomeDir is joined to the user's home directory when node_home is empty.
	DefaultNodeHomeDir = ".pdurable"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	switch cfg.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("commitment must be 'processed', 'confirmed' or 'finalized'")
	}

	if cfg.QueueBackend == "" {
		cfg.QueueBackend = QueueBackendFile
	}
	if cfg.QueueBackend != QueueBackendFile && cfg.QueueBackend != QueueBackendSQLite {
		return fmt.Errorf("queue backend must be 'file' or 'sqlite'")
	}

	// Set defaults for broadcast settings
	if cfg.ConfirmTimeoutSeconds == 0 {
		cfg.ConfirmTimeoutSeconds = 60
	}
	if cfg.ConfirmPollIntervalMs == 0 {
		cfg.ConfirmPollIntervalMs = 500
	}
	if cfg.DrainIntervalSeconds == 0 {
		cfg.DrainIntervalSeconds = 30
	}
	if cfg.MaxSubmitRetries == 0 {
		cfg.MaxSubmitRetries = 5
	}
	if cfg.RPCRequestTimeoutSeconds == 0 {
		cfg.RPCRequestTimeoutSeconds = 10
	}
	if cfg.ConfirmTimeoutSeconds < 0 || cfg.ConfirmPollIntervalMs < 0 || cfg.DrainIntervalSeconds < 0 ||
		cfg.MaxSubmitRetries < 0 || cfg.RPCRequestTimeoutSeconds < 0 {
		return fmt.Errorf("timeouts, intervals and retry counts must not be negative")
	}

	// Set defaults for query server
	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = 8090
	}

	if cfg.NodeHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("node_home is empty and user home is unknown: %w", err)
		}
		cfg.NodeHome = filepath.Join(home, DefaultNodeHomeDir)
	}

	return nil
}

// Validate applies defaults and checks field values.
func (c *Config) Validate() error {
	return validateConfig(c)
}

// RequireNetwork checks the fields needed by commands that talk to a cluster.
func (c *Config) RequireNetwork() error {
	if len(c.RPCURLs) == 0 {
		return fmt.Errorf("rpc_urls is required (set it in the config or via solana_cli_config)")
	}
	if c.KeypairPath == "" {
		return fmt.Errorf("keypair_path is required (set it in the config or via solana_cli_config)")
	}
	return nil
}

// Save writes the given config to <basePath>/config/pdurable_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, configSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, configFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads, validates and returns the config from <basePath>/config/pdurable_config.json.
// Unknown fields are rejected.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, configSubdir, configFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decodeStrict(data)
	if err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.NodeHome == "" {
		cfg.NodeHome = basePath
	}
	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON
func LoadDefaultConfig() (*Config, error) {
	cfg, err := decodeStrict(defaultConfigJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}

func decodeStrict(data []byte) (Config, error) {
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
