package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// solanaCLIConfig is the subset of ~/.config/solana/cli/config.yml we read.
type solanaCLIConfig struct {
	JSONRPCURL  string `yaml:"json_rpc_url"`
	KeypairPath string `yaml:"keypair_path"`
}

// DefaultSolanaCLIConfigPath returns the location the Solana CLI writes its config to.
func DefaultSolanaCLIConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "solana", "cli", "config.yml")
}

// ApplySolanaCLIDefaults fills RPCURLs and KeypairPath from the Solana CLI
// config when they are empty. An explicitly configured file must exist; the
// default location is optional.
func ApplySolanaCLIDefaults(cfg *Config) error {
	if len(cfg.RPCURLs) > 0 && cfg.KeypairPath != "" {
		return nil
	}

	path := cfg.SolanaCLIConfig
	explicit := path != ""
	if !explicit {
		path = DefaultSolanaCLIConfigPath()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read solana cli config %s: %w", path, err)
	}

	var cli solanaCLIConfig
	if err := yaml.Unmarshal(data, &cli); err != nil {
		return fmt.Errorf("failed to parse solana cli config %s: %w", path, err)
	}

	if len(cfg.RPCURLs) == 0 && cli.JSONRPCURL != "" {
		cfg.RPCURLs = []string{cli.JSONRPCURL}
	}
	if cfg.KeypairPath == "" && cli.KeypairPath != "" {
		cfg.KeypairPath = cli.KeypairPath
	}
	return nil
}
