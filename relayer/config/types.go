package config

import (
	"path/filepath"
	"time"
)

// QueueBackend selects how the staging queue is persisted.
type QueueBackend string

const (
	// QueueBackendFile stores the queue as a single JSON document.
	QueueBackendFile QueueBackend = "file"

	// QueueBackendSQLite stores one row per reservation with a unique nonce column.
	QueueBackendSQLite QueueBackend = "sqlite"
)

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level"`   // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome string `json:"node_home"` // Home directory (default: ~/.pdurable)

	// Solana connection
	RPCURLs         []string `json:"rpc_urls"`          // RPC endpoints, used round-robin with failover
	GenesisHash     string   `json:"genesis_hash"`      // Optional expected genesis hash (prefix match)
	KeypairPath     string   `json:"keypair_path"`      // Fee payer keypair (solana-keygen JSON)
	SolanaCLIConfig string   `json:"solana_cli_config"` // Solana CLI config.yml used to fill rpc_urls/keypair_path
	Commitment      string   `json:"commitment"`        // "processed", "confirmed" or "finalized"
	SkipPreflight   bool     `json:"skip_preflight"`    // Skip preflight simulation on submit

	// Transaction budget
	PriorityFeeMicroLamports uint64 `json:"priority_fee_micro_lamports"` // SetComputeUnitPrice value
	ComputeUnitLimit         uint32 `json:"compute_unit_limit"`          // SetComputeUnitLimit value

	// Staging queue
	QueueBackend QueueBackend `json:"queue_backend"` // "file" or "sqlite"
	QueuePath    string       `json:"queue_path"`    // default: <node_home>/data/staged_txs.{json,db}

	// Broadcast
	ConfirmTimeoutSeconds    int `json:"confirm_timeout_seconds"`     // Max wait for a submitted tx to land (default: 60)
	ConfirmPollIntervalMs    int `json:"confirm_poll_interval_ms"`    // Signature status poll interval (default: 500)
	DrainIntervalSeconds     int `json:"drain_interval_seconds"`      // Drain period in watch mode (default: 30)
	MaxSubmitRetries         int `json:"max_submit_retries"`          // Immediate path transient retries (default: 5)
	RPCRequestTimeoutSeconds int `json:"rpc_request_timeout_seconds"` // Per RPC call timeout (default: 10)

	// Application program that owns the collection accounts
	ProgramID string `json:"program_id"`

	// Query Server Config
	QueryServerPort int `json:"query_server_port"` // Port for the status server (default: 8090)
}

// ConfirmTimeout returns the confirmation wait bound.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSeconds) * time.Second
}

// ConfirmPollInterval returns the signature status poll interval.
func (c *Config) ConfirmPollInterval() time.Duration {
	return time.Duration(c.ConfirmPollIntervalMs) * time.Millisecond
}

// DrainInterval returns the period between drains in watch mode.
func (c *Config) DrainInterval() time.Duration {
	return time.Duration(c.DrainIntervalSeconds) * time.Second
}

// RPCRequestTimeout returns the per-call RPC timeout.
func (c *Config) RPCRequestTimeout() time.Duration {
	return time.Duration(c.RPCRequestTimeoutSeconds) * time.Second
}

// ResolvedQueuePath returns QueuePath, or the backend default under NodeHome.
func (c *Config) ResolvedQueuePath() string {
	if c.QueuePath != "" {
		return c.QueuePath
	}
	name := "staged_txs.json"
	if c.QueueBackend == QueueBackendSQLite {
		name = "staged_txs.db"
	}
	return filepath.Join(c.NodeHome, "data", name)
}
