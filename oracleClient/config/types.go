package config

import "time"

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level"`   // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome        string `json:"node_home"`         // Node home directory (default: ~/.poracle)
	DBFileName      string `json:"db_file_name"`      // SQLite file under <node_home>/data (default: oracle.db)
	QueryServerPort int    `json:"query_server_port"` // Port for the HTTP API (default: 8080)

	// Oracle identity
	OracleID          string `json:"oracle_id"`           // Identifier this node presents to hubs
	OracleKid         string `json:"oracle_kid"`          // Key id this node presents to hubs
	OracleKeypairFile string `json:"oracle_keypair_file"` // Solana keypair JSON (64 byte array) used for signing

	// Quorum
	SignatureThreshold int `json:"signature_threshold"` // Distinct oracle signatures required before relay

	// Hub coordination
	HubURLs                      []string `json:"hub_urls"`                        // First entry is primary, second is fallback
	HubKeysFile                  string   `json:"hub_keys_file"`                   // JSON file with per-hub current/next keys
	EventPollIntervalSeconds     int      `json:"event_poll_interval_seconds"`     // default: 5
	SignaturePollIntervalSeconds int      `json:"signature_poll_interval_seconds"` // default: 5
	PollTimeoutSeconds           int      `json:"poll_timeout_seconds"`            // default: 3
	PollJitterMillis             int      `json:"poll_jitter_millis"`              // default: 500
	EventBatchLimit              int      `json:"event_batch_limit"`               // default: 50

	// Hub authentication
	AuthSkewSeconds             int `json:"auth_skew_seconds"`              // default: 60
	NonceSweepIntervalSeconds   int `json:"nonce_sweep_interval_seconds"`   // default: 60
	NonceRetentionBufferSeconds int `json:"nonce_retention_buffer_seconds"` // default: 60

	Solana   SolanaConfig   `json:"solana"`
	Protocol ProtocolConfig `json:"protocol"`
}

// SolanaConfig holds the source chain connection settings.
type SolanaConfig struct {
	RPCURLs         []string `json:"rpc_urls"`
	WSURL           string   `json:"ws_url"`
	Commitment      string   `json:"commitment"`       // processed | confirmed | finalized (default: confirmed)
	ProgramAddress  string   `json:"program_address"`  // Bridge program id (base58)
	ListenerEnabled *bool    `json:"listener_enabled"` // default: true

	ValidatorMaxAttempts     int  `json:"validator_max_attempts"`      // default: 5
	ValidatorBaseDelayMillis int  `json:"validator_base_delay_millis"` // default: 500
	ValidatorMaxDelayMillis  int  `json:"validator_max_delay_millis"`  // default: 8000
	ValidatorUseStatusLookup bool `json:"validator_use_status_lookup"` // consult getSignatureStatuses between retries
}

// ProtocolConfig holds the constants mixed into every signed order.
type ProtocolConfig struct {
	Name            string `json:"name"`             // default: qubic-solana-bridge
	Version         string `json:"version"`          // default: 1
	ContractAddress string `json:"contract_address"` // base58, defaults to the Solana program address
	BpsFee          int    `json:"bps_fee"`          // fee in basis points, 0..10000
}

// IsListenerEnabled reports whether the WS listener should run.
func (c *Config) IsListenerEnabled() bool {
	return c.Solana.ListenerEnabled == nil || *c.Solana.ListenerEnabled
}

// PrimaryHub returns the primary hub URL.
func (c *Config) PrimaryHub() string {
	if len(c.HubURLs) == 0 {
		return ""
	}
	return c.HubURLs[0]
}

// FallbackHub returns the fallback hub URL, or "" when only one hub is configured.
func (c *Config) FallbackHub() string {
	if len(c.HubURLs) < 2 {
		return ""
	}
	return c.HubURLs[1]
}

func (c *Config) EventPollInterval() time.Duration {
	return time.Duration(c.EventPollIntervalSeconds) * time.Second
}

func (c *Config) SignaturePollInterval() time.Duration {
	return time.Duration(c.SignaturePollIntervalSeconds) * time.Second
}

func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}

func (c *Config) PollJitter() time.Duration {
	return time.Duration(c.PollJitterMillis) * time.Millisecond
}

func (c *Config) AuthSkew() time.Duration {
	return time.Duration(c.AuthSkewSeconds) * time.Second
}

func (c *Config) NonceSweepInterval() time.Duration {
	return time.Duration(c.NonceSweepIntervalSeconds) * time.Second
}

// NonceRetention is how long a seen nonce must be kept: the skew window plus a safety buffer.
func (c *Config) NonceRetention() time.Duration {
	return c.AuthSkew() + time.Duration(c.NonceRetentionBufferSeconds)*time.Second
}
