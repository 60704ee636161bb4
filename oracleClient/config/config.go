package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/pushchain/bridge-oracle/oracleClient/constant"
)

// EnvPrefix prefixes every environment override, e.g. ORACLE_SIGNATURE_THRESHOLD.
const EnvPrefix = "ORACLE"

//go:embed default_config.json
var defaultConfigJSON []byte

var validCommitments = map[string]bool{
	"processed": true,
	"confirmed": true,
	"finalized": true,
}

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	// Zero selects the default; negative values are never meaningful.
	if err := validateNonNegative(cfg); err != nil {
		return err
	}

	applyDefaults(cfg)

	if cfg.QueryServerPort > 65535 {
		return fmt.Errorf("query_server_port must be between 1 and 65535")
	}
	if cfg.NonceRetention() <= cfg.AuthSkew() {
		return fmt.Errorf("nonce retention must exceed auth_skew_seconds")
	}
	if cfg.Solana.ValidatorMaxDelayMillis < cfg.Solana.ValidatorBaseDelayMillis {
		return fmt.Errorf("solana validator_max_delay_millis must not be below validator_base_delay_millis")
	}

	if cfg.SignatureThreshold < 1 {
		return fmt.Errorf("signature_threshold must be at least 1")
	}

	if len(cfg.HubURLs) == 0 {
		return fmt.Errorf("at least one hub url is required")
	}
	for _, raw := range cfg.HubURLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid hub url %q", raw)
		}
	}
	if cfg.HubKeysFile == "" {
		return fmt.Errorf("hub_keys_file is required")
	}

	if cfg.OracleID == "" || cfg.OracleKid == "" {
		return fmt.Errorf("oracle_id and oracle_kid are required")
	}
	if cfg.OracleKeypairFile == "" {
		return fmt.Errorf("oracle_keypair_file is required")
	}

	if len(cfg.Solana.RPCURLs) == 0 {
		return fmt.Errorf("at least one solana rpc url is required")
	}
	if cfg.IsListenerEnabled() && cfg.Solana.WSURL == "" {
		return fmt.Errorf("solana ws_url is required when the listener is enabled")
	}
	if !validCommitments[cfg.Solana.Commitment] {
		return fmt.Errorf("solana commitment must be processed, confirmed or finalized")
	}
	if _, err := solana.PublicKeyFromBase58(cfg.Solana.ProgramAddress); err != nil {
		return fmt.Errorf("invalid solana program_address: %w", err)
	}
	if _, err := solana.PublicKeyFromBase58(cfg.Protocol.ContractAddress); err != nil {
		return fmt.Errorf("invalid protocol contract_address: %w", err)
	}
	if cfg.Protocol.BpsFee < 0 || cfg.Protocol.BpsFee > 10000 {
		return fmt.Errorf("protocol bps_fee must be between 0 and 10000")
	}

	return nil
}

func validateNonNegative(cfg *Config) error {
	fields := []struct {
		name  string
		value int
	}{
		{"query_server_port", cfg.QueryServerPort},
		{"event_poll_interval_seconds", cfg.EventPollIntervalSeconds},
		{"signature_poll_interval_seconds", cfg.SignaturePollIntervalSeconds},
		{"poll_timeout_seconds", cfg.PollTimeoutSeconds},
		{"poll_jitter_millis", cfg.PollJitterMillis},
		{"event_batch_limit", cfg.EventBatchLimit},
		{"auth_skew_seconds", cfg.AuthSkewSeconds},
		{"nonce_sweep_interval_seconds", cfg.NonceSweepIntervalSeconds},
		{"nonce_retention_buffer_seconds", cfg.NonceRetentionBufferSeconds},
		{"solana validator_max_attempts", cfg.Solana.ValidatorMaxAttempts},
		{"solana validator_base_delay_millis", cfg.Solana.ValidatorBaseDelayMillis},
		{"solana validator_max_delay_millis", cfg.Solana.ValidatorMaxDelayMillis},
	}
	for _, f := range fields {
		if f.value < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.DBFileName == "" {
		cfg.DBFileName = "oracle.db"
	}
	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = 8080
	}

	// Hub polling
	if cfg.EventPollIntervalSeconds == 0 {
		cfg.EventPollIntervalSeconds = 5
	}
	if cfg.SignaturePollIntervalSeconds == 0 {
		cfg.SignaturePollIntervalSeconds = 5
	}
	if cfg.PollTimeoutSeconds == 0 {
		cfg.PollTimeoutSeconds = 3
	}
	if cfg.PollJitterMillis == 0 {
		cfg.PollJitterMillis = 500
	}
	if cfg.EventBatchLimit == 0 {
		cfg.EventBatchLimit = 50
	}

	// Hub authentication
	if cfg.AuthSkewSeconds == 0 {
		cfg.AuthSkewSeconds = 60
	}
	if cfg.NonceSweepIntervalSeconds == 0 {
		cfg.NonceSweepIntervalSeconds = 60
	}
	if cfg.NonceRetentionBufferSeconds == 0 {
		cfg.NonceRetentionBufferSeconds = 60
	}

	// Solana
	if cfg.Solana.Commitment == "" {
		cfg.Solana.Commitment = "confirmed"
	}
	if cfg.Solana.ValidatorMaxAttempts == 0 {
		cfg.Solana.ValidatorMaxAttempts = 5
	}
	if cfg.Solana.ValidatorBaseDelayMillis == 0 {
		cfg.Solana.ValidatorBaseDelayMillis = 500
	}
	if cfg.Solana.ValidatorMaxDelayMillis == 0 {
		cfg.Solana.ValidatorMaxDelayMillis = 8000
	}

	// Protocol
	if cfg.Protocol.Name == "" {
		cfg.Protocol.Name = "qubic-solana-bridge"
	}
	if cfg.Protocol.Version == "" {
		cfg.Protocol.Version = "1"
	}
	if cfg.Protocol.ContractAddress == "" {
		cfg.Protocol.ContractAddress = cfg.Solana.ProgramAddress
	}
}

// applyEnvOverrides lets operators override secrets and endpoints with ORACLE_* variables.
// Numeric and boolean values must parse; a typo never silently becomes zero.
func applyEnvOverrides(cfg *Config, v *viper.Viper) error {
	if v.IsSet("node_home") {
		cfg.NodeHome = v.GetString("node_home")
	}
	if v.IsSet("hub_urls") {
		cfg.HubURLs = splitCommaList(v.GetString("hub_urls"))
	}
	if v.IsSet("hub_keys_file") {
		cfg.HubKeysFile = v.GetString("hub_keys_file")
	}
	if v.IsSet("oracle_keypair_file") {
		cfg.OracleKeypairFile = v.GetString("oracle_keypair_file")
	}
	if v.IsSet("solana_rpc_urls") {
		cfg.Solana.RPCURLs = splitCommaList(v.GetString("solana_rpc_urls"))
	}
	if v.IsSet("solana_ws_url") {
		cfg.Solana.WSURL = v.GetString("solana_ws_url")
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"signature_threshold", &cfg.SignatureThreshold},
		{"query_server_port", &cfg.QueryServerPort},
		{"log_level", &cfg.LogLevel},
	}
	for _, o := range ints {
		if !v.IsSet(o.key) {
			continue
		}
		n, err := cast.ToIntE(strings.TrimSpace(v.GetString(o.key)))
		if err != nil {
			return fmt.Errorf("invalid %s_%s: %w", EnvPrefix, strings.ToUpper(o.key), err)
		}
		*o.dst = n
	}

	if v.IsSet("listener_enabled") {
		enabled, err := cast.ToBoolE(strings.TrimSpace(v.GetString("listener_enabled")))
		if err != nil {
			return fmt.Errorf("invalid %s_LISTENER_ENABLED: %w", EnvPrefix, err)
		}
		cfg.Solana.ListenerEnabled = &enabled
	}
	return nil
}

func newEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ResolvePath returns p unchanged when absolute, otherwise relative to the node home.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.NodeHome, p)
}

// Save writes the given config to <NodeDir>/config/poracle_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, constant.ConfigSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, constant.ConfigFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads <BasePath>/config/poracle_config.json, applies ORACLE_* environment
// overrides and validates the result. Any failure is fatal for the node.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg, newEnvViper()); err != nil {
		return Config{}, err
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
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}
