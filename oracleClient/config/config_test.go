package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/bridge-oracle/oracleClient/constant"
)

const testProgram = "11111111111111111111111111111111"

func validConfig() *Config {
	return &Config{
		LogLevel:           1,
		LogFormat:          "json",
		OracleID:           "oracle-1",
		OracleKid:          "oracle-1-key-1",
		OracleKeypairFile:  "keys/oracle.json",
		SignatureThreshold: 2,
		HubURLs:            []string{"http://hub-1.local", "http://hub-2.local"},
		HubKeysFile:        "keys/hubs.json",
		Solana: SolanaConfig{
			RPCURLs:        []string{"http://localhost:8899"},
			WSURL:          "ws://localhost:8900",
			ProgramAddress: testProgram,
		},
	}
}

func TestValidateConfig(t *testing.T) {
	disabled := false

	testCases := []struct {
		name        string
		mutate      func(cfg *Config)
		expectError bool
		errorMsg    string
		validate    func(t *testing.T, cfg *Config)
	}{
		{
			name:   "Valid config with defaults applied",
			mutate: func(cfg *Config) {},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "oracle.db", cfg.DBFileName)
				assert.Equal(t, 8080, cfg.QueryServerPort)
				assert.Equal(t, 5*time.Second, cfg.EventPollInterval())
				assert.Equal(t, 5*time.Second, cfg.SignaturePollInterval())
				assert.Equal(t, 3*time.Second, cfg.PollTimeout())
				assert.Equal(t, 500*time.Millisecond, cfg.PollJitter())
				assert.Equal(t, 60*time.Second, cfg.AuthSkew())
				assert.Equal(t, 120*time.Second, cfg.NonceRetention())
				assert.Equal(t, "confirmed", cfg.Solana.Commitment)
				assert.Equal(t, 5, cfg.Solana.ValidatorMaxAttempts)
				assert.Equal(t, "qubic-solana-bridge", cfg.Protocol.Name)
				assert.Equal(t, "1", cfg.Protocol.Version)
				assert.Equal(t, testProgram, cfg.Protocol.ContractAddress)
				assert.True(t, cfg.IsListenerEnabled())
			},
		},
		{
			name:        "Invalid log level (negative)",
			mutate:      func(cfg *Config) { cfg.LogLevel = -1 },
			expectError: true,
			errorMsg:    "log level must be between 0 and 5",
		},
		{
			name:        "Invalid log level (too high)",
			mutate:      func(cfg *Config) { cfg.LogLevel = 6 },
			expectError: true,
			errorMsg:    "log level must be between 0 and 5",
		},
		{
			name:        "Invalid log format",
			mutate:      func(cfg *Config) { cfg.LogFormat = "xml" },
			expectError: true,
			errorMsg:    "log format must be 'json' or 'console'",
		},
		{
			name:        "Threshold below one",
			mutate:      func(cfg *Config) { cfg.SignatureThreshold = 0 },
			expectError: true,
			errorMsg:    "signature_threshold",
		},
		{
			name:        "No hub urls",
			mutate:      func(cfg *Config) { cfg.HubURLs = nil },
			expectError: true,
			errorMsg:    "at least one hub url",
		},
		{
			name:        "Hub url without scheme",
			mutate:      func(cfg *Config) { cfg.HubURLs = []string{"hub-1.local"} },
			expectError: true,
			errorMsg:    "invalid hub url",
		},
		{
			name:        "Missing keypair file",
			mutate:      func(cfg *Config) { cfg.OracleKeypairFile = "" },
			expectError: true,
			errorMsg:    "oracle_keypair_file",
		},
		{
			name:        "Missing solana rpc",
			mutate:      func(cfg *Config) { cfg.Solana.RPCURLs = nil },
			expectError: true,
			errorMsg:    "solana rpc url",
		},
		{
			name:        "Missing ws url with listener enabled",
			mutate:      func(cfg *Config) { cfg.Solana.WSURL = "" },
			expectError: true,
			errorMsg:    "ws_url",
		},
		{
			name: "Missing ws url with listener disabled",
			mutate: func(cfg *Config) {
				cfg.Solana.WSURL = ""
				cfg.Solana.ListenerEnabled = &disabled
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.IsListenerEnabled())
			},
		},
		{
			name:        "Bad commitment",
			mutate:      func(cfg *Config) { cfg.Solana.Commitment = "recent" },
			expectError: true,
			errorMsg:    "commitment",
		},
		{
			name:        "Invalid program address",
			mutate:      func(cfg *Config) { cfg.Solana.ProgramAddress = "not-base58!" },
			expectError: true,
			errorMsg:    "program_address",
		},
		{
			name:        "Negative nonce retention buffer",
			mutate:      func(cfg *Config) { cfg.NonceRetentionBufferSeconds = -50 },
			expectError: true,
			errorMsg:    "nonce_retention_buffer_seconds must not be negative",
		},
		{
			name:        "Negative auth skew",
			mutate:      func(cfg *Config) { cfg.AuthSkewSeconds = -1 },
			expectError: true,
			errorMsg:    "auth_skew_seconds must not be negative",
		},
		{
			name:        "Negative event poll interval",
			mutate:      func(cfg *Config) { cfg.EventPollIntervalSeconds = -5 },
			expectError: true,
			errorMsg:    "event_poll_interval_seconds must not be negative",
		},
		{
			name:        "Negative signature poll interval",
			mutate:      func(cfg *Config) { cfg.SignaturePollIntervalSeconds = -1 },
			expectError: true,
			errorMsg:    "signature_poll_interval_seconds",
		},
		{
			name:        "Negative poll jitter",
			mutate:      func(cfg *Config) { cfg.PollJitterMillis = -10 },
			expectError: true,
			errorMsg:    "poll_jitter_millis",
		},
		{
			name:        "Negative event batch limit",
			mutate:      func(cfg *Config) { cfg.EventBatchLimit = -1 },
			expectError: true,
			errorMsg:    "event_batch_limit",
		},
		{
			name:        "Negative nonce sweep interval",
			mutate:      func(cfg *Config) { cfg.NonceSweepIntervalSeconds = -60 },
			expectError: true,
			errorMsg:    "nonce_sweep_interval_seconds",
		},
		{
			name:        "Negative validator attempts",
			mutate:      func(cfg *Config) { cfg.Solana.ValidatorMaxAttempts = -3 },
			expectError: true,
			errorMsg:    "validator_max_attempts",
		},
		{
			name:        "Query server port out of range",
			mutate:      func(cfg *Config) { cfg.QueryServerPort = 70000 },
			expectError: true,
			errorMsg:    "query_server_port",
		},
		{
			name: "Validator max delay below base delay",
			mutate: func(cfg *Config) {
				cfg.Solana.ValidatorBaseDelayMillis = 2000
				cfg.Solana.ValidatorMaxDelayMillis = 1000
			},
			expectError: true,
			errorMsg:    "validator_max_delay_millis",
		},
		{
			name: "Retention always outlives the skew window",
			mutate: func(cfg *Config) {
				cfg.AuthSkewSeconds = 300
				cfg.NonceRetentionBufferSeconds = 1
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Greater(t, cfg.NonceRetention(), cfg.AuthSkew())
			},
		},
		{
			name:        "Bps fee out of range",
			mutate:      func(cfg *Config) { cfg.Protocol.BpsFee = 10001 },
			expectError: true,
			errorMsg:    "bps_fee",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := validateConfig(cfg)

			if tc.expectError {
				assert.Error(t, err)
				if tc.errorMsg != "" {
					assert.Contains(t, err.Error(), tc.errorMsg)
				}
			} else {
				assert.NoError(t, err)
				if tc.validate != nil {
					tc.validate(t, cfg)
				}
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("Save and load valid config", func(t *testing.T) {
		cfg := validConfig()
		cfg.QueryServerPort = 8888

		require.NoError(t, Save(cfg, tempDir))

		configPath := filepath.Join(tempDir, constant.ConfigSubdir, constant.ConfigFileName)
		_, err := os.Stat(configPath)
		assert.NoError(t, err)

		loaded, err := Load(tempDir)
		require.NoError(t, err)
		assert.Equal(t, 8888, loaded.QueryServerPort)
		assert.Equal(t, cfg.HubURLs, loaded.HubURLs)
		assert.Equal(t, "http://hub-1.local", loaded.PrimaryHub())
		assert.Equal(t, "http://hub-2.local", loaded.FallbackHub())
		assert.Equal(t, tempDir, loaded.NodeHome)
	})

	t.Run("Save invalid config", func(t *testing.T) {
		cfg := validConfig()
		cfg.LogLevel = -1

		err := Save(cfg, tempDir)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})

	t.Run("Load from non-existent file", func(t *testing.T) {
		_, err := Load(filepath.Join(tempDir, "non_existent"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("Load invalid JSON", func(t *testing.T) {
		configDir := filepath.Join(tempDir, "invalid", constant.ConfigSubdir)
		require.NoError(t, os.MkdirAll(configDir, 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(configDir, constant.ConfigFileName), []byte("{invalid json}"), 0o600))

		_, err := Load(filepath.Join(tempDir, "invalid"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal config")
	})
}

func TestEnvOverrides(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, Save(validConfig(), tempDir))

	t.Setenv("ORACLE_SIGNATURE_THRESHOLD", "4")
	t.Setenv("ORACLE_HUB_URLS", "http://a.local, http://b.local ,")
	t.Setenv("ORACLE_LISTENER_ENABLED", "false")

	cfg, err := Load(tempDir)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.SignatureThreshold)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.HubURLs)
	assert.False(t, cfg.IsListenerEnabled())
}

func TestEnvOverridesRejectMalformedValues(t *testing.T) {
	testCases := []struct {
		name string
		key  string
		val  string
	}{
		{name: "non numeric threshold", key: "ORACLE_SIGNATURE_THRESHOLD", val: "three"},
		{name: "non numeric port", key: "ORACLE_QUERY_SERVER_PORT", val: "80a"},
		{name: "non boolean listener flag", key: "ORACLE_LISTENER_ENABLED", val: "maybe"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tempDir := t.TempDir()
			require.NoError(t, Save(validConfig(), tempDir))
			t.Setenv(tc.key, tc.val)

			_, err := Load(tempDir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}

func TestLoadDefaultConfig(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.SignatureThreshold)
	assert.Len(t, cfg.HubURLs, 2)
	assert.Equal(t, "console", cfg.LogFormat)

	// The embedded defaults only lack the deployment specific program id.
	cfg.Solana.ProgramAddress = testProgram
	assert.NoError(t, validateConfig(cfg))
}

func TestResolvePath(t *testing.T) {
	cfg := &Config{NodeHome: "/var/oracle"}
	assert.Equal(t, "/var/oracle/keys/hubs.json", cfg.ResolvePath("keys/hubs.json"))
	assert.Equal(t, "/etc/hubs.json", cfg.ResolvePath("/etc/hubs.json"))
	assert.Equal(t, "", cfg.ResolvePath(""))
}
