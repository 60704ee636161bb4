package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/bridge-oracle/oracleClient/config"
	oerrors "github.com/pushchain/bridge-oracle/oracleClient/errors"
	"github.com/pushchain/bridge-oracle/oracleClient/hubauth"
)

const testProgram = "11111111111111111111111111111111"

type fakeHub struct {
	mu       sync.Mutex
	paths    map[string]int
	unsigned int
}

func newFakeHub() *fakeHub {
	return &fakeHub{paths: map[string]int{}}
}

func (h *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.paths[r.URL.Path]++
	if r.Header.Get(hubauth.HeaderSignature) == "" || r.Header.Get(hubauth.HeaderHubID) != "oracle-1" {
		h.unsigned++
	}
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/orders/events":
		_, _ = w.Write([]byte(`{"data":[],"cursor":0}`))
	case "/api/orders/signatures":
		_, _ = w.Write([]byte(`{"data":[]}`))
	default:
		http.NotFound(w, r)
	}
}

func (h *fakeHub) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paths[path]
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func writeKeypair(t *testing.T, path string) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return key
}

func writeHubKeys(t *testing.T, path string) {
	t.Helper()
	hubKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	content := fmt.Sprintf(`{"hubs":{"hub-1":{"current":{"kid":"hub-1-k1","publicKey":%q}}}}`, hubKey.PublicKey().String())
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func testConfig(t *testing.T, hubURL string) config.Config {
	t.Helper()
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "keys"), 0o750))
	writeKeypair(t, filepath.Join(home, "keys", "oracle.json"))
	writeHubKeys(t, filepath.Join(home, "keys", "hubs.json"))

	disabled := false
	return config.Config{
		LogLevel:                     0,
		LogFormat:                    "console",
		NodeHome:                     home,
		DBFileName:                   "oracle.db",
		QueryServerPort:              freePort(t),
		OracleID:                     "oracle-1",
		OracleKid:                    "oracle-1-key-1",
		OracleKeypairFile:            "keys/oracle.json",
		SignatureThreshold:           2,
		HubURLs:                      []string{hubURL},
		HubKeysFile:                  "keys/hubs.json",
		EventPollIntervalSeconds:     1,
		SignaturePollIntervalSeconds: 1,
		PollTimeoutSeconds:           1,
		EventBatchLimit:              10,
		AuthSkewSeconds:              60,
		NonceSweepIntervalSeconds:    1,
		NonceRetentionBufferSeconds:  60,
		Solana: config.SolanaConfig{
			RPCURLs:                  []string{"http://127.0.0.1:1"},
			Commitment:               "confirmed",
			ProgramAddress:           testProgram,
			ListenerEnabled:          &disabled,
			ValidatorMaxAttempts:     1,
			ValidatorBaseDelayMillis: 10,
			ValidatorMaxDelayMillis:  10,
		},
		Protocol: config.ProtocolConfig{
			Name:            "qubic-solana-bridge",
			Version:         "1",
			ContractAddress: testProgram,
			BpsFee:          30,
		},
	}
}

func TestNewOracleClient(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))

	t.Run("builds every component", func(t *testing.T) {
		cfg := testConfig(t, "http://127.0.0.1:1")
		oc, err := NewOracleClient(cfg, logger)
		require.NoError(t, err)
		assert.Nil(t, oc.listener)
		assert.Len(t, oc.loops(), 2)
		assert.FileExists(t, filepath.Join(cfg.NodeHome, "data", "oracle.db"))
		oc.shutdown()
	})

	t.Run("listener enabled adds a loop", func(t *testing.T) {
		cfg := testConfig(t, "http://127.0.0.1:1")
		enabled := true
		cfg.Solana.ListenerEnabled = &enabled
		cfg.Solana.WSURL = "ws://127.0.0.1:1"
		oc, err := NewOracleClient(cfg, logger)
		require.NoError(t, err)
		assert.NotNil(t, oc.listener)
		assert.Len(t, oc.loops(), 3)
		oc.shutdown()
	})

	t.Run("missing keypair is fatal", func(t *testing.T) {
		cfg := testConfig(t, "http://127.0.0.1:1")
		cfg.OracleKeypairFile = "keys/missing.json"
		_, err := NewOracleClient(cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "oracle keypair")
		assert.True(t, oerrors.HasCode(err, oerrors.ErrCodeConfig))
	})

	t.Run("malformed hub key file is fatal", func(t *testing.T) {
		cfg := testConfig(t, "http://127.0.0.1:1")
		require.NoError(t, os.WriteFile(cfg.ResolvePath(cfg.HubKeysFile), []byte(`{"hubs":`), 0o600))
		_, err := NewOracleClient(cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hub key file")
	})

	t.Run("invalid contract address", func(t *testing.T) {
		cfg := testConfig(t, "http://127.0.0.1:1")
		cfg.Protocol.ContractAddress = "not-base58-0OIl"
		_, err := NewOracleClient(cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "contract address")
	})
}

func TestOracleClientStart(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	hub := newFakeHub()
	hubServer := httptest.NewServer(hub)
	defer hubServer.Close()

	cfg := testConfig(t, hubServer.URL)
	oc, err := NewOracleClient(cfg, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- oc.Start(ctx) }()

	require.Eventually(t, func() bool {
		return hub.count("/api/orders/events") > 0 && hub.count("/api/orders/signatures") > 0
	}, 10*time.Second, 50*time.Millisecond)

	hub.mu.Lock()
	assert.Zero(t, hub.unsigned, "every hub request carries the oracle's auth headers")
	hub.mu.Unlock()

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.QueryServerPort)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/metrics")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get(base + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}

	_, err = http.Get(base + "/metrics")
	assert.Error(t, err, "query server is stopped on shutdown")
}
