package svm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
)

// RPCClient provides the Solana RPC calls the oracle needs, rotating across
// the configured endpoints on failure.
type RPCClient struct {
	clients []*rpc.Client
	index   uint64
	mu      sync.RWMutex
	logger  zerolog.Logger
}

// NewRPCClient creates a client over rpcURLs. No request is made until first use.
func NewRPCClient(rpcURLs []string, logger zerolog.Logger) (*RPCClient, error) {
	if len(rpcURLs) == 0 {
		return nil, fmt.Errorf("no RPC URLs provided")
	}

	clients := make([]*rpc.Client, 0, len(rpcURLs))
	for _, url := range rpcURLs {
		clients = append(clients, rpc.New(url))
	}

	return &RPCClient{
		clients: clients,
		logger:  logger.With().Str("component", "svm_rpc_client").Logger(),
	}, nil
}

// executeWithFailover executes fn against each endpoint in round-robin order
// until one succeeds. The last error is wrapped so callers can inspect it.
func (rc *RPCClient) executeWithFailover(ctx context.Context, operation string, fn func(*rpc.Client) error) error {
	rc.mu.RLock()
	clients := rc.clients
	rc.mu.RUnlock()

	if len(clients) == 0 {
		return fmt.Errorf("no RPC clients available for %s", operation)
	}

	var lastErr error
	maxAttempts := len(clients)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		index := atomic.AddUint64(&rc.index, 1) - 1
		client := clients[index%uint64(len(clients))]

		err := fn(client)
		if err == nil {
			return nil
		}
		lastErr = err

		rc.logger.Debug().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Err(err).
			Msg("operation failed, trying next endpoint")
	}

	return fmt.Errorf("operation %s failed after trying %d endpoints: %w", operation, maxAttempts, lastErr)
}

// IsHealthy reports whether any endpoint answers getHealth with "ok".
func (rc *RPCClient) IsHealthy(ctx context.Context) bool {
	err := rc.executeWithFailover(ctx, "get_health", func(client *rpc.Client) error {
		health, err := client.GetHealth(ctx)
		if err != nil {
			return err
		}
		if health != "ok" {
			return fmt.Errorf("node reports %s", health)
		}
		return nil
	})
	return err == nil
}

// GetTransaction fetches a transaction by signature. A transaction that is not
// visible yet yields an error wrapping rpc.ErrNotFound.
func (rc *RPCClient) GetTransaction(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) (*rpc.GetTransactionResult, error) {
	var tx *rpc.GetTransactionResult
	err := rc.executeWithFailover(ctx, "get_transaction", func(client *rpc.Client) error {
		var innerErr error
		maxVersion := uint64(0)
		tx, innerErr = client.GetTransaction(
			ctx,
			signature,
			&rpc.GetTransactionOpts{
				Encoding:                       solana.EncodingBase64,
				Commitment:                     commitment,
				MaxSupportedTransactionVersion: &maxVersion,
			},
		)
		return innerErr
	})
	return tx, err
}

// GetSignatureStatus returns the status of one signature, or nil when the
// cluster does not know it.
func (rc *RPCClient) GetSignatureStatus(ctx context.Context, signature solana.Signature) (*rpc.SignatureStatusesResult, error) {
	var statuses *rpc.GetSignatureStatusesResult
	err := rc.executeWithFailover(ctx, "get_signature_statuses", func(client *rpc.Client) error {
		var innerErr error
		statuses, innerErr = client.GetSignatureStatuses(ctx, true, signature)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	if statuses == nil || len(statuses.Value) == 0 {
		return nil, nil
	}
	return statuses.Value[0], nil
}

// Close drops all endpoints.
func (rc *RPCClient) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.clients = nil
}
