package svm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/pushchain/bridge-oracle/oracleClient/chains/common"
	oerrors "github.com/pushchain/bridge-oracle/oracleClient/errors"
	"github.com/pushchain/bridge-oracle/oracleClient/metrics"
)

const validatorComponent = "svm_event_validator"

// TransactionSource is the subset of RPCClient the validator depends on.
type TransactionSource interface {
	GetTransaction(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) (*rpc.GetTransactionResult, error)
	GetSignatureStatus(ctx context.Context, signature solana.Signature) (*rpc.SignatureStatusesResult, error)
}

// EventClaim is an event some hub says happened in a Solana transaction.
type EventClaim struct {
	Signature string
	Chain     string
	Event     *DecodedEvent
}

// ValidatorConfig tunes the eventual-consistency retries.
type ValidatorConfig struct {
	Commitment      string
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	UseStatusLookup bool
}

// EventValidator cross-checks hub reported events against the chain.
type EventValidator struct {
	source     TransactionSource
	commitment rpc.CommitmentType
	lookup     bool
	retry      *common.RetryManager
	logger     zerolog.Logger
}

func NewEventValidator(source TransactionSource, cfg ValidatorConfig, logger zerolog.Logger) *EventValidator {
	commitment := rpc.CommitmentType(cfg.Commitment)
	// getTransaction does not accept processed.
	if commitment == "" || commitment == rpc.CommitmentProcessed {
		commitment = rpc.CommitmentConfirmed
	}

	log := logger.With().Str("component", validatorComponent).Logger()
	return &EventValidator{
		source:     source,
		commitment: commitment,
		lookup:     cfg.UseStatusLookup,
		retry: common.NewRetryManager(&common.RetryConfig{
			MaxAttempts:    cfg.MaxAttempts,
			InitialDelay:   cfg.BaseDelay,
			MaxDelay:       cfg.MaxDelay,
			BackoffFactor:  2.0,
			RetryableError: oerrors.IsRetryable,
		}, log),
		logger: log,
	}
}

// Validate returns nil only when the claimed transaction exists, succeeded
// and emitted a program-data event equal to claim.Event.
func (v *EventValidator) Validate(ctx context.Context, claim EventClaim) error {
	outcome := "valid"
	defer func() { metrics.ValidatorOutcomes.WithLabelValues(outcome).Inc() }()

	if claim.Chain != "solana" {
		outcome = "rejected"
		return oerrors.NewValidationError(validatorComponent, fmt.Sprintf("unsupported chain %q", claim.Chain))
	}
	if claim.Event == nil {
		outcome = "rejected"
		return oerrors.NewValidationError(validatorComponent, "claim carries no event")
	}
	sig, err := solana.SignatureFromBase58(claim.Signature)
	if err != nil {
		outcome = "rejected"
		return oerrors.NewValidationError(validatorComponent, "invalid transaction signature")
	}

	var tx *rpc.GetTransactionResult
	err = v.retry.ExecuteWithRetry(ctx, "get_transaction", func(attempt int) error {
		var fetchErr error
		tx, fetchErr = v.fetch(ctx, sig, attempt)
		return fetchErr
	})
	if err != nil {
		outcome = "unavailable"
		if oerrors.HasCode(err, oerrors.ErrCodeValidation) {
			outcome = "failed"
		}
		return err
	}

	if tx.Meta == nil {
		outcome = "failed"
		return oerrors.NewDataIntegrityError(validatorComponent, "transaction has no metadata", nil)
	}
	if tx.Meta.Err != nil {
		outcome = "failed"
		return oerrors.NewValidationError(validatorComponent, fmt.Sprintf("transaction failed on chain: %v", tx.Meta.Err))
	}

	for _, payload := range ExtractProgramData(tx.Meta.LogMessages) {
		if ev := DecodeEvent(payload); ev != nil && ev.Equal(claim.Event) {
			v.logger.Debug().
				Str("signature", claim.Signature).
				Str("kind", claim.Event.Kind.String()).
				Msg("event validated against chain")
			return nil
		}
	}

	outcome = "mismatch"
	return oerrors.NewValidationError(validatorComponent, "no matching event in transaction logs").
		WithContext("signature", claim.Signature)
}

func (v *EventValidator) fetch(ctx context.Context, sig solana.Signature, attempt int) (*rpc.GetTransactionResult, error) {
	tx, err := v.source.GetTransaction(ctx, sig, v.commitment)
	if err == nil && tx != nil {
		return tx, nil
	}
	if err != nil && !errors.Is(err, rpc.ErrNotFound) {
		return nil, oerrors.NewRPCError(validatorComponent, "get transaction failed", err)
	}

	if v.lookup {
		status, statusErr := v.source.GetSignatureStatus(ctx, sig)
		if statusErr == nil && status != nil && status.Err != nil {
			return nil, oerrors.NewValidationError(validatorComponent, fmt.Sprintf("transaction failed on chain: %v", status.Err))
		}
	}

	v.logger.Debug().Str("signature", sig.String()).Int("attempt", attempt+1).Msg("transaction not visible yet")
	return nil, oerrors.NewNotFoundError(validatorComponent, "transaction not found")
}
