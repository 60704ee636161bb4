package processor

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pushchain/bridge-oracle/oracleClient/chains/svm"
)

// ErrCorruptSourcePayload is returned when an order's stored source payload
// cannot be parsed into a known variant.
var ErrCorruptSourcePayload = errors.New("corrupt source payload")

const (
	sourcePayloadV1 = 1

	payloadKindSolanaOutbound = "solana_outbound"
)

// SourcePayload is the versioned record of the origin chain fields an order
// was built from. It is what an override re-signs against.
type SourcePayload struct {
	Version        int                    `json:"version"`
	Kind           string                 `json:"kind"`
	SolanaOutbound *SolanaOutboundPayload `json:"solanaOutbound,omitempty"`
}

// SolanaOutboundPayload is the v1 payload of orders created from Solana
// outbound events.
type SolanaOutboundPayload struct {
	svm.OutboundPayload
	TxSignature string `json:"txSignature,omitempty"`
}

func newSolanaOutboundPayload(ev *svm.OutboundEvent, txSignature string) SourcePayload {
	return SourcePayload{
		Version: sourcePayloadV1,
		Kind:    payloadKindSolanaOutbound,
		SolanaOutbound: &SolanaOutboundPayload{
			OutboundPayload: svm.NewOutboundPayload(ev),
			TxSignature:     txSignature,
		},
	}
}

func (p SourcePayload) encode() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode source payload: %w", err)
	}
	return string(raw), nil
}

// parseSourcePayload returns the outbound event an order was created from.
// Every failure wraps ErrCorruptSourcePayload.
func parseSourcePayload(raw string) (*svm.OutboundEvent, string, error) {
	if raw == "" {
		return nil, "", fmt.Errorf("%w: empty", ErrCorruptSourcePayload)
	}
	var p SourcePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCorruptSourcePayload, err)
	}
	switch {
	case p.Version == sourcePayloadV1 && p.Kind == payloadKindSolanaOutbound:
		if p.SolanaOutbound == nil {
			return nil, "", fmt.Errorf("%w: missing %s body", ErrCorruptSourcePayload, p.Kind)
		}
		ev, err := p.SolanaOutbound.Event()
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrCorruptSourcePayload, err)
		}
		return ev, p.SolanaOutbound.TxSignature, nil
	default:
		return nil, "", fmt.Errorf("%w: unsupported version %d kind %q", ErrCorruptSourcePayload, p.Version, p.Kind)
	}
}
