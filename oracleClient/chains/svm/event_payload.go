package svm

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/pushchain/bridge-oracle/oracleClient/signer"
)

// JSON shapes of events as hubs store and serve them. Solana addresses are
// base58, Qubic side addresses and nonces are 32 byte hex, amounts are base-10
// strings.

type OutboundPayload struct {
	NetworkIn   uint32 `json:"networkIn"`
	NetworkOut  uint32 `json:"networkOut"`
	TokenIn     string `json:"tokenIn"`
	TokenOut    string `json:"tokenOut"`
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	Amount      string `json:"amount"`
	RelayerFee  string `json:"relayerFee"`
	Nonce       string `json:"nonce"`
}

type InboundPayload struct {
	NetworkIn   uint32 `json:"networkIn"`
	NetworkOut  uint32 `json:"networkOut"`
	TokenIn     string `json:"tokenIn"`
	TokenOut    string `json:"tokenOut"`
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	Amount      string `json:"amount"`
	Nonce       string `json:"nonce"`
}

type OverrideOutboundPayload struct {
	ToAddress  string `json:"toAddress"`
	RelayerFee string `json:"relayerFee"`
	Nonce      string `json:"nonce"`
}

// ParseEventPayload converts a hub event payload of the given kind into a
// DecodedEvent comparable with events decoded from chain logs.
func ParseEventPayload(kind EventKind, raw json.RawMessage) (*DecodedEvent, error) {
	switch kind {
	case KindOutbound:
		var p OutboundPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid outbound payload: %w", err)
		}
		out, err := p.Event()
		if err != nil {
			return nil, err
		}
		return &DecodedEvent{Kind: kind, Outbound: out}, nil
	case KindInbound:
		var p InboundPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid inbound payload: %w", err)
		}
		in, err := p.Event()
		if err != nil {
			return nil, err
		}
		return &DecodedEvent{Kind: kind, Inbound: in}, nil
	case KindOverrideOutbound:
		var p OverrideOutboundPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid override payload: %w", err)
		}
		ov, err := p.Event()
		if err != nil {
			return nil, err
		}
		return &DecodedEvent{Kind: kind, OverrideOutbound: ov}, nil
	}
	return nil, fmt.Errorf("unknown event kind %d", kind)
}

// EventPayload returns the JSON form of ev.
func EventPayload(ev *DecodedEvent) (json.RawMessage, error) {
	var v any
	switch ev.Kind {
	case KindOutbound:
		v = NewOutboundPayload(ev.Outbound)
	case KindInbound:
		i := ev.Inbound
		v = InboundPayload{
			NetworkIn:   i.NetworkIn,
			NetworkOut:  i.NetworkOut,
			TokenIn:     hex.EncodeToString(i.TokenIn[:]),
			TokenOut:    i.TokenOut.String(),
			FromAddress: hex.EncodeToString(i.From[:]),
			ToAddress:   i.To.String(),
			Amount:      strconv.FormatUint(i.Amount, 10),
			Nonce:       i.Nonce.Hex(),
		}
	case KindOverrideOutbound:
		o := ev.OverrideOutbound
		v = OverrideOutboundPayload{
			ToAddress:  hex.EncodeToString(o.To[:]),
			RelayerFee: strconv.FormatUint(o.RelayerFee, 10),
			Nonce:      o.Nonce.Hex(),
		}
	default:
		return nil, fmt.Errorf("unknown event kind %d", ev.Kind)
	}
	return json.Marshal(v)
}

// NewOutboundPayload returns the JSON form of o.
func NewOutboundPayload(o *OutboundEvent) OutboundPayload {
	return OutboundPayload{
		NetworkIn:   o.NetworkIn,
		NetworkOut:  o.NetworkOut,
		TokenIn:     o.TokenIn.String(),
		TokenOut:    o.TokenOut.String(),
		FromAddress: o.From.String(),
		ToAddress:   hex.EncodeToString(o.To[:]),
		Amount:      strconv.FormatUint(o.Amount, 10),
		RelayerFee:  strconv.FormatUint(o.RelayerFee, 10),
		Nonce:       o.Nonce.Hex(),
	}
}

// Event converts the payload into its decoded form.
func (p OutboundPayload) Event() (*OutboundEvent, error) {
	var (
		out OutboundEvent
		err error
	)
	out.NetworkIn, out.NetworkOut = p.NetworkIn, p.NetworkOut
	if out.TokenIn, err = parseSolanaAddress("tokenIn", p.TokenIn); err != nil {
		return nil, err
	}
	if out.TokenOut, err = parseSolanaAddress("tokenOut", p.TokenOut); err != nil {
		return nil, err
	}
	if out.From, err = parseSolanaAddress("fromAddress", p.FromAddress); err != nil {
		return nil, err
	}
	if out.To, err = ParseForeignAddress(p.ToAddress); err != nil {
		return nil, fmt.Errorf("toAddress: %w", err)
	}
	if out.Amount, err = signer.ParseU64(p.Amount, "amount"); err != nil {
		return nil, err
	}
	if out.RelayerFee, err = signer.ParseU64(p.RelayerFee, "relayerFee"); err != nil {
		return nil, err
	}
	if out.Nonce, err = ParseNonce(p.Nonce); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p InboundPayload) Event() (*InboundEvent, error) {
	var (
		in  InboundEvent
		err error
	)
	in.NetworkIn, in.NetworkOut = p.NetworkIn, p.NetworkOut
	if in.TokenIn, err = ParseForeignAddress(p.TokenIn); err != nil {
		return nil, fmt.Errorf("tokenIn: %w", err)
	}
	if in.TokenOut, err = parseSolanaAddress("tokenOut", p.TokenOut); err != nil {
		return nil, err
	}
	if in.From, err = ParseForeignAddress(p.FromAddress); err != nil {
		return nil, fmt.Errorf("fromAddress: %w", err)
	}
	if in.To, err = parseSolanaAddress("toAddress", p.ToAddress); err != nil {
		return nil, err
	}
	if in.Amount, err = signer.ParseU64(p.Amount, "amount"); err != nil {
		return nil, err
	}
	if in.Nonce, err = ParseNonce(p.Nonce); err != nil {
		return nil, err
	}
	return &in, nil
}

func (p OverrideOutboundPayload) Event() (*OverrideOutboundEvent, error) {
	var (
		ov  OverrideOutboundEvent
		err error
	)
	if ov.To, err = ParseForeignAddress(p.ToAddress); err != nil {
		return nil, fmt.Errorf("toAddress: %w", err)
	}
	if ov.RelayerFee, err = signer.ParseU64(p.RelayerFee, "relayerFee"); err != nil {
		return nil, err
	}
	if ov.Nonce, err = ParseNonce(p.Nonce); err != nil {
		return nil, err
	}
	return &ov, nil
}

func parseSolanaAddress(field, s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%s: invalid solana address: %w", field, err)
	}
	return pk, nil
}

// ParseForeignAddress parses a 32 byte non-Solana address given as hex.
func ParseForeignAddress(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil {
		return out, fmt.Errorf("invalid hex address: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("address must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
