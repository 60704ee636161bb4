package svm

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// EventKind is the leading discriminator byte of a bridge program event.
type EventKind uint8

const (
	KindOutbound         EventKind = 0 // Solana -> Qubic transfer requested
	KindInbound          EventKind = 1 // Qubic -> Solana transfer executed
	KindOverrideOutbound EventKind = 2 // destination/fee of an outbound transfer changed
)

// Total encoded sizes including the discriminator byte.
const (
	OutboundEventSize         = 1 + 4 + 4 + 32*4 + 8 + 8 + 32
	InboundEventSize          = 1 + 4 + 4 + 32*4 + 8 + 32
	OverrideOutboundEventSize = 1 + 32 + 8 + 32
)

const programDataPrefix = "Program data: "

func (k EventKind) String() string {
	switch k {
	case KindOutbound:
		return "outbound"
	case KindInbound:
		return "inbound"
	case KindOverrideOutbound:
		return "override_outbound"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseEventKind maps the string form back to a kind.
func ParseEventKind(s string) (EventKind, error) {
	switch s {
	case "outbound":
		return KindOutbound, nil
	case "inbound":
		return KindInbound, nil
	case "override_outbound":
		return KindOverrideOutbound, nil
	default:
		return 0, fmt.Errorf("unknown event type %q", s)
	}
}

// Nonce is the 32 byte per-transfer idempotency key.
type Nonce [32]byte

// Hex returns the lowercase hex form used as the order's source nonce.
func (n Nonce) Hex() string { return hex.EncodeToString(n[:]) }

// ParseNonce accepts a 64 character hex string, with or without 0x prefix.
func ParseNonce(s string) (Nonce, error) {
	var n Nonce
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return n, fmt.Errorf("invalid nonce hex: %w", err)
	}
	if len(raw) != len(n) {
		return n, fmt.Errorf("nonce must be 32 bytes, got %d", len(raw))
	}
	copy(n[:], raw)
	return n, nil
}

type OutboundEvent struct {
	NetworkIn  uint32
	NetworkOut uint32
	TokenIn    solana.PublicKey
	TokenOut   solana.PublicKey
	From       solana.PublicKey
	To         [32]byte // destination chain address
	Amount     uint64
	RelayerFee uint64
	Nonce      Nonce
}

type InboundEvent struct {
	NetworkIn  uint32
	NetworkOut uint32
	TokenIn    [32]byte
	TokenOut   solana.PublicKey
	From       [32]byte // source chain address
	To         solana.PublicKey
	Amount     uint64
	Nonce      Nonce
}

type OverrideOutboundEvent struct {
	To         [32]byte
	RelayerFee uint64
	Nonce      Nonce
}

// DecodedEvent is a tagged union: exactly one payload pointer matching Kind is set.
type DecodedEvent struct {
	Kind             EventKind
	Outbound         *OutboundEvent
	Inbound          *InboundEvent
	OverrideOutbound *OverrideOutboundEvent
}

// Nonce returns the bridge nonce carried by whichever variant is set.
func (e *DecodedEvent) Nonce() Nonce {
	switch e.Kind {
	case KindOutbound:
		return e.Outbound.Nonce
	case KindInbound:
		return e.Inbound.Nonce
	case KindOverrideOutbound:
		return e.OverrideOutbound.Nonce
	}
	return Nonce{}
}

// Equal reports structural, field by field equality.
func (e *DecodedEvent) Equal(other *DecodedEvent) bool {
	if e == nil || other == nil || e.Kind != other.Kind {
		return false
	}
	switch e.Kind {
	case KindOutbound:
		return e.Outbound != nil && other.Outbound != nil && *e.Outbound == *other.Outbound
	case KindInbound:
		return e.Inbound != nil && other.Inbound != nil && *e.Inbound == *other.Inbound
	case KindOverrideOutbound:
		return e.OverrideOutbound != nil && other.OverrideOutbound != nil && *e.OverrideOutbound == *other.OverrideOutbound
	}
	return false
}

// IsKnownEventSize reports whether n matches the size of any known event.
func IsKnownEventSize(n int) bool {
	switch n {
	case OutboundEventSize, InboundEventSize, OverrideOutboundEventSize:
		return true
	}
	return false
}

// DecodeEvent decodes a raw program-data payload. It returns nil for empty
// input, an unknown discriminator or a length that does not match the shape.
func DecodeEvent(data []byte) *DecodedEvent {
	if len(data) == 0 {
		return nil
	}

	kind := EventKind(data[0])
	dec := bin.NewBorshDecoder(data[1:])

	var (
		ev  *DecodedEvent
		err error
	)
	switch kind {
	case KindOutbound:
		if len(data) != OutboundEventSize {
			return nil
		}
		var out OutboundEvent
		err = decodeOutbound(dec, &out)
		ev = &DecodedEvent{Kind: kind, Outbound: &out}
	case KindInbound:
		if len(data) != InboundEventSize {
			return nil
		}
		var in InboundEvent
		err = decodeInbound(dec, &in)
		ev = &DecodedEvent{Kind: kind, Inbound: &in}
	case KindOverrideOutbound:
		if len(data) != OverrideOutboundEventSize {
			return nil
		}
		var ov OverrideOutboundEvent
		err = decodeOverride(dec, &ov)
		ev = &DecodedEvent{Kind: kind, OverrideOutbound: &ov}
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	return ev
}

func decodeOutbound(dec *bin.Decoder, out *OutboundEvent) (err error) {
	if out.NetworkIn, err = dec.ReadUint32(bin.LE); err != nil {
		return err
	}
	if out.NetworkOut, err = dec.ReadUint32(bin.LE); err != nil {
		return err
	}
	for _, dst := range [][]byte{out.TokenIn[:], out.TokenOut[:], out.From[:], out.To[:]} {
		if err = readFixed(dec, dst); err != nil {
			return err
		}
	}
	if out.Amount, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if out.RelayerFee, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	return readFixed(dec, out.Nonce[:])
}

func decodeInbound(dec *bin.Decoder, in *InboundEvent) (err error) {
	if in.NetworkIn, err = dec.ReadUint32(bin.LE); err != nil {
		return err
	}
	if in.NetworkOut, err = dec.ReadUint32(bin.LE); err != nil {
		return err
	}
	for _, dst := range [][]byte{in.TokenIn[:], in.TokenOut[:], in.From[:], in.To[:]} {
		if err = readFixed(dec, dst); err != nil {
			return err
		}
	}
	if in.Amount, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	return readFixed(dec, in.Nonce[:])
}

func decodeOverride(dec *bin.Decoder, ov *OverrideOutboundEvent) (err error) {
	if err = readFixed(dec, ov.To[:]); err != nil {
		return err
	}
	if ov.RelayerFee, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	return readFixed(dec, ov.Nonce[:])
}

func readFixed(dec *bin.Decoder, dst []byte) error {
	b, err := dec.ReadNBytes(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// EncodeEvent produces the program-data payload for ev. It is the inverse of DecodeEvent.
func EncodeEvent(ev *DecodedEvent) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)

	if err := enc.WriteUint8(uint8(ev.Kind)); err != nil {
		return nil, err
	}

	var err error
	switch ev.Kind {
	case KindOutbound:
		if ev.Outbound == nil {
			return nil, fmt.Errorf("outbound payload missing")
		}
		o := ev.Outbound
		err = writeAll(enc,
			u32(o.NetworkIn), u32(o.NetworkOut),
			fixed(o.TokenIn[:]), fixed(o.TokenOut[:]), fixed(o.From[:]), fixed(o.To[:]),
			u64(o.Amount), u64(o.RelayerFee), fixed(o.Nonce[:]))
	case KindInbound:
		if ev.Inbound == nil {
			return nil, fmt.Errorf("inbound payload missing")
		}
		i := ev.Inbound
		err = writeAll(enc,
			u32(i.NetworkIn), u32(i.NetworkOut),
			fixed(i.TokenIn[:]), fixed(i.TokenOut[:]), fixed(i.From[:]), fixed(i.To[:]),
			u64(i.Amount), fixed(i.Nonce[:]))
	case KindOverrideOutbound:
		if ev.OverrideOutbound == nil {
			return nil, fmt.Errorf("override payload missing")
		}
		o := ev.OverrideOutbound
		err = writeAll(enc, fixed(o.To[:]), u64(o.RelayerFee), fixed(o.Nonce[:]))
	default:
		return nil, fmt.Errorf("unknown event kind %d", ev.Kind)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type writeFn func(*bin.Encoder) error

func u32(v uint32) writeFn { return func(e *bin.Encoder) error { return e.WriteUint32(v, bin.LE) } }
func u64(v uint64) writeFn { return func(e *bin.Encoder) error { return e.WriteUint64(v, bin.LE) } }
func fixed(b []byte) writeFn {
	return func(e *bin.Encoder) error { return e.WriteBytes(b, false) }
}

func writeAll(enc *bin.Encoder, fns ...writeFn) error {
	for _, fn := range fns {
		if err := fn(enc); err != nil {
			return err
		}
	}
	return nil
}

// ExtractProgramData returns the base64-decoded payload of every
// "Program data: " log line. Lines that are not valid base64 are skipped.
func ExtractProgramData(logs []string) [][]byte {
	var out [][]byte
	for _, line := range logs {
		if !strings.HasPrefix(line, programDataPrefix) {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(strings.TrimPrefix(line, programDataPrefix)))
		if err != nil {
			continue
		}
		out = append(out, raw)
	}
	return out
}
