// Package signer produces this node's signature over the canonical encoding
// of an order. Every oracle must derive byte-identical pre-hash material for
// the same order so the on-chain multisig check sees one message.
package signer

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// AddressLength is the width of every chain address, token and nonce field.
const AddressLength = 32

// Protocol holds the constants mixed into every signed message.
type Protocol struct {
	Name            string
	Version         string
	ContractAddress solana.PublicKey
	BpsFee          int
}

// OrderFields is the signed view of an order. Numeric values are range
// checked against their encoded width; byte fields must be exactly 32 bytes.
type OrderFields struct {
	NetworkIn   uint64
	NetworkOut  uint64
	TokenIn     []byte
	TokenOut    []byte
	FromAddress []byte
	ToAddress   []byte
	Amount      string // base-10 u64
	RelayerFee  string // base-10 u64
	Nonce       []byte
}

// KeyLoader returns the node's signing key.
type KeyLoader func() (solana.PrivateKey, error)

// KeypairFileLoader reads a solana-keygen JSON keypair file.
func KeypairFileLoader(path string) KeyLoader {
	return func() (solana.PrivateKey, error) {
		return solana.PrivateKeyFromSolanaKeygenFile(path)
	}
}

// StaticKey wraps an already loaded key.
func StaticKey(key solana.PrivateKey) KeyLoader {
	return func() (solana.PrivateKey, error) { return key, nil }
}

// Signer signs orders with a lazily loaded ed25519 key. It is safe for
// concurrent use.
type Signer struct {
	protocol Protocol
	load     KeyLoader

	once   sync.Once
	key    solana.PrivateKey
	keyErr error
}

func New(protocol Protocol, load KeyLoader) *Signer {
	return &Signer{protocol: protocol, load: load}
}

func (s *Signer) privateKey() (solana.PrivateKey, error) {
	s.once.Do(func() {
		key, err := s.load()
		if err != nil {
			s.keyErr = fmt.Errorf("failed to load signing key: %w", err)
			return
		}
		if len(key) != 64 {
			s.keyErr = fmt.Errorf("signing key must be 64 bytes, got %d", len(key))
			return
		}
		s.key = key
	})
	return s.key, s.keyErr
}

// PublicKey returns the node's oracle public key.
func (s *Signer) PublicKey() (solana.PublicKey, error) {
	key, err := s.privateKey()
	if err != nil {
		return solana.PublicKey{}, err
	}
	return key.PublicKey(), nil
}

// CanonicalBytes returns the exact pre-hash encoding of fields.
func (s *Signer) CanonicalBytes(fields OrderFields) ([]byte, error) {
	return CanonicalBytes(s.protocol, fields)
}

// SignOrder signs sha256(CanonicalBytes(fields)) and returns it base64 encoded.
func (s *Signer) SignOrder(fields OrderFields) (string, error) {
	msg, err := s.CanonicalBytes(fields)
	if err != nil {
		return "", err
	}
	key, err := s.privateKey()
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256(msg)
	sig, err := key.Sign(digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign order: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig[:]), nil
}

// Verify checks a base64 signature over fields against pub.
func (s *Signer) Verify(fields OrderFields, signature string, pub solana.PublicKey) (bool, error) {
	msg, err := s.CanonicalBytes(fields)
	if err != nil {
		return false, err
	}
	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("signature is not base64: %w", err)
	}
	if len(raw) != len(solana.Signature{}) {
		return false, fmt.Errorf("signature must be %d bytes, got %d", len(solana.Signature{}), len(raw))
	}

	digest := sha256.Sum256(msg)
	return solana.SignatureFromBytes(raw).Verify(pub, digest[:]), nil
}

// CanonicalBytes encodes protocol and fields in the fixed order: protocol name,
// protocol version (both u32 length prefixed), contract address, networkIn u32,
// networkOut u32, tokenIn, tokenOut, from, to, amount u64, relayerFee u64,
// bpsFee u16, nonce. Integers are little endian.
func CanonicalBytes(p Protocol, f OrderFields) ([]byte, error) {
	if p.Name == "" || p.Version == "" {
		return nil, fmt.Errorf("protocol name and version are required")
	}
	if err := checkUint(p.BpsFee, math.MaxUint16, "bpsFee"); err != nil {
		return nil, err
	}
	if f.NetworkIn > math.MaxUint32 {
		return nil, fmt.Errorf("networkIn %d does not fit in u32", f.NetworkIn)
	}
	if f.NetworkOut > math.MaxUint32 {
		return nil, fmt.Errorf("networkOut %d does not fit in u32", f.NetworkOut)
	}
	amount, err := ParseU64(f.Amount, "amount")
	if err != nil {
		return nil, err
	}
	relayerFee, err := ParseU64(f.RelayerFee, "relayerFee")
	if err != nil {
		return nil, err
	}
	for _, field := range []struct {
		name string
		b    []byte
	}{
		{"tokenIn", f.TokenIn},
		{"tokenOut", f.TokenOut},
		{"fromAddress", f.FromAddress},
		{"toAddress", f.ToAddress},
		{"nonce", f.Nonce},
	} {
		if len(field.b) != AddressLength {
			return nil, fmt.Errorf("%s must be %d bytes, got %d", field.name, AddressLength, len(field.b))
		}
	}

	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	steps := []func() error{
		func() error { return writeString(enc, p.Name) },
		func() error { return writeString(enc, p.Version) },
		func() error { return enc.WriteBytes(p.ContractAddress[:], false) },
		func() error { return enc.WriteUint32(uint32(f.NetworkIn), bin.LE) },
		func() error { return enc.WriteUint32(uint32(f.NetworkOut), bin.LE) },
		func() error { return enc.WriteBytes(f.TokenIn, false) },
		func() error { return enc.WriteBytes(f.TokenOut, false) },
		func() error { return enc.WriteBytes(f.FromAddress, false) },
		func() error { return enc.WriteBytes(f.ToAddress, false) },
		func() error { return enc.WriteUint64(amount, bin.LE) },
		func() error { return enc.WriteUint64(relayerFee, bin.LE) },
		func() error { return enc.WriteUint16(uint16(p.BpsFee), bin.LE) },
		func() error { return enc.WriteBytes(f.Nonce, false) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("failed to encode order: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func writeString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), bin.LE); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}

func checkUint(v int, max uint64, name string) error {
	if v < 0 || uint64(v) > max {
		return fmt.Errorf("%s %d out of range [0, %d]", name, v, max)
	}
	return nil
}

// ParseU64 parses a base-10 string that must fit in a u64.
func ParseU64(s, name string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%s %q is not a base-10 unsigned integer", name, s)
		}
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, s, err)
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s %s does not fit in u64", name, s)
	}
	return v.Uint64(), nil
}
