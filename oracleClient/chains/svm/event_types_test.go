package svm

import (
	"encoding/base64"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(b byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = b
	}
	return out
}

func sampleOutbound() *DecodedEvent {
	return &DecodedEvent{
		Kind: KindOutbound,
		Outbound: &OutboundEvent{
			NetworkIn:  1,
			NetworkOut: 2,
			TokenIn:    solana.PublicKey(fill(0xaa)),
			TokenOut:   solana.PublicKey(fill(0xbb)),
			From:       solana.PublicKey(fill(0xcc)),
			To:         fill(0xdd),
			Amount:     1000000,
			RelayerFee: 500,
			Nonce:      Nonce(fill(0x11)),
		},
	}
}

func TestEventSizes(t *testing.T) {
	assert.Equal(t, 185, OutboundEventSize)
	assert.Equal(t, 177, InboundEventSize)
	assert.Equal(t, 73, OverrideOutboundEventSize)

	assert.True(t, IsKnownEventSize(185))
	assert.True(t, IsKnownEventSize(177))
	assert.True(t, IsKnownEventSize(73))
	assert.False(t, IsKnownEventSize(0))
	assert.False(t, IsKnownEventSize(184))
}

func TestDecodeEvent_Outbound(t *testing.T) {
	data, err := EncodeEvent(sampleOutbound())
	require.NoError(t, err)
	require.Len(t, data, OutboundEventSize)

	// networkIn is little endian right after the discriminator
	assert.Equal(t, []byte{0, 1, 0, 0, 0}, data[:5])

	ev := DecodeEvent(data)
	require.NotNil(t, ev)
	assert.Equal(t, KindOutbound, ev.Kind)
	require.NotNil(t, ev.Outbound)
	assert.Nil(t, ev.Inbound)
	assert.Nil(t, ev.OverrideOutbound)
	assert.Equal(t, uint64(1000000), ev.Outbound.Amount)
	assert.Equal(t, uint64(500), ev.Outbound.RelayerFee)
	assert.Equal(t, "1111111111111111111111111111111111111111111111111111111111111111", ev.Nonce().Hex())
	assert.True(t, ev.Equal(sampleOutbound()))
}

func TestDecodeEvent_InboundAndOverride(t *testing.T) {
	inbound := &DecodedEvent{
		Kind: KindInbound,
		Inbound: &InboundEvent{
			NetworkIn:  2,
			NetworkOut: 1,
			TokenIn:    fill(0x01),
			TokenOut:   solana.PublicKey(fill(0x02)),
			From:       fill(0x03),
			To:         solana.PublicKey(fill(0x04)),
			Amount:     42,
			Nonce:      Nonce(fill(0x05)),
		},
	}
	data, err := EncodeEvent(inbound)
	require.NoError(t, err)
	require.Len(t, data, InboundEventSize)
	assert.True(t, DecodeEvent(data).Equal(inbound))

	override := &DecodedEvent{
		Kind: KindOverrideOutbound,
		OverrideOutbound: &OverrideOutboundEvent{
			To:         fill(0x09),
			RelayerFee: 7,
			Nonce:      Nonce(fill(0x11)),
		},
	}
	data, err = EncodeEvent(override)
	require.NoError(t, err)
	require.Len(t, data, OverrideOutboundEventSize)
	decoded := DecodeEvent(data)
	require.NotNil(t, decoded)
	assert.True(t, decoded.Equal(override))
	assert.Equal(t, Nonce(fill(0x11)), decoded.Nonce())
}

func TestDecodeEvent_FailsClosed(t *testing.T) {
	valid, err := EncodeEvent(sampleOutbound())
	require.NoError(t, err)

	unknown := append([]byte(nil), valid...)
	unknown[0] = 9

	// an outbound-sized payload tagged as override
	mislabeled := append([]byte(nil), valid...)
	mislabeled[0] = byte(KindOverrideOutbound)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "nil", data: nil},
		{name: "empty", data: []byte{}},
		{name: "discriminator only", data: []byte{0}},
		{name: "truncated", data: valid[:len(valid)-1]},
		{name: "oversized", data: append(append([]byte(nil), valid...), 0)},
		{name: "unknown discriminator", data: unknown},
		{name: "wrong shape for discriminator", data: mislabeled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Nil(t, DecodeEvent(tt.data))
			})
		})
	}
}

func TestDecodedEvent_Equal(t *testing.T) {
	a := sampleOutbound()
	b := sampleOutbound()
	assert.True(t, a.Equal(b))

	b.Outbound.RelayerFee++
	assert.False(t, a.Equal(b))

	assert.False(t, a.Equal(nil))
	assert.False(t, a.Equal(&DecodedEvent{Kind: KindInbound}))
}

func TestExtractProgramData(t *testing.T) {
	payload := []byte{1, 2, 3}
	logs := []string{
		"Program BridgeProgram invoke [1]",
		"Program data: " + base64.StdEncoding.EncodeToString(payload),
		"Program data: !!!not-base64",
		"Program log: hello",
	}

	out := ExtractProgramData(logs)
	require.Len(t, out, 1)
	assert.Equal(t, payload, out[0])
}

func TestParseNonce(t *testing.T) {
	n, err := ParseNonce("0x" + Nonce(fill(0xab)).Hex())
	require.NoError(t, err)
	assert.Equal(t, Nonce(fill(0xab)), n)

	_, err = ParseNonce("abcd")
	assert.Error(t, err)

	_, err = ParseNonce("zz")
	assert.Error(t, err)
}

func TestEventKindRoundTrip(t *testing.T) {
	for _, k := range []EventKind{KindOutbound, KindInbound, KindOverrideOutbound} {
		parsed, err := ParseEventKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseEventKind("nope")
	assert.Error(t, err)
}
