package hubauth

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// KeySlot is one published hub key.
type KeySlot struct {
	Kid       string `json:"kid"`
	PublicKey string `json:"publicKey"` // base58 ed25519 public key
}

// HubKeySet holds the current key and the key that will replace it, so a hub
// can rotate without downtime.
type HubKeySet struct {
	Current KeySlot  `json:"current"`
	Next    *KeySlot `json:"next,omitempty"`
}

type keyFile struct {
	Hubs map[string]HubKeySet `json:"hubs"`
}

// KeyRing resolves hub public keys by (hub id, kid). Read-only after load.
type KeyRing struct {
	keys map[string]map[string]solana.PublicKey
}

// LoadKeyRing reads a hub key file of the form
//
//	{"hubs": {"hub-1": {"current": {"kid": "...", "publicKey": "..."}, "next": {...}}}}
//
// Any malformed entry fails the whole load.
func LoadKeyRing(path string) (*KeyRing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hub key file: %w", err)
	}
	var file keyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse hub key file: %w", err)
	}
	return NewKeyRing(file.Hubs)
}

// NewKeyRing validates and indexes the given key sets.
func NewKeyRing(hubs map[string]HubKeySet) (*KeyRing, error) {
	if len(hubs) == 0 {
		return nil, fmt.Errorf("hub key set is empty")
	}
	ring := &KeyRing{keys: make(map[string]map[string]solana.PublicKey, len(hubs))}
	for hubID, set := range hubs {
		if !idPattern.MatchString(hubID) {
			return nil, fmt.Errorf("invalid hub id %q", hubID)
		}
		slots := []KeySlot{set.Current}
		if set.Next != nil {
			slots = append(slots, *set.Next)
		}
		byKid := make(map[string]solana.PublicKey, len(slots))
		for _, slot := range slots {
			if !idPattern.MatchString(slot.Kid) {
				return nil, fmt.Errorf("hub %s: invalid kid %q", hubID, slot.Kid)
			}
			if _, dup := byKid[slot.Kid]; dup {
				return nil, fmt.Errorf("hub %s: duplicate kid %q", hubID, slot.Kid)
			}
			pub, err := decodePublicKey(slot.PublicKey)
			if err != nil {
				return nil, fmt.Errorf("hub %s kid %s: %w", hubID, slot.Kid, err)
			}
			byKid[slot.Kid] = pub
		}
		ring.keys[hubID] = byKid
	}
	return ring, nil
}

// Lookup returns the public key for kid, matching either the current or the
// next slot of the hub.
func (k *KeyRing) Lookup(hubID, kid string) (solana.PublicKey, bool) {
	byKid, ok := k.keys[hubID]
	if !ok {
		return solana.PublicKey{}, false
	}
	pub, ok := byKid[kid]
	return pub, ok
}

// Len returns the number of configured hubs.
func (k *KeyRing) Len() int {
	return len(k.keys)
}

func decodePublicKey(s string) (solana.PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid base58 public key: %w", err)
	}
	if len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("public key must be %d bytes, got %d", solana.PublicKeyLength, len(raw))
	}
	return solana.PublicKeyFromBytes(raw), nil
}
