package signer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
)

// WriteKeypairFile stores key in the solana-keygen format (a JSON array of the
// 64 key bytes). An existing file is never overwritten.
func WriteKeypairFile(path string, key solana.PrivateKey) error {
	if len(key) != 64 {
		return fmt.Errorf("invalid private key length %d", len(key))
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("keypair file %s already exists", path)
	}

	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
