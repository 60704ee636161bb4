package signer

import (
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteKeypairFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "oracle.json")
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	require.NoError(t, WriteKeypairFile(path, key))

	loaded, err := KeypairFileLoader(path)()
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), loaded.PublicKey())

	err = WriteKeypairFile(path, key)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	err = WriteKeypairFile(filepath.Join(t.TempDir(), "short.json"), solana.PrivateKey{1, 2, 3})
	require.Error(t, err)
}
