package signer

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbridge-validator/core/internal/store"
)

// TestSignPackedHash_S1 exercises the BSC-to-chain-2 signature fixture taken
// from observed production traffic (spec §8 S1): a fixed packed hash signed
// with a fixed private key must reproduce the exact 65-byte signature.
func TestSignPackedHash_S1(t *testing.T) {
	privateKey, err := crypto.HexToECDSA("e7f76474dcedbd059dfa63c0bcf1ea2d93af0927d7363e6df8a726477d15fd06")
	require.NoError(t, err)

	packedHashBytes, err := hex.DecodeString("4c752a5fbbf4987b78226a0310db6a46d6643b500c90da34e59e61bbbcd4150e")
	require.NoError(t, err)
	var packedHash [32]byte
	copy(packedHash[:], packedHashBytes)

	signature, err := signPackedHash(privateKey, packedHash)
	require.NoError(t, err)

	expected := "11e90d07562b9ed33d422306fbf8817cb733adb29a34187c5d5dcca973e643ea6b5453003f8274a38d57df463b6dc872169e446de374e9a020add6e5e35dbcff1b"
	assert.Equal(t, expected, signature)
	assert.False(t, strings.HasPrefix(signature, "0x"), "signature must not carry a 0x prefix")
	assert.Len(t, signature, 130)
}

// TestSignPackedHash_Deterministic covers P1: the same inputs must always
// produce the same signature, across repeated invocations.
func TestSignPackedHash_Deterministic(t *testing.T) {
	privateKey, err := crypto.HexToECDSA("e7f76474dcedbd059dfa63c0bcf1ea2d93af0927d7363e6df8a726477d15fd06")
	require.NoError(t, err)

	var packedHash [32]byte
	copy(packedHash[:], []byte("deterministic-packed-hash-fixed!"))

	first, err := signPackedHash(privateKey, packedHash)
	require.NoError(t, err)
	second, err := signPackedHash(privateKey, packedHash)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// TestAlreadySigned_SkipsDuplicateDelivery covers P3/S2: a swap that already
// carries a signature must never be re-signed on a second delivery of the
// same event.
func TestAlreadySigned_SkipsDuplicateDelivery(t *testing.T) {
	unsigned := &store.ValidatorSwap{Status: store.SwapStatusCreated}
	assert.False(t, alreadySigned(unsigned))

	signed := &store.ValidatorSwap{
		Status:    store.SwapStatusSignatureCreated,
		Signature: "11e90d07562b9ed33d422306fbf8817cb733adb29a34187c5d5dcca973e643ea6b5453003f8274a38d57df463b6dc872169e446de374e9a020add6e5e35dbcff1b",
	}
	assert.True(t, alreadySigned(signed))
}
