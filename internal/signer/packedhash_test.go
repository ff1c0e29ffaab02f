package signer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSolanaPackedHash_MatchesManualConcatenation verifies the packed-hash
// layout against an independently built keccak256 input buffer, pinning the
// field order and widths documented in spec §4.4(f).
func TestSolanaPackedHash_MatchesManualConcatenation(t *testing.T) {
	pubkey, err := solana.PublicKeyFromBase58("11111111111111111111111111111111")
	require.NoError(t, err)
	amount := big.NewInt(123456789)
	txHash := common.HexToHash("0xb735a892bc6504976c8d1953d56fa5122546c9bbb3e8770d4083430363285999"[:66])
	blockchainID := uint64(1)

	got, err := solanaPackedHash(pubkey.String(), amount, txHash, blockchainID)
	require.NoError(t, err)

	amountLE, err := packU64LE(amount)
	require.NoError(t, err)
	var blockchainIDLE [8]byte
	blockchainIDLE[0] = byte(blockchainID)

	want := crypto.Keccak256Hash(
		append(append(append(append([]byte{}, pubkey.Bytes()...), amountLE[:]...), txHash.Bytes()...), blockchainIDLE[:]...),
	)

	assert.Equal(t, want, got)
}

// TestPackU64LE_RejectsOverflow guards the Solana packing path against
// amounts that cannot round-trip through a little-endian uint64.
func TestPackU64LE_RejectsOverflow(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 65)
	_, err := packU64LE(tooBig)
	assert.Error(t, err)
}

// TestPackU64LE_RoundTrip confirms the byte order is little-endian.
func TestPackU64LE_RoundTrip(t *testing.T) {
	out, err := packU64LE(big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, [8]byte{1, 0, 0, 0, 0, 0, 0, 0}, out)
}
