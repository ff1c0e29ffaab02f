package signer

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
)

// packU64LE encodes amount as 8 little-endian bytes, matching the original's
// borsh_construct.U64.build(...) packing.
func packU64LE(amount *big.Int) ([8]byte, error) {
	var out [8]byte
	if !amount.IsUint64() {
		return out, fmt.Errorf("signer: amount %s does not fit in uint64 for Solana hash packing", amount.String())
	}
	binary.LittleEndian.PutUint64(out[:], amount.Uint64())
	return out, nil
}

// solanaPackedHash computes keccak256(pubkey(32) || u64le(amount)(8) ||
// txHash(32) || u64le(blockchainID)(8)), matching get_hash_packed_solana.
func solanaPackedHash(newAddressBase58 string, amount *big.Int, originalTxHash common.Hash, blockchainID uint64) ([32]byte, error) {
	pubkey, err := solana.PublicKeyFromBase58(newAddressBase58)
	if err != nil {
		return [32]byte{}, fmt.Errorf("signer: invalid Solana address %q: %w", newAddressBase58, err)
	}

	amountLE, err := packU64LE(amount)
	if err != nil {
		return [32]byte{}, err
	}

	var blockchainIDLE [8]byte
	binary.LittleEndian.PutUint64(blockchainIDLE[:], blockchainID)

	buf := make([]byte, 0, 32+8+32+8)
	buf = append(buf, pubkey.Bytes()...)
	buf = append(buf, amountLE[:]...)
	buf = append(buf, originalTxHash.Bytes()...)
	buf = append(buf, blockchainIDLE[:]...)

	return crypto.Keccak256Hash(buf), nil
}
