// Package registry is the static per-process catalogue of routing
// contracts, loaded once at startup and never mutated afterwards except for
// a handful of memoised read-through caches.
package registry

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/chainbridge-validator/core/internal/rpcpool"
	"github.com/chainbridge-validator/core/internal/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// routingContractABIJSON declares the handful of standard read methods every
// routing contract exposes, independent of the swap-initiation ABI used to
// decode calldata (that ABI is carried per-contract, see Row.ABI).
const routingContractABIJSON = `[
	{"name":"paused","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"bool"}]},
	{"name":"processedTransactions","type":"function","stateMutability":"view","inputs":[{"type":"bytes32"}],"outputs":[{"type":"uint8"}]},
	{"name":"getHashPacked","type":"function","stateMutability":"view","inputs":[{"type":"address"},{"type":"uint256"},{"type":"bytes32"},{"type":"uint256"}],"outputs":[{"type":"bytes32"}]},
	{"name":"existingOtherBlockchain","type":"function","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"bool"}]},
	{"name":"blockchainCryptoFee","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"name":"minConfirmationBlocks","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"name":"blockchainRouter","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
	{"name":"feeAmountOfBlockchain","type":"function","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]}
]`

var routingContractABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(routingContractABIJSON))
	if err != nil {
		panic(fmt.Sprintf("registry: invalid embedded ABI: %v", err))
	}
	routingContractABI = parsed
}

// Row is the persisted shape of one routing contract, as loaded from the
// store's routing_contracts table.
type Row struct {
	BlockchainID   uint64
	ChainName      string
	Address        string // 20-byte EVM hex, or base58 for a Solana destination
	Kind           types.NetworkKind
	ABI            string // swap-initiation function ABI, used by the Signer to decode calldata
	CreationTxHash string
	CreationBlock  uint64
}

// RoutingContract is the in-memory, queryable form of a Row plus memoised
// reads and a parsed calldata ABI.
type RoutingContract struct {
	Row
	CalldataABI abi.ABI

	mu                          sync.Mutex
	pausedCached                bool
	pausedVal                   bool
	minConfirmationBlocksCached bool
	minConfirmationBlocksVal    uint64
}

// Registry is the static catalogue, indexed three ways per spec.md §4.2.
type Registry struct {
	byBlockchainID map[uint64]*RoutingContract
	byAddress      map[string]*RoutingContract // key: chain/address, lowercased
	byChainName    map[string]*RoutingContract
}

// New builds a Registry from rows loaded at startup. A duplicate
// blockchain_id is a fatal data-integrity error, matching spec.md §4.2's
// "multiple hits on uniqueness keys is a fatal data-integrity error".
func New(rows []Row) (*Registry, error) {
	r := &Registry{
		byBlockchainID: make(map[uint64]*RoutingContract, len(rows)),
		byAddress:      make(map[string]*RoutingContract, len(rows)),
		byChainName:    make(map[string]*RoutingContract, len(rows)),
	}

	for _, row := range rows {
		rc := &RoutingContract{Row: row}

		if row.ABI != "" {
			parsed, err := abi.JSON(strings.NewReader(row.ABI))
			if err != nil {
				return nil, fmt.Errorf("registry: invalid calldata ABI for blockchain_id %d: %w", row.BlockchainID, err)
			}
			rc.CalldataABI = parsed
		}

		if _, exists := r.byBlockchainID[row.BlockchainID]; exists {
			return nil, &ErrContractDuplicate{BlockchainID: row.BlockchainID}
		}
		r.byBlockchainID[row.BlockchainID] = rc
		r.byAddress[addressKey(row.ChainName, row.Address)] = rc
		r.byChainName[row.ChainName] = rc
	}

	return r, nil
}

func addressKey(chain, address string) string {
	return strings.ToLower(chain) + "/" + strings.ToLower(address)
}

// ByBlockchainID looks up a routing contract by its globally unique id.
func (r *Registry) ByBlockchainID(id uint64) (*RoutingContract, error) {
	rc, ok := r.byBlockchainID[id]
	if !ok {
		return nil, &ErrContractNotFound{Key: fmt.Sprintf("blockchain_id=%d", id)}
	}
	return rc, nil
}

// ByAddress looks up a routing contract by (chain, address), case-insensitive.
func (r *Registry) ByAddress(chain, address string) (*RoutingContract, error) {
	rc, ok := r.byAddress[addressKey(chain, address)]
	if !ok {
		return nil, &ErrContractNotFound{Key: fmt.Sprintf("%s/%s", chain, address)}
	}
	return rc, nil
}

// ByChainName looks up the routing contract deployed on the named chain.
func (r *Registry) ByChainName(chain string) (*RoutingContract, error) {
	rc, ok := r.byChainName[chain]
	if !ok {
		return nil, &ErrContractNotFound{Key: chain}
	}
	return rc, nil
}

// Paused reports whether the routing contract currently reports itself
// paused. Memoised: the spec treats this as a slow-changing value and this
// registry never refreshes it after a successful read — callers needing a
// live check should restart the process, matching spec.md's "may be
// memoised" license for this field. A failed RPC call is never cached, so a
// transient failure on the first call doesn't wedge every later call behind
// a permanent zero-value/nil-error result.
func (rc *RoutingContract) Paused(ctx context.Context, pool *rpcpool.Pool) (bool, error) {
	rc.mu.Lock()
	if rc.pausedCached {
		v := rc.pausedVal
		rc.mu.Unlock()
		return v, nil
	}
	rc.mu.Unlock()

	out, err := callBool(ctx, pool, rc.Address, "paused")
	if err != nil {
		return false, err
	}

	rc.mu.Lock()
	rc.pausedVal = out
	rc.pausedCached = true
	rc.mu.Unlock()
	return out, nil
}

// MinConfirmationBlocks returns the contract's configured reorg margin,
// memoised on success only; see Paused for why a failed call isn't cached.
func (rc *RoutingContract) MinConfirmationBlocks(ctx context.Context, pool *rpcpool.Pool) (uint64, error) {
	rc.mu.Lock()
	if rc.minConfirmationBlocksCached {
		v := rc.minConfirmationBlocksVal
		rc.mu.Unlock()
		return v, nil
	}
	rc.mu.Unlock()

	out, err := callUint256(ctx, pool, rc.Address, "minConfirmationBlocks")
	if err != nil {
		return 0, err
	}

	rc.mu.Lock()
	rc.minConfirmationBlocksVal = out.Uint64()
	rc.minConfirmationBlocksCached = true
	rc.mu.Unlock()
	return rc.minConfirmationBlocksVal, nil
}

// ProcessedTransactions reads the destination contract's dedupe map: 0 =
// unseen, 1 = processed, 2 = reverted.
func (rc *RoutingContract) ProcessedTransactions(ctx context.Context, pool *rpcpool.Pool, originalTxHash [32]byte) (uint8, error) {
	out, err := pack(routingContractABI, "processedTransactions", originalTxHash)
	if err != nil {
		return 0, err
	}
	result, err := call(ctx, pool, rc.Address, out)
	if err != nil {
		return 0, err
	}
	vals, err := routingContractABI.Unpack("processedTransactions", result)
	if err != nil || len(vals) == 0 {
		return 0, fmt.Errorf("registry: unpack processedTransactions: %w", err)
	}
	return vals[0].(uint8), nil
}

// GetHashPacked asks the destination contract to compute the packed hash it
// will later verify against our signature (spec.md §4.4(f), non-Solana path).
func (rc *RoutingContract) GetHashPacked(ctx context.Context, pool *rpcpool.Pool, newAddress common.Address, amount *big.Int, originalTxHash [32]byte, sourceBlockchainID uint64) ([32]byte, error) {
	var zero [32]byte
	data, err := pack(routingContractABI, "getHashPacked", newAddress, amount, originalTxHash, new(big.Int).SetUint64(sourceBlockchainID))
	if err != nil {
		return zero, err
	}
	result, err := call(ctx, pool, rc.Address, data)
	if err != nil {
		return zero, err
	}
	vals, err := routingContractABI.Unpack("getHashPacked", result)
	if err != nil || len(vals) == 0 {
		return zero, fmt.Errorf("registry: unpack getHashPacked: %w", err)
	}
	return vals[0].([32]byte), nil
}

// ExistingOtherBlockchain reports whether the given blockchain id is
// registered as a reachable destination from this contract.
func (rc *RoutingContract) ExistingOtherBlockchain(ctx context.Context, pool *rpcpool.Pool, blockchainID uint64) (bool, error) {
	data, err := pack(routingContractABI, "existingOtherBlockchain", new(big.Int).SetUint64(blockchainID))
	if err != nil {
		return false, err
	}
	result, err := call(ctx, pool, rc.Address, data)
	if err != nil {
		return false, err
	}
	vals, err := routingContractABI.Unpack("existingOtherBlockchain", result)
	if err != nil || len(vals) == 0 {
		return false, fmt.Errorf("registry: unpack existingOtherBlockchain: %w", err)
	}
	return vals[0].(bool), nil
}

// BlockchainCryptoFee returns the contract's flat native-asset fee.
func (rc *RoutingContract) BlockchainCryptoFee(ctx context.Context, pool *rpcpool.Pool) (*big.Int, error) {
	return callUint256(ctx, pool, rc.Address, "blockchainCryptoFee")
}

// FeeAmountOfBlockchain returns the per-destination fee amount.
func (rc *RoutingContract) FeeAmountOfBlockchain(ctx context.Context, pool *rpcpool.Pool, blockchainID uint64) (*big.Int, error) {
	data, err := pack(routingContractABI, "feeAmountOfBlockchain", new(big.Int).SetUint64(blockchainID))
	if err != nil {
		return nil, err
	}
	result, err := call(ctx, pool, rc.Address, data)
	if err != nil {
		return nil, err
	}
	vals, err := routingContractABI.Unpack("feeAmountOfBlockchain", result)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("registry: unpack feeAmountOfBlockchain: %w", err)
	}
	return vals[0].(*big.Int), nil
}

// BlockchainRouter returns the address routing contract for this entry's own chain.
func (rc *RoutingContract) BlockchainRouter(ctx context.Context, pool *rpcpool.Pool) (common.Address, error) {
	out, err := call(ctx, pool, rc.Address, mustPack(routingContractABI, "blockchainRouter"))
	if err != nil {
		return common.Address{}, err
	}
	vals, err := routingContractABI.Unpack("blockchainRouter", out)
	if err != nil || len(vals) == 0 {
		return common.Address{}, fmt.Errorf("registry: unpack blockchainRouter: %w", err)
	}
	return vals[0].(common.Address), nil
}

func pack(a abi.ABI, method string, args ...interface{}) ([]byte, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("registry: pack %s: %w", method, err)
	}
	return data, nil
}

func mustPack(a abi.ABI, method string, args ...interface{}) []byte {
	data, err := pack(a, method, args...)
	if err != nil {
		panic(err)
	}
	return data
}

func call(ctx context.Context, pool *rpcpool.Pool, address string, data []byte) ([]byte, error) {
	addr := common.HexToAddress(address)
	msg := ethereum.CallMsg{To: &addr, Data: data}
	return pool.CallContract(ctx, msg, nil)
}

func callBool(ctx context.Context, pool *rpcpool.Pool, address, method string) (bool, error) {
	data, err := pack(routingContractABI, method)
	if err != nil {
		return false, err
	}
	out, err := call(ctx, pool, address, data)
	if err != nil {
		return false, err
	}
	vals, err := routingContractABI.Unpack(method, out)
	if err != nil || len(vals) == 0 {
		return false, fmt.Errorf("registry: unpack %s: %w", method, err)
	}
	return vals[0].(bool), nil
}

func callUint256(ctx context.Context, pool *rpcpool.Pool, address, method string) (*big.Int, error) {
	data, err := pack(routingContractABI, method)
	if err != nil {
		return nil, err
	}
	out, err := call(ctx, pool, address, data)
	if err != nil {
		return nil, err
	}
	vals, err := routingContractABI.Unpack(method, out)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("registry: unpack %s: %w", method, err)
	}
	return vals[0].(*big.Int), nil
}
