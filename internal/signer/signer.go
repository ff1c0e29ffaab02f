// Package signer reconstructs swap parameters from a scanned bridge event
// and produces the EIP-191 signature the relayer forwards to the
// destination routing contract.
package signer

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chainbridge-validator/core/internal/monitoring"
	"github.com/chainbridge-validator/core/internal/registry"
	"github.com/chainbridge-validator/core/internal/rpcpool"
	"github.com/chainbridge-validator/core/internal/store"
	"github.com/chainbridge-validator/core/internal/types"
)

// Notifier is the narrow surface the Signer needs from internal/notifier,
// declared locally to avoid an import cycle between the two packages.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// ScannedEvent is one bridge-contract event observed by a chain Worker and
// handed to the Signer for parameter reconstruction and signing.
type ScannedEvent struct {
	Name            string
	TransactionHash common.Hash
	LogIndex        uint
	BlockNumber     uint64
	ContractAddress common.Address
	RBCAmountIn     *big.Int
	AmountSpent     *big.Int
}

// Signer is the Parameter Reconstructor: turns a scanned event into a
// materialised Transaction, a created ValidatorSwap, and ultimately a
// signed packed hash persisted back onto that swap.
type Signer struct {
	validatorName    string
	privateKey       *ecdsa.PrivateKey
	store            *store.Store
	registry         *registry.Registry
	pools            map[string]*rpcpool.Pool
	sixDecimalChains SixDecimalChains
	notifier         Notifier
	logger           zerolog.Logger
}

// New builds a Signer. pools is keyed by chain name and must contain an
// entry for every configured EVM chain this validator observes or signs
// towards; Solana never has an entry since it is never dialed.
func New(
	validatorName string,
	privateKey *ecdsa.PrivateKey,
	st *store.Store,
	reg *registry.Registry,
	pools map[string]*rpcpool.Pool,
	sixDecimalChains SixDecimalChains,
	notifier Notifier,
	logger zerolog.Logger,
) *Signer {
	return &Signer{
		validatorName:    validatorName,
		privateKey:       privateKey,
		store:            st,
		registry:         reg,
		pools:            pools,
		sixDecimalChains: sixDecimalChains,
		notifier:         notifier,
		logger:           logger.With().Str("component", "signer").Logger(),
	}
}

// HandleEvent implements spec.md §4.4(a)-(h): materialise the source
// transaction if this is the first sighting, create the owning
// ValidatorSwap, reconstruct swap parameters, compute the packed hash the
// destination contract will later verify, and sign it.
//
// A nil return covers both success and the deliberately-swallowed
// already-signed idempotence skip; callers log and notify on a non-nil
// error, the Scanner's window still advances regardless (at-most-once
// delivery).
func (s *Signer) HandleEvent(ctx context.Context, sourceChain string, sourceContract *registry.RoutingContract, ev ScannedEvent) error {
	start := time.Now()
	defer func() {
		monitoring.SignerSignatureDuration.WithLabelValues(sourceChain).Observe(time.Since(start).Seconds())
	}()

	sourcePool, ok := s.pools[sourceChain]
	if !ok {
		return fmt.Errorf("signer: no RPC pool configured for chain %q", sourceChain)
	}

	txHashHex := ev.TransactionHash.Hex()

	txRow, err := s.store.GetTransactionByHash(ctx, sourceChain, txHashHex)
	if errors.Is(err, store.ErrNotFound) {
		txRow, err = s.materializeTransaction(ctx, sourcePool, sourceChain, sourceContract, ev)
	}
	if err != nil {
		return fmt.Errorf("signer: load transaction %s: %w", txHashHex, err)
	}

	swap, err := s.store.GetSwapByTransactionID(ctx, txRow.ID)
	if errors.Is(err, store.ErrNotFound) {
		swap = &store.ValidatorSwap{
			ID:              uuid.NewString(),
			TransactionID:   txRow.ID,
			FromContractNum: int(sourceContract.BlockchainID),
			FromTxHash:      txHashHex,
			EventName:       ev.Name,
			Status:          store.SwapStatusCreated,
			CreatedAt:       time.Now(),
		}
		err = s.store.CreateSwap(ctx, swap)
	}
	if err != nil {
		return fmt.Errorf("signer: load swap for transaction %s: %w", txHashHex, err)
	}

	// Idempotence: a swap that already carries a signature was fully handled
	// by this or a previous run. Nothing left to do.
	if alreadySigned(swap) {
		return nil
	}

	var params SwapParams
	if err := json.Unmarshal(txRow.Data, &params); err != nil {
		return fmt.Errorf("signer: decode stored swap params for %s: %w", txHashHex, err)
	}

	destContract, err := s.registry.ByBlockchainID(params.DestBlockchainID)
	if err != nil {
		return fmt.Errorf("signer: resolve destination contract for blockchain_id %d: %w", params.DestBlockchainID, err)
	}

	transitAmount := s.sixDecimalChains.TransformAmount(ev.RBCAmountIn, sourceContract.BlockchainID, destContract.BlockchainID)
	if transitAmount.Sign() == 0 {
		return &ErrInvalidSwap{Reason: "normalised transit_token_amount_in is zero"}
	}

	newAddress := params.NewAddress
	var packedHash [32]byte

	if destContract.Kind == types.NetworkKindSolana {
		newAddress, err = rewriteHexToBase58(params.NewAddress)
		if err != nil {
			return fmt.Errorf("signer: rewrite new_address to base58: %w", err)
		}
		var rewrittenSecondPath []string
		rewrittenSecondPath, err = rewriteSecondPath(params.SecondPath)
		if err != nil {
			return fmt.Errorf("signer: rewrite second_path to base58: %w", err)
		}

		// spec.md §4.4(d): the destination wallet and every second_path
		// element are rewritten from hex to base58 before persistence, not
		// just for the in-memory hash computation below.
		params.NewAddress = newAddress
		params.SecondPath = rewrittenSecondPath
		var paramsJSON []byte
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("signer: marshal rewritten swap params: %w", err)
		}
		if err := s.store.UpdateTransactionData(ctx, txRow.ID, paramsJSON); err != nil {
			return fmt.Errorf("signer: persist rewritten swap params for %s: %w", txHashHex, err)
		}

		packedHash, err = solanaPackedHash(newAddress, transitAmount, ev.TransactionHash, sourceContract.BlockchainID)
		if err != nil {
			return fmt.Errorf("signer: compute Solana packed hash: %w", err)
		}
	} else {
		destPool, ok := s.pools[destContract.ChainName]
		if !ok {
			return fmt.Errorf("signer: no RPC pool configured for destination chain %q", destContract.ChainName)
		}
		packedHash, err = destContract.GetHashPacked(
			ctx, destPool, common.HexToAddress(params.NewAddress), transitAmount, ev.TransactionHash, sourceContract.BlockchainID,
		)
		if err != nil {
			return fmt.Errorf("signer: getHashPacked on destination: %w", err)
		}
	}

	signature, err := signPackedHash(s.privateKey, packedHash)
	if err != nil {
		return fmt.Errorf("signer: sign packed hash: %w", err)
	}

	if err := s.store.SetSignature(ctx, swap.ID, signature); err != nil {
		return fmt.Errorf("signer: persist signature for swap %s: %w", swap.ID, err)
	}

	monitoring.SignerSignaturesCreated.WithLabelValues(sourceChain).Inc()
	s.logger.Info().
		Str("tx_hash", txHashHex).
		Str("event", ev.Name).
		Uint64("dest_blockchain_id", params.DestBlockchainID).
		Msg("swap signed")

	return nil
}

// materializeTransaction fetches the raw on-chain transaction for a
// first-sighted event, decodes its calldata against the source routing
// contract's ABI, and persists the result.
func (s *Signer) materializeTransaction(
	ctx context.Context,
	pool *rpcpool.Pool,
	chain string,
	sourceContract *registry.RoutingContract,
	ev ScannedEvent,
) (*store.Transaction, error) {
	tx, pending, err := pool.TransactionByHash(ctx, ev.TransactionHash)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction: %w", err)
	}
	if pending {
		return nil, fmt.Errorf("transaction %s not yet mined", ev.TransactionHash.Hex())
	}

	params, err := ExtractSwapParams(sourceContract.CalldataABI, tx.Data())
	if err != nil {
		return nil, fmt.Errorf("decode swap calldata: %w", err)
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal swap params: %w", err)
	}

	eventJSON, err := json.Marshal(map[string]string{
		"rbc_amount_in": ev.RBCAmountIn.String(),
		"amount_spent":  ev.AmountSpent.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	var blockHash string
	if receipt, err := pool.TransactionReceipt(ctx, ev.TransactionHash); err == nil {
		blockHash = receipt.BlockHash.Hex()
	}

	sender := common.Address{}
	if chainID := tx.ChainId(); chainID != nil {
		if addr, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(chainID), tx); err == nil {
			sender = addr
		}
	}

	receiver := ""
	if tx.To() != nil {
		receiver = tx.To().Hex()
	}

	v, r, sigS := tx.RawSignatureValues()
	gasPrice := tx.GasPrice()
	if gasPrice == nil {
		gasPrice = big.NewInt(0)
	}

	row := &store.Transaction{
		ID:          uuid.NewString(),
		ChainName:   chain,
		BlockNumber: ev.BlockNumber,
		BlockHash:   blockHash,
		Hash:        ev.TransactionHash.Hex(),
		Sender:      sender.Hex(),
		Receiver:    receiver,
		Gas:         tx.Gas(),
		GasPrice:    gasPrice.String(),
		Nonce:       tx.Nonce(),
		SignR:       bigIntString(r),
		SignS:       bigIntString(sigS),
		SignV:       bigIntUint64(v),
		Index:       uint64(ev.LogIndex),
		Type:        fmt.Sprintf("%d", tx.Type()),
		Value:       tx.Value().String(),
		Data:        paramsJSON,
		EventData:   eventJSON,
		CreatedAt:   time.Now(),
	}

	if err := s.store.SaveTransaction(ctx, row); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}
	return row, nil
}

// alreadySigned reports whether a previously-created swap already carries a
// signature, the guard that makes a second delivery of the same event a
// no-op regardless of how many times the scanner re-observes the log.
func alreadySigned(swap *store.ValidatorSwap) bool {
	return swap.Signature != ""
}

func bigIntString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

func bigIntUint64(n *big.Int) uint64 {
	if n == nil {
		return 0
	}
	return n.Uint64()
}

// signPackedHash implements EIP-191 personal-message signing over a
// pre-hashed 32-byte value, matching SignEthereumMessage's prefix-then-sign
// shape applied to a packed hash rather than to arbitrary message bytes.
func signPackedHash(privateKey *ecdsa.PrivateKey, packedHash [32]byte) (string, error) {
	prefix := []byte("\x19Ethereum Signed Message:\n32")
	digest := crypto.Keccak256Hash(append(prefix, packedHash[:]...))

	sig, err := crypto.Sign(digest.Bytes(), privateKey)
	if err != nil {
		return "", fmt.Errorf("ecdsa sign: %w", err)
	}
	// crypto.Sign returns v in {0,1}; Ethereum's personal-sign convention
	// shifts it by 27.
	sig[64] += 27

	return hex.EncodeToString(sig), nil
}
