package scanner

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/chainbridge-validator/core/internal/signer"
)

// swapEventABIJSON declares the two bridge events a Worker watches for. Both
// carry the same non-indexed payload the Signer needs — RBCAmountIn (the
// transit-token amount the user deposited) and amountSpent (the amount the
// router actually pulled after slippage) — matching
// VALIDATOR_HANDLERS sharing a single handler for both names.
const swapEventABIJSON = `[
	{"anonymous":false,"name":"TransferTokensToOtherBlockchainUser","type":"event","inputs":[
		{"indexed":true,"name":"user","type":"address"},
		{"indexed":false,"name":"RBCAmountIn","type":"uint256"},
		{"indexed":false,"name":"amountSpent","type":"uint256"}
	]},
	{"anonymous":false,"name":"TransferCryptoToOtherBlockchainUser","type":"event","inputs":[
		{"indexed":true,"name":"user","type":"address"},
		{"indexed":false,"name":"RBCAmountIn","type":"uint256"},
		{"indexed":false,"name":"amountSpent","type":"uint256"}
	]}
]`

// SwapEventNames is the fixed set of events every Worker subscribes to,
// mirroring VALIDATOR_HANDLERS's key set.
var SwapEventNames = []string{
	"TransferTokensToOtherBlockchainUser",
	"TransferCryptoToOtherBlockchainUser",
}

var swapEventABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(swapEventABIJSON))
	if err != nil {
		panic(fmt.Sprintf("scanner: invalid embedded event ABI: %v", err))
	}
	swapEventABI = parsed
}

// eventTopic returns the keccak256 topic0 for a watched event name.
func eventTopic(name string) (common.Hash, error) {
	ev, ok := swapEventABI.Events[name]
	if !ok {
		return common.Hash{}, fmt.Errorf("scanner: unknown event %q", name)
	}
	return ev.ID, nil
}

// decodeSwapEvent unpacks a log's non-indexed fields into the RBCAmountIn /
// amountSpent pair and builds the ScannedEvent the Signer consumes.
func decodeSwapEvent(eventName string, contractAddress string, log ethtypes.Log) (signer.ScannedEvent, error) {
	ev, ok := swapEventABI.Events[eventName]
	if !ok {
		return signer.ScannedEvent{}, fmt.Errorf("scanner: unknown event %q", eventName)
	}

	values, err := ev.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return signer.ScannedEvent{}, fmt.Errorf("scanner: unpack %s log data: %w", eventName, err)
	}
	if len(values) != 2 {
		return signer.ScannedEvent{}, fmt.Errorf("scanner: %s log has %d non-indexed fields, expected 2", eventName, len(values))
	}

	rbcAmountIn, ok := values[0].(*big.Int)
	if !ok {
		return signer.ScannedEvent{}, fmt.Errorf("scanner: %s RBCAmountIn is not a uint256", eventName)
	}
	amountSpent, ok := values[1].(*big.Int)
	if !ok {
		return signer.ScannedEvent{}, fmt.Errorf("scanner: %s amountSpent is not a uint256", eventName)
	}

	return signer.ScannedEvent{
		Name:            eventName,
		TransactionHash: log.TxHash,
		LogIndex:        log.Index,
		BlockNumber:     log.BlockNumber,
		ContractAddress: log.Address,
		RBCAmountIn:     rbcAmountIn,
		AmountSpent:     amountSpent,
	}, nil
}
