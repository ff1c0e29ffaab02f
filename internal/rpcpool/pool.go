// Package rpcpool provides a failover ring of JSON-RPC endpoints for a
// single chain, generalizing the teacher's executeWithFailover method into a
// reusable type shared by the Scanner, the Registry, and the Signer.
package rpcpool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"strings"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"github.com/chainbridge-validator/core/internal/abivalue"
	"github.com/chainbridge-validator/core/internal/monitoring"
)

// Pool is a rotating ring of RPC clients for one chain. Calls route through
// withFailover, which advances the cursor on a retryable error and resets it
// to 0 once the whole ring has been exhausted in a single call.
type Pool struct {
	chain   string
	clients []*ethclient.Client
	mu      sync.Mutex
	current int
	logger  zerolog.Logger
}

// NewPool dials every endpoint eagerly, matching the teacher's NewClient
// behavior of connecting all configured RPC endpoints up front.
func NewPool(chain string, endpoints []string, logger zerolog.Logger) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("rpcpool: chain %q has no RPC endpoints configured", chain)
	}

	p := &Pool{
		chain:  chain,
		logger: logger.With().Str("component", "rpcpool").Str("chain", chain).Logger(),
	}

	for i, endpoint := range endpoints {
		c, err := ethclient.Dial(endpoint)
		if err != nil {
			p.logger.Warn().Err(err).Int("index", i).Str("endpoint", endpoint).
				Msg("failed to dial RPC endpoint")
			continue
		}
		p.clients = append(p.clients, c)
	}

	if len(p.clients) == 0 {
		return nil, fmt.Errorf("rpcpool: chain %q: failed to connect to any RPC endpoint", chain)
	}

	return p, nil
}

// ResetCursor returns the pool to its first endpoint. The Scanner calls this
// at the top of every iteration so a prior rotation caused by a single flaky
// call doesn't permanently favor a later endpoint.
func (p *Pool) ResetCursor() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = 0
}

func (p *Pool) client() *ethclient.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clients[p.current%len(p.clients)]
}

func (p *Pool) advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = (p.current + 1) % len(p.clients)
}

// withFailover retries fn against each endpoint in turn, advancing the
// cursor after a retryable error. It returns ErrAllEndpointsUnavailable and
// resets the cursor to 0 once every endpoint has failed.
func (p *Pool) withFailover(ctx context.Context, fn func(*ethclient.Client) error) error {
	attempts := len(p.clients)
	var lastErr error

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		c := p.client()
		err := fn(c)
		if err == nil {
			return nil
		}

		lastErr = err
		if !isRetryable(err) {
			return err
		}

		p.logger.Warn().Err(err).Int("attempt", i+1).Msg("RPC call failed, rotating endpoint")
		monitoring.RPCPoolRotations.WithLabelValues(p.chain).Inc()
		p.advance()
	}

	p.mu.Lock()
	p.current = 0
	p.mu.Unlock()

	monitoring.RPCPoolExhausted.WithLabelValues(p.chain).Inc()
	return &ErrAllEndpointsUnavailable{Chain: p.chain, Last: lastErr}
}

// isRetryable mirrors reset_connection's exception allow-list: network
// timeouts, connection failures, TLS errors, HTTP error statuses, and
// malformed RPC responses rotate to the next endpoint; anything else (a
// reverted call, bad arguments) is a fatal, non-retryable error.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"tls",
		"timeout",
		"eof",
		"not connected",
		"bad function call output",
		"invalid character",
		"unexpected end of json input",
	} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// CurrentBlockNumber returns the chain's latest block number.
func (p *Pool) CurrentBlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := p.withFailover(ctx, func(c *ethclient.Client) error {
		var callErr error
		n, callErr = c.BlockNumber(ctx)
		return callErr
	})
	return n, err
}

// FilterLogs returns logs matching q, rotating endpoints on failure.
func (p *Pool) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	var logs []ethtypes.Log
	err := p.withFailover(ctx, func(c *ethclient.Client) error {
		var callErr error
		logs, callErr = c.FilterLogs(ctx, q)
		return callErr
	})
	return logs, err
}

// TransactionByHash fetches a transaction and whether it is still pending.
func (p *Pool) TransactionByHash(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error) {
	var tx *ethtypes.Transaction
	var pending bool
	err := p.withFailover(ctx, func(c *ethclient.Client) error {
		var callErr error
		tx, pending, callErr = c.TransactionByHash(ctx, hash)
		return callErr
	})
	return tx, pending, err
}

// TransactionReceipt fetches a transaction's receipt.
func (p *Pool) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	var receipt *ethtypes.Receipt
	err := p.withFailover(ctx, func(c *ethclient.Client) error {
		var callErr error
		receipt, callErr = c.TransactionReceipt(ctx, hash)
		return callErr
	})
	return receipt, err
}

// CallContract performs an eth_call against msg at the given block (nil for
// "latest"), used by the Registry for read-only contract methods.
func (p *Pool) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := p.withFailover(ctx, func(c *ethclient.Client) error {
		var callErr error
		out, callErr = c.CallContract(ctx, msg, blockNumber)
		return callErr
	})
	return out, err
}

// WaitForReceipt polls for a transaction's receipt until it is mined, the
// timeout elapses, or the context is cancelled, generalizing the teacher's
// confirmation-polling loop into a pool-aware helper the Dispatcher and
// Signer can share.
func (p *Pool) WaitForReceipt(ctx context.Context, hash common.Hash, timeout, pollInterval time.Duration) (*ethtypes.Receipt, error) {
	deadline := time.Now().Add(timeout)
	for {
		receipt, err := p.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("rpcpool: timed out waiting for receipt of %s", hash.Hex())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// GetBalance returns the native-token balance of addr at the latest block.
func (p *Pool) GetBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var balance *big.Int
	err := p.withFailover(ctx, func(c *ethclient.Client) error {
		var callErr error
		balance, callErr = c.BalanceAt(ctx, addr, nil)
		return callErr
	})
	return balance, err
}

// GetNonce returns addr's transaction count, either confirmed or including
// pending transactions.
func (p *Pool) GetNonce(ctx context.Context, addr common.Address, pending bool) (uint64, error) {
	var nonce uint64
	err := p.withFailover(ctx, func(c *ethclient.Client) error {
		var callErr error
		if pending {
			nonce, callErr = c.PendingNonceAt(ctx, addr)
		} else {
			nonce, callErr = c.NonceAt(ctx, addr, nil)
		}
		return callErr
	})
	return nonce, err
}

// SendRawTransaction broadcasts an already-signed, RLP-encoded transaction.
func (p *Pool) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var tx ethtypes.Transaction
	if err := rlp.DecodeBytes(raw, &tx); err != nil {
		return common.Hash{}, fmt.Errorf("rpcpool: decode raw transaction: %w", err)
	}
	err := p.withFailover(ctx, func(c *ethclient.Client) error {
		return c.SendTransaction(ctx, &tx)
	})
	return tx.Hash(), err
}

// DecodeCallInput decodes a hex-encoded calldata payload against contractABI,
// returning the resolved method name and its arguments as canonical Value
// records, generalizing decode_function_input for ad-hoc inspection outside
// the Signer's fixed swap-tuple path.
func DecodeCallInput(contractABI abi.ABI, inputHex string) (string, []abivalue.Value, error) {
	data := common.FromHex(inputHex)
	if len(data) < 4 {
		return "", nil, fmt.Errorf("rpcpool: calldata too short to carry a function selector")
	}
	method, err := contractABI.MethodById(data[:4])
	if err != nil {
		return "", nil, fmt.Errorf("rpcpool: unrecognised function selector %x: %w", data[:4], err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, fmt.Errorf("rpcpool: unpack calldata for %s: %w", method.Name, err)
	}
	values := make([]abivalue.Value, len(args))
	for i, a := range args {
		v, err := abivalue.FromAny(a)
		if err != nil {
			return "", nil, fmt.Errorf("rpcpool: argument %d of %s: %w", i, method.Name, err)
		}
		values[i] = v
	}
	return method.Name, values, nil
}

// Close closes every dialed client.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.clients {
		c.Close()
	}
}
