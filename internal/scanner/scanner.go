// Package scanner implements the per-chain block-window scan loop that
// watches a routing contract for swap-initiation events and hands each one
// to the Signer, generalizing the teacher's ticker-based
// internal/listener/evm Listener into the exact from/to/timeout state
// machine scanners/base.py::Scanner.scan runs.
package scanner

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/chainbridge-validator/core/internal/monitoring"
	"github.com/chainbridge-validator/core/internal/registry"
	"github.com/chainbridge-validator/core/internal/rpcpool"
	"github.com/chainbridge-validator/core/internal/signer"
	"github.com/chainbridge-validator/core/internal/store"
)

// Config tunes one Worker's block-window algorithm, the Go-side equivalent
// of BLOCK_RANGE / MIN_CONFIRMATION_BLOCK_COUNT / DEFAULT_SCANNER_TIMEOUT(_FAST).
type Config struct {
	BlockRange            uint64
	MinConfirmationBlocks uint64
	FastTimeout           time.Duration
	SlowTimeout           time.Duration
	RestartBackoff        time.Duration
}

// Handler is the narrow surface a Worker needs from the Signer, declared
// locally so scanner never has to know about Signer's other dependencies.
type Handler interface {
	HandleEvent(ctx context.Context, sourceChain string, sourceContract *registry.RoutingContract, ev signer.ScannedEvent) error
}

// Notifier is the narrow surface a Worker needs from internal/notifier.
type Notifier interface {
	Notify(ctx context.Context, message string)
	NotifyError(ctx context.Context, errName string, args map[string]interface{}, txHash string)
}

// Worker scans one chain's routing contract for swap events, advancing its
// checkpoint at-most-once per window regardless of handler outcome.
type Worker struct {
	chainName  string
	pool       *rpcpool.Pool
	contract   *registry.RoutingContract
	store      *store.Store
	handler    Handler
	notifier   Notifier
	cfg        Config
	startBlock uint64
	logger     zerolog.Logger

	lastProcessedBlock uint64
}

// NewWorker resolves the initial checkpoint per spec.md §4.3's
// initialisation rule: an explicit start_block override takes precedence
// over the highest block already recorded in the store, which in turn takes
// precedence over the contract's own creation block.
func NewWorker(
	ctx context.Context,
	chainName string,
	pool *rpcpool.Pool,
	contract *registry.RoutingContract,
	st *store.Store,
	handler Handler,
	notifier Notifier,
	cfg Config,
	configuredStartBlock uint64,
	logger zerolog.Logger,
) (*Worker, error) {
	w := &Worker{
		chainName: chainName,
		pool:      pool,
		contract:  contract,
		store:     st,
		handler:   handler,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.With().Str("component", "scanner").Str("chain", chainName).Logger(),
	}

	if configuredStartBlock > 0 {
		w.lastProcessedBlock = configuredStartBlock - 1
		return w, nil
	}

	if last, ok, err := st.LastProcessedBlock(ctx, chainName); err != nil {
		return nil, fmt.Errorf("scanner: load last processed block for %s: %w", chainName, err)
	} else if ok {
		w.lastProcessedBlock = last
		return w, nil
	}

	if contract.CreationBlock > 0 {
		w.lastProcessedBlock = contract.CreationBlock - 1
		return w, nil
	}

	w.lastProcessedBlock = 0
	return w, nil
}

// Run executes the scan loop until ctx is cancelled or a fatal, non-retryable
// RPC error occurs (which the Supervisor restarts after a backoff).
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Reset the failover cursor at the top of every iteration so a single
		// flaky call earlier doesn't permanently favor a later endpoint,
		// matching url_number = 0 at the top of scan()'s loop body.
		w.pool.ResetCursor()

		current, err := w.pool.CurrentBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("scanner: %s: fetch current block number: %w", w.chainName, err)
		}

		from := w.lastProcessedBlock + 1

		var tip uint64
		if current > w.cfg.MinConfirmationBlocks {
			tip = current - w.cfg.MinConfirmationBlocks
		}

		diff := int64(tip) - int64(from)

		var to uint64
		var timeout time.Duration

		switch {
		case diff > int64(w.cfg.BlockRange):
			to = from + w.cfg.BlockRange
			timeout = w.cfg.FastTimeout
		case diff <= 0:
			w.logger.Debug().Uint64("from", from).Uint64("tip", tip).Msg("block range is too small, sleeping")
			if err := sleepOrDone(ctx, w.cfg.SlowTimeout); err != nil {
				return err
			}
			continue
		default:
			to = tip
			timeout = w.cfg.SlowTimeout
		}

		if err := w.scanWindow(ctx, from, to); err != nil {
			w.logger.Error().Err(err).Uint64("from", from).Uint64("to", to).Msg("scan window failed")
			w.notifier.NotifyError(ctx, "ScanWindowError", map[string]interface{}{
				"chain": w.chainName,
				"from":  from,
				"to":    to,
				"error": err.Error(),
			}, "")
			// The window's logs were not fully fetched: keep the checkpoint
			// where it is and let the Supervisor retry after its backoff.
			return fmt.Errorf("scanner: %s: scan window [%d, %d]: %w", w.chainName, from, to, err)
		}

		// At-most-once delivery: once the window's logs were fetched, the
		// checkpoint advances even if a handler failed on one of this
		// window's events. A failed signature is recoverable from the
		// persisted Transaction row on next sighting; re-scanning the same
		// window forever is not an option the teacher's scanner offers either.
		w.lastProcessedBlock = to
		monitoring.ScannerBlocksProcessed.WithLabelValues(w.chainName).Add(float64(to - from + 1))
		monitoring.ScannerLastBlockProcessed.WithLabelValues(w.chainName).Set(float64(to))

		if err := sleepOrDone(ctx, timeout); err != nil {
			return err
		}
	}
}

// loggedEvent pairs a raw log with the watched event name it matched, so
// logs fetched across multiple FilterLogs calls (one per event name) can be
// merged back into a single, globally ordered stream.
type loggedEvent struct {
	eventName string
	log       ethtypes.Log
}

// scanWindow fetches every watched event's logs for [from, to], then merges
// and sorts them into (block_number, log_index) order before dispatching to
// the handler, matching spec.md §4.3's "within a single chain, events are
// processed in (block_number, log_index) order" — a single per-event-name
// FilterLogs call does not itself guarantee that order across event types.
func (w *Worker) scanWindow(ctx context.Context, from, to uint64) error {
	var all []loggedEvent

	for _, eventName := range SwapEventNames {
		topic, err := eventTopic(eventName)
		if err != nil {
			return err
		}

		logs, err := w.pool.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{common.HexToAddress(w.contract.Address)},
			Topics:    [][]common.Hash{{topic}},
		})
		if err != nil {
			return fmt.Errorf("filter logs for %s: %w", eventName, err)
		}

		for _, log := range logs {
			if log.Removed {
				continue
			}
			all = append(all, loggedEvent{eventName: eventName, log: log})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].log.BlockNumber != all[j].log.BlockNumber {
			return all[i].log.BlockNumber < all[j].log.BlockNumber
		}
		return all[i].log.Index < all[j].log.Index
	})

	for _, le := range all {
		eventName, log := le.eventName, le.log

		monitoring.ScannerEventsDetected.WithLabelValues(w.chainName, eventName).Inc()

		ev, err := decodeSwapEvent(eventName, w.contract.Address, log)
		if err != nil {
			w.logger.Error().Err(err).Str("tx_hash", log.TxHash.Hex()).Msg("failed to decode swap event")
			w.notifier.NotifyError(ctx, "EventDecodeError", map[string]interface{}{
				"chain": w.chainName,
				"event": eventName,
				"error": err.Error(),
			}, log.TxHash.Hex())
			continue
		}

		if err := w.handler.HandleEvent(ctx, w.chainName, w.contract, ev); err != nil {
			w.logger.Error().Err(err).Str("tx_hash", log.TxHash.Hex()).Str("event", eventName).Msg("handler failed")
			w.notifier.NotifyError(ctx, "SignerHandlerError", map[string]interface{}{
				"chain": w.chainName,
				"event": eventName,
				"error": err.Error(),
			}, log.TxHash.Hex())
		}
	}
	return nil
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Supervisor restarts a Worker's Run loop after a fixed backoff whenever it
// returns a non-context error or panics, the goroutine-per-chain equivalent of the
// teacher's @auto_restart decorator.
type Supervisor struct {
	workers map[string]*Worker
	logger  zerolog.Logger
}

// NewSupervisor builds a Supervisor over the given named workers.
func NewSupervisor(workers map[string]*Worker, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		workers: workers,
		logger:  logger.With().Str("component", "scanner-supervisor").Logger(),
	}
}

// Run starts every Worker in its own goroutine and blocks until ctx is
// cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	done := make(chan struct{})
	remaining := len(s.workers)
	if remaining == 0 {
		<-ctx.Done()
		return
	}

	for name, w := range s.workers {
		go s.superviseOne(ctx, name, w, done)
	}

	for remaining > 0 {
		<-done
		remaining--
	}
}

func (s *Supervisor) superviseOne(ctx context.Context, name string, w *Worker, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	backoff := w.cfg.RestartBackoff
	if backoff <= 0 {
		backoff = 15 * time.Second
	}

	for {
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("scanner: %s: worker panicked: %v", name, r)
				}
			}()
			return w.Run(ctx)
		}()
		if ctx.Err() != nil {
			return
		}
		monitoring.ScannerWorkerRestarts.WithLabelValues(name).Inc()
		s.logger.Error().Err(err).Str("chain", name).Dur("backoff", backoff).Msg("scanner worker crashed, restarting")
		if err := sleepOrDone(ctx, backoff); err != nil {
			return
		}
	}
}
