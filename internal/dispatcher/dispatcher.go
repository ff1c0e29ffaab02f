// Package dispatcher forwards completed swap signatures to the relayer and
// retires swaps the destination contract already settled out-of-band,
// generalizing validators/services/functions.py::process_swap's
// lock-check-send sequence into a worker pool polling the store instead of
// draining a Celery queue.
package dispatcher

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/chainbridge-validator/core/internal/monitoring"
	"github.com/chainbridge-validator/core/internal/registry"
	"github.com/chainbridge-validator/core/internal/rpcpool"
	"github.com/chainbridge-validator/core/internal/signer"
	"github.com/chainbridge-validator/core/internal/store"
	"github.com/chainbridge-validator/core/internal/types"
)

// Notifier is the narrow surface the Dispatcher needs from internal/notifier.
type Notifier interface {
	Notify(ctx context.Context, message string)
	NotifyError(ctx context.Context, errName string, args map[string]interface{}, txHash string)
}

// Config tunes the worker pool's polling cadence and relayer endpoint,
// mirroring send_signature_to_relayer's POST target and the validator
// worker count ValidateConfig bounds to [1, 50].
type Config struct {
	RelayerURL   string
	Password     string
	Workers      int
	TickInterval time.Duration
	BatchSize    int
}

// signaturePayload is the wire format send_signature_to_relayer posts:
// validatorName, signature, fromContractNum, fromTxHash, eventName as a JSON
// body, with the shared password carried as a query parameter rather than in
// the body.
type signaturePayload struct {
	ValidatorName   string `json:"validatorName"`
	Signature       string `json:"signature"`
	FromContractNum int    `json:"fromContractNum"`
	FromTxHash      string `json:"fromTxHash"`
	EventName       string `json:"eventName"`
}

// Dispatcher periodically scans non-terminal swaps, checks whether the
// destination contract already recorded the original transaction as
// processed or reverted, and otherwise forwards the swap's signature to the
// relayer.
type Dispatcher struct {
	validatorName string
	store         *store.Store
	registry      *registry.Registry
	pools         map[string]*rpcpool.Pool
	notifier      Notifier
	httpClient    *http.Client
	cfg           Config
	logger        zerolog.Logger
}

// New builds a Dispatcher. pools must contain an entry for every EVM chain
// a destination routing contract may resolve to; Solana destinations are
// read-only record-keeping and are never dialed.
func New(
	validatorName string,
	st *store.Store,
	reg *registry.Registry,
	pools map[string]*rpcpool.Pool,
	notifier Notifier,
	cfg Config,
	logger zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		validatorName: validatorName,
		store:         st,
		registry:      reg,
		pools:         pools,
		notifier:      notifier,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		cfg:           cfg,
		logger:        logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Run ticks on cfg.TickInterval until ctx is cancelled, each tick fanning
// NonTerminalSwaps() out across cfg.Workers goroutines.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	batchSize := d.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	swaps, err := d.store.NonTerminalSwaps(ctx, batchSize)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to list non-terminal swaps")
		return
	}
	if len(swaps) == 0 {
		return
	}

	workers := d.cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan store.ValidatorSwap)
	done := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		go func() {
			for sw := range jobs {
				d.processSwap(ctx, sw)
			}
			done <- struct{}{}
		}()
	}
	for _, sw := range swaps {
		jobs <- sw
	}
	close(jobs)
	for i := 0; i < workers; i++ {
		<-done
	}
}

// processSwap implements process_swap's exact sequence: acquire a NOWAIT row
// lock (skipping on conflict rather than blocking), check the destination
// contract's processed-transaction map, and finally forward the signature to
// the relayer if the swap is still only SignatureCreated.
func (d *Dispatcher) processSwap(ctx context.Context, sw store.ValidatorSwap) {
	tx, err := d.store.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to begin dispatcher transaction")
		return
	}
	defer tx.Rollback()

	locked, err := d.store.LockSwapForUpdate(ctx, tx, sw.ID)
	if errors.Is(err, store.ErrLockConflict) {
		d.logger.Debug().Str("swap_id", sw.ID).Msg("swap model locked, skipping this tick")
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		d.logger.Error().Err(err).Str("swap_id", sw.ID).Msg("failed to lock swap")
		return
	}

	txRow, err := d.store.GetTransactionByID(ctx, locked.TransactionID)
	if err != nil {
		d.logger.Error().Err(err).Str("swap_id", sw.ID).Msg("failed to load source transaction")
		return
	}

	var params signer.SwapParams
	if err := json.Unmarshal(txRow.Data, &params); err != nil {
		d.logger.Error().Err(err).Str("swap_id", sw.ID).Msg("failed to decode swap params")
		return
	}

	destContract, err := d.registry.ByBlockchainID(params.DestBlockchainID)
	if err != nil {
		d.logger.Error().Err(err).Str("swap_id", sw.ID).Msg("failed to resolve destination contract")
		return
	}

	// The status update must run inside tx: the row is locked FOR UPDATE by
	// tx, so an update issued on another connection would wait on that lock.
	setStatus := func(status store.SwapStatus) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE validator_swaps SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2
		`, status, locked.ID)
		return err
	}

	checkErr := d.checkProcessedTransaction(ctx, destContract, locked.FromTxHash)
	var alreadyProcessed *ErrAlreadyProcessed
	var alreadyReverted *ErrAlreadyReverted
	switch {
	case errors.As(checkErr, &alreadyProcessed), errors.As(checkErr, &alreadyReverted):
		outcome := "processed"
		if alreadyReverted != nil {
			outcome = "reverted"
		}
		monitoring.DispatcherAlreadySettled.WithLabelValues(destContract.ChainName, outcome).Inc()
		d.logger.Info().Err(checkErr).Str("swap_id", sw.ID).Msg("destination already settled this transaction out of band")
		if err := setStatus(store.SwapStatusSignatureSend); err != nil {
			d.logger.Error().Err(err).Str("swap_id", sw.ID).Msg("failed to retire already-settled swap")
			return
		}
		if err := tx.Commit(); err != nil {
			d.logger.Error().Err(err).Msg("failed to commit dispatcher transaction")
		}
		return
	case checkErr != nil:
		// A transient RPC failure here is not fatal to this tick; the swap
		// stays non-terminal and is retried on the next pass.
		d.logger.Warn().Err(checkErr).Str("swap_id", sw.ID).Msg("failed to check destination processed-transaction status")
		return
	}

	if locked.Status == store.SwapStatusSignatureCreated {
		if err := d.sendSignatureToRelayer(ctx, locked); err != nil {
			d.logger.Warn().Err(err).Str("swap_id", sw.ID).Msg("failed to forward signature to relayer")
			d.notifier.NotifyError(ctx, "RelayerDispatchError", map[string]interface{}{
				"swap_id":           sw.ID,
				"from_contract_num": sw.FromContractNum,
				"event_name":        sw.EventName,
				"error":             err.Error(),
			}, sw.FromTxHash)
		} else if err := setStatus(store.SwapStatusSignatureSend); err != nil {
			d.logger.Error().Err(err).Str("swap_id", sw.ID).Msg("failed to mark swap as sent")
		} else {
			monitoring.DispatcherSignaturesSent.WithLabelValues(destContract.ChainName).Inc()
		}
	}

	if err := tx.Commit(); err != nil {
		d.logger.Error().Err(err).Msg("failed to commit dispatcher transaction")
	}
}

func (d *Dispatcher) checkProcessedTransaction(ctx context.Context, destContract *registry.RoutingContract, fromTxHash string) error {
	if destContract.Kind != types.NetworkKindEVM {
		return nil
	}
	pool, ok := d.pools[destContract.ChainName]
	if !ok {
		return fmt.Errorf("no RPC pool configured for destination chain %q", destContract.ChainName)
	}

	status, err := destContract.ProcessedTransactions(ctx, pool, common.HexToHash(fromTxHash))
	if err != nil {
		return fmt.Errorf("read processedTransactions: %w", err)
	}
	return classifyProcessedStatus(status, destContract.Address, fromTxHash)
}

// classifyProcessedStatus interprets the destination contract's
// processedTransactions return code: 0 unseen, 1 processed, 2 reverted.
func classifyProcessedStatus(status uint8, contractAddress, fromTxHash string) error {
	switch status {
	case 1:
		return &ErrAlreadyProcessed{Contract: contractAddress, OriginalTxHash: fromTxHash}
	case 2:
		return &ErrAlreadyReverted{Contract: contractAddress, OriginalTxHash: fromTxHash}
	default:
		return nil
	}
}

// sendSignatureToRelayer POSTs the swap's signature to the relayer,
// matching send_signature_to_relayer's payload shape and shared-password
// query parameter.
func (d *Dispatcher) sendSignatureToRelayer(ctx context.Context, sw *store.ValidatorSwap) error {
	payload := signaturePayload{
		ValidatorName:   d.validatorName,
		Signature:       sw.Signature,
		FromContractNum: sw.FromContractNum,
		FromTxHash:      sw.FromTxHash,
		EventName:       sw.EventName,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal signature payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/trades/signatures/", d.cfg.RelayerURL)
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse relayer URL: %w", err)
	}
	q := u.Query()
	q.Set("password", d.cfg.Password)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build relayer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post signature: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relayer responded with status %d", resp.StatusCode)
	}
	return nil
}
