package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// SwapStatus is the monotonic status a ValidatorSwap progresses through,
// matching validators/models.py's status constants exactly.
type SwapStatus string

const (
	SwapStatusCreated            SwapStatus = "created"
	SwapStatusWaitingForData     SwapStatus = "waiting for data"
	SwapStatusSignatureCreated   SwapStatus = "signature created"
	SwapStatusSignatureSend      SwapStatus = "signature send"
	SwapStatusSuccess            SwapStatus = "success"
)

// statusOrder ranks statuses so callers can assert forward-only transitions.
var statusOrder = map[SwapStatus]int{
	SwapStatusCreated:          0,
	SwapStatusWaitingForData:   1,
	SwapStatusSignatureCreated: 2,
	SwapStatusSignatureSend:    3,
	SwapStatusSuccess:          4,
}

// IsForwardTransition reports whether moving from `from` to `to` respects
// the monotonic status ordering (spec.md P2).
func IsForwardTransition(from, to SwapStatus) bool {
	return statusOrder[to] >= statusOrder[from]
}

// ValidatorSwap is the persisted record of one cross-chain signing task,
// grounded on validators/models.py::ValidatorSwap.
type ValidatorSwap struct {
	ID              string
	TransactionID   string
	FromContractNum int
	FromTxHash      string
	EventName       string
	Status          SwapStatus
	Signature       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateSwap inserts a new swap in the Created state, doing nothing if one
// already exists for this transaction (unique on transaction_id) — the
// get-or-create semantics of ValidatorSwap.create_swap.
func (s *Store) CreateSwap(ctx context.Context, swap *ValidatorSwap) error {
	query := `
		INSERT INTO validator_swaps (
			id, transaction_id, from_contract_num, from_tx_hash, event_name,
			status, signature, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	_, err := s.ExecContext(ctx, query,
		swap.ID, swap.TransactionID, swap.FromContractNum, swap.FromTxHash, swap.EventName,
		SwapStatusCreated, "", swap.CreatedAt, swap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create swap: %w", err)
	}
	return nil
}

// GetSwapByTransactionID fetches a swap by its owning transaction.
func (s *Store) GetSwapByTransactionID(ctx context.Context, transactionID string) (*ValidatorSwap, error) {
	query := `
		SELECT id, transaction_id, from_contract_num, from_tx_hash, event_name,
			status, signature, created_at, updated_at
		FROM validator_swaps
		WHERE transaction_id = $1
	`
	var sw ValidatorSwap
	err := s.QueryRowContext(ctx, query, transactionID).Scan(
		&sw.ID, &sw.TransactionID, &sw.FromContractNum, &sw.FromTxHash, &sw.EventName,
		&sw.Status, &sw.Signature, &sw.CreatedAt, &sw.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get swap: %w", err)
	}
	return &sw, nil
}

// SetSignature stores the computed signature and advances the swap to
// SignatureCreated.
func (s *Store) SetSignature(ctx context.Context, swapID, signature string) error {
	_, err := s.ExecContext(ctx, `
		UPDATE validator_swaps
		SET signature = $1, status = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`, signature, SwapStatusSignatureCreated, swapID)
	if err != nil {
		return fmt.Errorf("failed to set swap signature: %w", err)
	}
	return nil
}

// SetStatus advances a swap to a new status.
func (s *Store) SetStatus(ctx context.Context, swapID string, status SwapStatus) error {
	_, err := s.ExecContext(ctx, `
		UPDATE validator_swaps SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2
	`, status, swapID)
	if err != nil {
		return fmt.Errorf("failed to update swap status: %w", err)
	}
	return nil
}

// NonTerminalSwaps enumerates swaps not yet in Success or SignatureSend,
// mirroring validators/tasks.py::update_swaps_task's selection query.
func (s *Store) NonTerminalSwaps(ctx context.Context, limit int) ([]ValidatorSwap, error) {
	query := `
		SELECT id, transaction_id, from_contract_num, from_tx_hash, event_name,
			status, signature, created_at, updated_at
		FROM validator_swaps
		WHERE status NOT IN ($1, $2)
		ORDER BY created_at ASC
		LIMIT $3
	`
	rows, err := s.QueryContext(ctx, query, SwapStatusSuccess, SwapStatusSignatureSend, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list non-terminal swaps: %w", err)
	}
	defer rows.Close()

	var swaps []ValidatorSwap
	for rows.Next() {
		var sw ValidatorSwap
		if err := rows.Scan(
			&sw.ID, &sw.TransactionID, &sw.FromContractNum, &sw.FromTxHash, &sw.EventName,
			&sw.Status, &sw.Signature, &sw.CreatedAt, &sw.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan swap: %w", err)
		}
		swaps = append(swaps, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating swaps: %w", err)
	}
	return swaps, nil
}

// LockSwapForUpdate acquires a SELECT ... FOR UPDATE NOWAIT lock on a swap
// row within tx, returning ErrLockConflict rather than blocking if another
// dispatcher worker already holds it (validators/services/functions.py's
// select_for_update(nowait=True) / OperationalError handling).
func (s *Store) LockSwapForUpdate(ctx context.Context, tx *sql.Tx, swapID string) (*ValidatorSwap, error) {
	query := `
		SELECT id, transaction_id, from_contract_num, from_tx_hash, event_name,
			status, signature, created_at, updated_at
		FROM validator_swaps
		WHERE id = $1
		FOR UPDATE NOWAIT
	`
	var sw ValidatorSwap
	err := tx.QueryRowContext(ctx, query, swapID).Scan(
		&sw.ID, &sw.TransactionID, &sw.FromContractNum, &sw.FromTxHash, &sw.EventName,
		&sw.Status, &sw.Signature, &sw.CreatedAt, &sw.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "55P03" {
		return nil, ErrLockConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock swap: %w", err)
	}
	return &sw, nil
}
