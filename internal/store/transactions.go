package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Transaction is the persisted record of a scanned bridge-contract event,
// grounded on networks/models.py's Transaction model.
type Transaction struct {
	ID          string
	ChainName   string
	BlockNumber uint64
	BlockHash   string
	Hash        string
	Sender      string
	Receiver    string
	Gas         uint64
	GasPrice    string
	Nonce       uint64
	SignR       string
	SignS       string
	SignV       uint64
	Index       uint64
	Type        string
	Value       string
	Data        []byte // JSON-encoded signer.SwapParams (the fixed-position swap fields only; the full decoded calldata tree is not stored)
	EventData   []byte // JSON-encoded decoded event args
	Logs        []byte // JSON-encoded raw log entries
	CreatedAt   time.Time
}

// SaveTransaction inserts a Transaction, doing nothing if the (chain_name,
// hash) pair already exists — the Scanner may legitimately re-observe a log
// after a restart and must not fail on the duplicate insert.
func (s *Store) SaveTransaction(ctx context.Context, tx *Transaction) error {
	query := `
		INSERT INTO transactions (
			id, chain_name, block_number, block_hash, hash, sender, receiver,
			gas, gas_price, nonce, sign_r, sign_s, sign_v, tx_index, tx_type,
			value, data, event_data, logs, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (chain_name, hash) DO NOTHING
	`
	logs := tx.Logs
	if logs == nil {
		logs = []byte("[]")
	}
	_, err := s.ExecContext(ctx, query,
		tx.ID, tx.ChainName, tx.BlockNumber, tx.BlockHash, tx.Hash, tx.Sender, tx.Receiver,
		tx.Gas, tx.GasPrice, tx.Nonce, tx.SignR, tx.SignS, tx.SignV, tx.Index, tx.Type,
		tx.Value, tx.Data, tx.EventData, logs, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// UpdateTransactionData overwrites the decoded calldata JSON for an
// already-persisted transaction, used by the Signer to commit the Solana
// base58 address rewrite (spec.md §4.4(d)) before the packed hash is
// computed, mirroring ValidatorSwap.create_swap's
// source_transaction.save(update_fields=('data',)) after mutating
// source_transaction.data['params'] in place.
func (s *Store) UpdateTransactionData(ctx context.Context, id string, data []byte) error {
	_, err := s.ExecContext(ctx, `UPDATE transactions SET data = $1 WHERE id = $2`, data, id)
	if err != nil {
		return fmt.Errorf("failed to update transaction data: %w", err)
	}
	return nil
}

// GetTransactionByHash retrieves a transaction by chain and hash.
func (s *Store) GetTransactionByHash(ctx context.Context, chainName, hash string) (*Transaction, error) {
	query := `
		SELECT id, chain_name, block_number, block_hash, hash, sender, receiver,
			gas, gas_price, nonce, sign_r, sign_s, sign_v, tx_index, tx_type,
			value, data, event_data, logs, created_at
		FROM transactions
		WHERE chain_name = $1 AND hash = $2
	`
	var tx Transaction
	err := s.QueryRowContext(ctx, query, chainName, hash).Scan(
		&tx.ID, &tx.ChainName, &tx.BlockNumber, &tx.BlockHash, &tx.Hash, &tx.Sender, &tx.Receiver,
		&tx.Gas, &tx.GasPrice, &tx.Nonce, &tx.SignR, &tx.SignS, &tx.SignV, &tx.Index, &tx.Type,
		&tx.Value, &tx.Data, &tx.EventData, &tx.Logs, &tx.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

// GetTransactionByID retrieves a transaction by its primary key, used by the
// Dispatcher to recover a swap's source transaction without knowing which
// chain it came from.
func (s *Store) GetTransactionByID(ctx context.Context, id string) (*Transaction, error) {
	query := `
		SELECT id, chain_name, block_number, block_hash, hash, sender, receiver,
			gas, gas_price, nonce, sign_r, sign_s, sign_v, tx_index, tx_type,
			value, data, event_data, logs, created_at
		FROM transactions
		WHERE id = $1
	`
	var tx Transaction
	err := s.QueryRowContext(ctx, query, id).Scan(
		&tx.ID, &tx.ChainName, &tx.BlockNumber, &tx.BlockHash, &tx.Hash, &tx.Sender, &tx.Receiver,
		&tx.Gas, &tx.GasPrice, &tx.Nonce, &tx.SignR, &tx.SignS, &tx.SignV, &tx.Index, &tx.Type,
		&tx.Value, &tx.Data, &tx.EventData, &tx.Logs, &tx.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction by id: %w", err)
	}
	return &tx, nil
}

// LastProcessedBlock returns the highest block_number scanned for a chain,
// used by the Scanner to resume from where it left off after a restart
// (networks/models.py::get_last_block_number).
func (s *Store) LastProcessedBlock(ctx context.Context, chainName string) (uint64, bool, error) {
	var n sql.NullInt64
	err := s.QueryRowContext(ctx,
		`SELECT MAX(block_number) FROM transactions WHERE chain_name = $1`, chainName,
	).Scan(&n)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get last processed block: %w", err)
	}
	if !n.Valid {
		return 0, false, nil
	}
	return uint64(n.Int64), true, nil
}
