package store

import (
	"context"
	"fmt"

	"github.com/chainbridge-validator/core/internal/registry"
	"github.com/chainbridge-validator/core/internal/types"
)

// ListRoutingContracts loads every catalogued routing contract, the
// database-backed equivalent of contracts/models.py::Contract.objects.all()
// that Registry.New consumes to build its in-memory indices at startup.
func (s *Store) ListRoutingContracts(ctx context.Context) ([]registry.Row, error) {
	query := `
		SELECT blockchain_id, chain_name, address, kind, abi, creation_tx_hash, creation_block
		FROM routing_contracts
		ORDER BY blockchain_id ASC
	`
	rows, err := s.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list routing contracts: %w", err)
	}
	defer rows.Close()

	var out []registry.Row
	for rows.Next() {
		var row registry.Row
		var kind string
		if err := rows.Scan(
			&row.BlockchainID, &row.ChainName, &row.Address, &kind, &row.ABI,
			&row.CreationTxHash, &row.CreationBlock,
		); err != nil {
			return nil, fmt.Errorf("failed to scan routing contract: %w", err)
		}
		row.Kind = types.NetworkKind(kind)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating routing contracts: %w", err)
	}
	return out, nil
}
