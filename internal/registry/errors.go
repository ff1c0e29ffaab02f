package registry

import "fmt"

// ErrContractNotFound is returned by every By* lookup method on a miss.
type ErrContractNotFound struct {
	Key string
}

func (e *ErrContractNotFound) Error() string {
	return fmt.Sprintf("registry: contract not found: %s", e.Key)
}

// ErrContractDuplicate is raised at construction time when two routing
// contracts in the backing store share a blockchain_id — a fatal
// data-integrity error, not a retryable one.
type ErrContractDuplicate struct {
	BlockchainID uint64
}

func (e *ErrContractDuplicate) Error() string {
	return fmt.Sprintf("registry: duplicate blockchain_id %d in routing contract catalogue", e.BlockchainID)
}
