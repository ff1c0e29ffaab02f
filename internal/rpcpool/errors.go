package rpcpool

import "fmt"

// ErrAllEndpointsUnavailable is returned once every endpoint in the pool has
// been tried for the current call and all of them failed. The cursor is
// reset to 0 before this is returned, so the next call starts from the
// beginning of the ring again.
type ErrAllEndpointsUnavailable struct {
	Chain string
	Last  error
}

func (e *ErrAllEndpointsUnavailable) Error() string {
	return fmt.Sprintf("rpcpool: all endpoints unavailable for chain %q: %v", e.Chain, e.Last)
}

func (e *ErrAllEndpointsUnavailable) Unwrap() error {
	return e.Last
}
