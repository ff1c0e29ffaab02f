package signer

import "fmt"

// ErrInvalidSwap is raised when the normalised transit amount is zero,
// matching _get_signature's guard against signing a zero-value swap.
type ErrInvalidSwap struct {
	Reason string
}

func (e *ErrInvalidSwap) Error() string {
	return fmt.Sprintf("signer: invalid swap: %s", e.Reason)
}
