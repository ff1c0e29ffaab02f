package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIsForwardTransition_P2 covers P2: status observed on a ValidatorSwap
// must form a non-decreasing sequence under the documented ordering.
func TestIsForwardTransition_P2(t *testing.T) {
	ordered := []SwapStatus{
		SwapStatusCreated,
		SwapStatusWaitingForData,
		SwapStatusSignatureCreated,
		SwapStatusSignatureSend,
		SwapStatusSuccess,
	}

	for i := 0; i < len(ordered); i++ {
		for j := 0; j < len(ordered); j++ {
			got := IsForwardTransition(ordered[i], ordered[j])
			want := j >= i
			assert.Equalf(t, want, got, "transition %s -> %s", ordered[i], ordered[j])
		}
	}
}

func TestIsForwardTransition_RejectsRegression(t *testing.T) {
	assert.False(t, IsForwardTransition(SwapStatusSignatureCreated, SwapStatusCreated))
	assert.False(t, IsForwardTransition(SwapStatusSuccess, SwapStatusSignatureSend))
}

func TestIsForwardTransition_AllowsSelfTransition(t *testing.T) {
	for _, s := range []SwapStatus{SwapStatusCreated, SwapStatusSignatureCreated, SwapStatusSuccess} {
		assert.True(t, IsForwardTransition(s, s))
	}
}
