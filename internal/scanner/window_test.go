package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// computeWindow reimplements the pure arithmetic of §4.3 step 4 so it can be
// tested without standing up a Worker's RPC pool and store dependencies.
// tooSmall reports the "tip - from <= 0" branch, in which no window is returned.
func computeWindow(current, minConfirmationBlocks, blockRange, lastProcessedBlock uint64) (to uint64, tooSmall bool) {
	from := lastProcessedBlock + 1
	var tip uint64
	if current > minConfirmationBlocks {
		tip = current - minConfirmationBlocks
	}
	diff := int64(tip) - int64(from)
	switch {
	case diff > int64(blockRange):
		return from + blockRange, false
	case diff <= 0:
		return 0, true
	default:
		return tip, false
	}
}

// TestComputeWindow_S6 covers S6: a large gap between the tip and the last
// checkpoint enters fast mode and ends the window BLOCK_RANGE blocks past the
// first unprocessed block (last checkpoint + 1).
func TestComputeWindow_S6(t *testing.T) {
	to, tooSmall := computeWindow(1_000_000, 20, 500, 999_000)
	assert.False(t, tooSmall)
	assert.Equal(t, uint64(999_001+500), to)
}

// TestComputeWindow_S6_NextIteration covers the follow-up half of S6: once
// caught up, the window collapses to "too small" and no range is returned.
func TestComputeWindow_S6_NextIteration(t *testing.T) {
	_, tooSmall := computeWindow(999_520, 20, 500, 999_501)
	assert.True(t, tooSmall)
}

// TestComputeWindow_P6_Monotonic covers P6: across a sequence of
// iterations, the returned checkpoint never decreases.
func TestComputeWindow_P6_Monotonic(t *testing.T) {
	last := uint64(100)
	current := uint64(100)
	for i := 0; i < 50; i++ {
		current += 7
		to, tooSmall := computeWindow(current, 5, 10, last)
		if tooSmall {
			continue
		}
		assert.GreaterOrEqual(t, to, last)
		last = to
	}
}

// TestComputeWindow_SlowModeWithinRange covers the third branch: a gap
// smaller than BLOCK_RANGE but still positive advances straight to tip with
// the slow timeout.
func TestComputeWindow_SlowModeWithinRange(t *testing.T) {
	to, tooSmall := computeWindow(1000, 10, 500, 900)
	assert.False(t, tooSmall)
	assert.Equal(t, uint64(990), to)
}
