package signer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTransformAmount_S5 covers the S5 scenario: a six-decimal source paired
// with a non-six-decimal destination scales the transit amount up by 10^12.
func TestTransformAmount_S5(t *testing.T) {
	sixDecimal := NewSixDecimalChains([]uint64{1})
	amount := big.NewInt(1_000_000)

	got := sixDecimal.TransformAmount(amount, 1, 2)

	want := new(big.Int).Mul(big.NewInt(1_000_000), pow10Twelve)
	assert.Equal(t, want, got)
	assert.Equal(t, "1000000000000000000", got.String())
}

// TestTransformAmount_RoundTrip covers P5: normalising A->B then B->A
// recovers the original amount for any value divisible by 10^12.
func TestTransformAmount_RoundTrip(t *testing.T) {
	sixDecimal := NewSixDecimalChains([]uint64{7})
	original := new(big.Int).Mul(big.NewInt(42), pow10Twelve)

	toNonSix := sixDecimal.TransformAmount(original, 7, 9)
	backToSix := sixDecimal.TransformAmount(toNonSix, 9, 7)

	assert.Equal(t, original, backToSix)
}

// TestTransformAmount_NeitherSixDecimal covers the pass-through branch: when
// neither side is configured as six-decimal, the amount is unchanged.
func TestTransformAmount_NeitherSixDecimal(t *testing.T) {
	sixDecimal := NewSixDecimalChains([]uint64{1})
	amount := big.NewInt(123456789)

	got := sixDecimal.TransformAmount(amount, 2, 3)

	assert.Equal(t, amount, got)
}

// TestTransformAmount_BothSixDecimal also covers the pass-through branch:
// when both sides are six-decimal, no scaling applies.
func TestTransformAmount_BothSixDecimal(t *testing.T) {
	sixDecimal := NewSixDecimalChains([]uint64{1, 2})
	amount := big.NewInt(987654321)

	got := sixDecimal.TransformAmount(amount, 1, 2)

	assert.Equal(t, amount, got)
}
