package signer

import "math/big"

// SixDecimalChains is the configured set of blockchain ids whose transit
// token uses six decimals instead of the pipeline's default eighteen,
// grounded on CONTRACT_BLOCKCHAIN_IDS_TOKEN_WITH_SIX_DECIMALS.
type SixDecimalChains map[uint64]struct{}

// NewSixDecimalChains builds a lookup set from a configured id list.
func NewSixDecimalChains(ids []uint64) SixDecimalChains {
	set := make(SixDecimalChains, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s SixDecimalChains) has(id uint64) bool {
	_, ok := s[id]
	return ok
}

var pow10Twelve = new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)

// TransformAmount applies spec.md §4.4(e)'s decimals normalisation to the
// transit token amount, in place of the original's _transform_params.
func (s SixDecimalChains) TransformAmount(amount *big.Int, sourceBlockchainID, destBlockchainID uint64) *big.Int {
	destSix := s.has(destBlockchainID)
	sourceSix := s.has(sourceBlockchainID)

	switch {
	case destSix && !sourceSix:
		return new(big.Int).Div(amount, pow10Twelve)
	case sourceSix && !destSix:
		return new(big.Int).Mul(amount, pow10Twelve)
	default:
		return new(big.Int).Set(amount)
	}
}
