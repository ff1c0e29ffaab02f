package signer

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// rewriteHexToBase58 converts a 0x-prefixed hex string directly to its
// base58 rendering, used for second_path elements once they've already
// been normalised to hex by abivalue.
func rewriteHexToBase58(hexStr string) (string, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(hexStr), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return "", fmt.Errorf("signer: malformed hex address %q: %w", hexStr, err)
	}
	return base58.Encode(raw), nil
}

// rewriteSecondPath rewrites every element of second_path from 0x-hex to
// base58 when the destination chain is Solana, per spec.md §4.4(d).
func rewriteSecondPath(path []string) ([]string, error) {
	out := make([]string, len(path))
	for i, hexStr := range path {
		b58, err := rewriteHexToBase58(hexStr)
		if err != nil {
			return nil, err
		}
		out[i] = b58
	}
	return out, nil
}
