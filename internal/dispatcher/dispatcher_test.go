package dispatcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestClassifyProcessedStatus_S4 covers S4: when the destination contract's
// processedTransactions reports the transaction as already processed, the
// dispatcher must recognise it as terminal without attempting a relayer
// POST. The caller (processSwap) short-circuits on this error before ever
// reaching sendSignatureToRelayer.
func TestClassifyProcessedStatus_S4(t *testing.T) {
	err := classifyProcessedStatus(1, "0xRouter", "0xAbc")
	var alreadyProcessed *ErrAlreadyProcessed
	a := assert.New(t)
	a.True(errors.As(err, &alreadyProcessed))
	a.Equal("0xRouter", alreadyProcessed.Contract)
	a.Equal("0xAbc", alreadyProcessed.OriginalTxHash)
}

func TestClassifyProcessedStatus_Reverted(t *testing.T) {
	err := classifyProcessedStatus(2, "0xRouter", "0xAbc")
	var alreadyReverted *ErrAlreadyReverted
	assert.True(t, errors.As(err, &alreadyReverted))
}

func TestClassifyProcessedStatus_Unseen(t *testing.T) {
	err := classifyProcessedStatus(0, "0xRouter", "0xAbc")
	assert.NoError(t, err)
}

func TestErrAlreadyProcessed_Error(t *testing.T) {
	err := &ErrAlreadyProcessed{Contract: "0xRouter", OriginalTxHash: "0xAbc"}
	assert.Contains(t, err.Error(), "0xRouter")
	assert.Contains(t, err.Error(), "0xAbc")
}
