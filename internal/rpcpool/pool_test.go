package rpcpool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPool_Failover_S3 covers S3: with a bad primary endpoint and a healthy
// secondary, CurrentBlockNumber rotates to the secondary and returns its
// result, ending with the cursor parked on the secondary.
func TestPool_Failover_S3(t *testing.T) {
	const blockNumberHex = `{"jsonrpc":"2.0","id":1,"result":"0x2a"}`

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(blockNumberHex))
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	bad.Close() // closed immediately: every dial/request against it fails with connection refused

	pool, err := NewPool("test-chain", []string{bad.URL, good.URL}, zerolog.Nop())
	require.NoError(t, err)
	defer pool.Close()

	n, err := pool.CurrentBlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)

	// The cursor should have rotated past the failing primary and now sits
	// on the healthy secondary (index 1 of a two-endpoint pool).
	pool.mu.Lock()
	current := pool.current
	pool.mu.Unlock()
	assert.Equal(t, 1, current)
}

// TestIsRetryable covers the allow-list of symptoms that trigger a
// rotation, matching reset_connection's exception allow-list.
func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"context deadline", context.DeadlineExceeded, true},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.retryable, isRetryable(tc.err))
		})
	}
}
