// Package monitoring exposes Prometheus metrics for the scanner, signer,
// dispatcher, and RPC pool, trimmed and renamed from the teacher's
// internal/monitoring/metrics.go to this domain's components.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScannerBlocksProcessed counts blocks folded into a completed scan
	// window, labeled by chain.
	ScannerBlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainbridge_scanner_blocks_processed_total",
			Help: "Total number of blocks processed by the scanner, per chain.",
		},
		[]string{"chain"},
	)

	// ScannerEventsDetected counts swap events observed, labeled by chain and
	// event name.
	ScannerEventsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainbridge_scanner_events_detected_total",
			Help: "Total number of swap events detected by the scanner.",
		},
		[]string{"chain", "event"},
	)

	// ScannerLastBlockProcessed tracks the last block number folded into a
	// completed window, per chain.
	ScannerLastBlockProcessed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chainbridge_scanner_last_block_processed",
			Help: "Last block number processed by the scanner, per chain.",
		},
		[]string{"chain"},
	)

	// ScannerWorkerRestarts counts Supervisor-triggered restarts, per chain.
	ScannerWorkerRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainbridge_scanner_worker_restarts_total",
			Help: "Total number of scanner worker restarts triggered by the supervisor.",
		},
		[]string{"chain"},
	)

	// SignerSignaturesCreated counts packed-hash signatures produced by the
	// Signer, labeled by source chain.
	SignerSignaturesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainbridge_signer_signatures_created_total",
			Help: "Total number of swap signatures created by the signer.",
		},
		[]string{"source_chain"},
	)

	// SignerSignatureDuration measures the wall-clock time spent computing
	// and signing a packed hash, including the destination-contract RPC call.
	SignerSignatureDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainbridge_signer_signature_duration_seconds",
			Help:    "Time spent reconstructing parameters and signing a swap's packed hash.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source_chain"},
	)

	// DispatcherSignaturesSent counts signatures successfully forwarded to
	// the relayer.
	DispatcherSignaturesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainbridge_dispatcher_signatures_sent_total",
			Help: "Total number of swap signatures forwarded to the relayer.",
		},
		[]string{"destination_chain"},
	)

	// DispatcherAlreadySettled counts swaps the destination contract had
	// already processed or reverted out of band by the time the dispatcher
	// looked at them.
	DispatcherAlreadySettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainbridge_dispatcher_already_settled_total",
			Help: "Total number of swaps found already processed or reverted on the destination contract.",
		},
		[]string{"destination_chain", "outcome"},
	)

	// RPCPoolRotations counts failover rotations away from the current
	// endpoint, per chain.
	RPCPoolRotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainbridge_rpcpool_rotations_total",
			Help: "Total number of times the RPC pool rotated away from its current endpoint.",
		},
		[]string{"chain"},
	)

	// RPCPoolExhausted counts calls where every endpoint in a pool failed.
	RPCPoolExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainbridge_rpcpool_exhausted_total",
			Help: "Total number of calls where every RPC endpoint in the pool failed.",
		},
		[]string{"chain"},
	)
)
