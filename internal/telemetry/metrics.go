package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Connection-level metrics.
var (
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sv2_active_connections",
		Help: "Number of active downstream connections",
	})
	TotalConnections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sv2_total_connections",
		Help: "Total number of downstream connections accepted",
	})
	ConnectionErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sv2_connection_errors",
		Help: "Total number of connection-level errors",
	})
	HandshakeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sv2_noise_handshake_failures",
		Help: "Total number of Noise NX handshakes that failed to complete",
	})
)

// Share and job metrics.
var (
	SharesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sv2_shares_total",
		Help: "Total number of shares processed, by verdict",
	}, []string{"result"})
	ShareProcessingTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sv2_share_processing_seconds",
		Help:    "Time spent validating a single share",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 10),
	})
	BlocksFound = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sv2_blocks_found",
		Help: "Total number of blocks found by downstream shares",
	})
	JobsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sv2_jobs_generated",
		Help: "Total number of standard jobs generated",
	})
	CurrentChainTipHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sv2_chain_tip_height",
		Help: "Height (n_bits-derived ordinal) of the most recent chain tip",
	})
)

func init() {
	prometheus.MustRegister(
		ActiveConnections,
		TotalConnections,
		ConnectionErrors,
		HandshakeFailures,
		SharesTotal,
		ShareProcessingTime,
		BlocksFound,
		JobsGenerated,
		CurrentChainTipHeight,
	)
}
