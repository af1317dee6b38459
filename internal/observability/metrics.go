package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the service exports.
type Metrics struct {
	// --- Core processing ---
	CoreActionsApplied  *prometheus.CounterVec
	CoreActionsRejected *prometheus.CounterVec
	CoreActionDuration  *prometheus.HistogramVec
	CoreSequence        prometheus.Gauge

	// --- Latency ---
	IngestToApply       *prometheus.HistogramVec
	ApplyToPersist      prometheus.Histogram
	NATSPullLatency     *prometheus.HistogramVec
	PersistBatchDur     prometheus.Histogram
	ProjectionUpdateDur *prometheus.HistogramVec

	// --- Channels & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	ProjectionDrops     *prometheus.CounterVec
	PersistBackpressure prometheus.Counter

	// --- Idempotency & ordering ---
	IdempotencyDuplicates *prometheus.CounterVec
	SequenceGaps          *prometheus.CounterVec
	OutOfOrder            *prometheus.CounterVec

	// --- Accounting state ---
	UserCount     prometheus.Gauge
	MinerCount    prometheus.Gauge
	PoolCount     prometheus.Gauge
	CreditCounter prometheus.Gauge
	TokenSupply   *prometheus.GaugeVec
	ForfeitsPaid  prometheus.Counter

	// --- Persistence ---
	PersistActionsWritten prometheus.Counter
	PersistBatchSize      prometheus.Histogram
	PersistErrors         *prometheus.CounterVec
	PersistRetry          prometheus.Counter
	PersistLastSequence   prometheus.Gauge

	// --- Snapshot & replay ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge
	ReplayActions     prometheus.Counter
	ReplayDuration    prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	ingestBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		CoreActionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mena_core_actions_applied_total",
			Help: "Actions successfully applied by the core",
		}, []string{"action"}),

		CoreActionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mena_core_actions_rejected_total",
			Help: "Actions rejected (duplicate, out of order, validation)",
		}, []string{"action", "reason"}),

		CoreActionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mena_core_action_apply_duration_seconds",
			Help:    "Time to apply a single action in the core",
			Buckets: latencyBuckets,
		}, []string{"action"}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mena_core_sequence",
			Help: "Current global sequence number",
		}),

		IngestToApply: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mena_ingest_to_apply_seconds",
			Help:    "NATS receive to core apply complete",
			Buckets: ingestBuckets,
		}, []string{"action"}),

		ApplyToPersist: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mena_apply_to_persist_seconds",
			Help:    "Core emit to Postgres commit",
			Buckets: latencyBuckets,
		}),

		NATSPullLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mena_nats_pull_latency_seconds",
			Help:    "NATS pull request latency",
			Buckets: ingestBuckets,
		}, []string{"subject"}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mena_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		ProjectionUpdateDur: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mena_projection_update_duration_seconds",
			Help:    "Projection table update duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"projection"}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mena_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mena_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mena_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mena_projection_drops_total",
			Help: "Outputs dropped due to full projection channel",
		}, []string{"projection"}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mena_persist_backpressure_total",
			Help: "Times the core blocked on the persist channel",
		}),

		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mena_idempotency_duplicates_total",
			Help: "Duplicate actions recognized and skipped",
		}, []string{"action"}),

		SequenceGaps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mena_source_sequence_gap_total",
			Help: "Source sequence gaps observed",
		}, []string{"partition"}),

		OutOfOrder: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mena_source_out_of_order_total",
			Help: "Out-of-order rejections",
		}, []string{"partition"}),

		UserCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mena_user_count",
			Help: "Registered storage accounts",
		}),

		MinerCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mena_miner_count",
			Help: "Registered miners",
		}),

		PoolCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mena_pool_count",
			Help: "Registered storage pools",
		}),

		CreditCounter: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mena_credit_counter",
			Help: "Remaining purchasable capacity counter",
		}),

		TokenSupply: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mena_token_supply",
			Help: "Circulating supply per symbol",
		}, []string{"symbol"}),

		ForfeitsPaid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mena_forfeits_paid_total",
			Help: "Forfeiture seizures applied",
		}),

		PersistActionsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mena_persist_actions_written_total",
			Help: "Action envelopes written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mena_persist_batch_size",
			Help:    "Actions per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mena_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mena_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mena_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mena_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mena_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mena_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mena_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		ReplayActions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mena_replay_actions_total",
			Help: "Actions replayed on startup",
		}),

		ReplayDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mena_replay_duration_seconds",
			Help: "Total replay time",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mena_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mena_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mena_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
