package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerConflicts counts rejected overlapping inserts per property kind
	LedgerConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelsync_ledger_conflicts_total",
			Help: "Total number of interval inserts rejected for overlap",
		},
		[]string{"kind"},
	)

	// PushesTotal counts outbound channel pushes by channel and status
	PushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelsync_pushes_total",
			Help: "Total number of outbound channel pushes",
		},
		[]string{"channel", "status"},
	)

	// PushDuration tracks outbound push latency per channel
	PushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "channelsync_push_duration_seconds",
			Help:    "Outbound push duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// InboundEvents counts webhook events by channel and outcome
	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelsync_inbound_events_total",
			Help: "Total number of inbound channel events processed",
		},
		[]string{"channel", "outcome"},
	)

	// QueueDepth tracks the number of sync tasks waiting for a worker
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "channelsync_queue_depth",
			Help: "Number of sync tasks waiting in the outbound queue",
		},
	)

	// BreakerState reports the circuit breaker state per channel
	// (0 closed, 1 half-open, 2 open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "channelsync_breaker_state",
			Help: "Circuit breaker state per channel (0 closed, 1 half-open, 2 open)",
		},
		[]string{"channel"},
	)

	// RateLimited counts pushes delayed by the per-channel rate limiter
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelsync_rate_limited_total",
			Help: "Total number of pushes delayed by the rate limiter",
		},
		[]string{"channel"},
	)

	// DeadLetters counts sync tasks abandoned after exhausting retries
	DeadLetters = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelsync_dead_letters_total",
			Help: "Total number of sync tasks moved to the dead letter store",
		},
		[]string{"channel"},
	)

	// ReconciliationDiscrepancies counts drift findings per run by category
	ReconciliationDiscrepancies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelsync_reconciliation_discrepancies_total",
			Help: "Total number of reconciliation discrepancies detected",
		},
		[]string{"channel", "category"},
	)

	// ReconciliationRuns counts reconciliation sweeps by status
	ReconciliationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelsync_reconciliation_runs_total",
			Help: "Total number of reconciliation runs",
		},
		[]string{"status"},
	)

	// ErrorsTotal counts errors by component
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelsync_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
