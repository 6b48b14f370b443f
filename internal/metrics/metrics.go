// Package metrics defines the Prometheus instruments of the ledger.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "splitledger"

var (
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Ledger writes by record kind, operation and outcome code",
		},
		[]string{"record", "op", "outcome"}, // outcome: "ok" or a ledger error code
	)

	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_retries_total",
			Help:      "Transactions retried after transient storage contention",
		},
	)

	BalanceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "balance_compute_duration_seconds",
			Help:      "Time to load a group's ledger and compute its balances",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
	)

	BalanceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_compute_failures_total",
			Help:      "Balance computations that failed",
		},
		[]string{"reason"},
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Ledger events handed to the publisher",
		},
		[]string{"status"},
	)

	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "Duration of RPC calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"procedure", "code"},
	)
)

// RecordMutation counts one ledger write.
func RecordMutation(record, op, outcome string) {
	MutationsTotal.WithLabelValues(record, op, outcome).Inc()
}

// RecordRetry counts one retried transaction. Its signature matches
// mutation.RetryPolicy.OnRetry.
func RecordRetry(int, error) {
	RetriesTotal.Inc()
}

// ObserveBalance records one balance computation.
func ObserveBalance(d time.Duration, failureReason string) {
	BalanceDuration.Observe(d.Seconds())
	if failureReason != "" {
		BalanceFailures.WithLabelValues(failureReason).Inc()
	}
}

// RecordEvent counts one publish attempt.
func RecordEvent(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	EventsTotal.WithLabelValues(status).Inc()
}

// ObserveRPC records one RPC call.
func ObserveRPC(procedure, code string, d time.Duration) {
	RPCDuration.WithLabelValues(procedure, code).Observe(d.Seconds())
}
