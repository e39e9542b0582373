// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerTransactionsTotal counts appended ledger transactions by kind and status
	LedgerTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brickvault_ledger_transactions_total",
			Help: "The total number of transactions appended to the ledger",
		},
		[]string{"kind", "status"},
	)

	// LedgerRejectionsTotal counts rejected ledger mutations by reason
	LedgerRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brickvault_ledger_rejections_total",
			Help: "The total number of ledger mutations rejected",
		},
		[]string{"operation", "reason"}, // insufficient_funds, invalid_amount, inactive, ...
	)

	// LedgerBalanceDriftTotal counts cached balances found to differ from a fresh fold
	LedgerBalanceDriftTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brickvault_ledger_balance_drift_total",
		Help: "Cached balances that differed from a refold of the transaction log",
	})

	// LedgerMutationSeconds tracks how long a ledger mutation holds the account lock
	LedgerMutationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brickvault_ledger_mutation_seconds",
			Help:    "Time spent inside a ledger mutation, lock included",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"operation"},
	)

	// IndexerRequestsTotal counts chain indexer HTTP attempts by outcome
	IndexerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brickvault_indexer_requests_total",
			Help: "The total number of chain indexer requests",
		},
		[]string{"status"}, // ok, retryable, invalid, cache_hit
	)

	// IndexerRequestSeconds tracks chain indexer latency
	IndexerRequestSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "brickvault_indexer_request_seconds",
		Help:    "Latency of chain indexer requests in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// ReconciliationsTotal counts reconciliation outcomes
	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brickvault_reconciliations_total",
			Help: "The total number of reconciliation reports produced",
		},
		[]string{"result"}, // within_tolerance, drift, unavailable, invalid_response
	)

	// PlansSavedTotal counts saved investment plans
	PlansSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brickvault_plans_saved_total",
		Help: "The total number of investment plans saved",
	})

	// HTTPRequestsTotal counts API requests by route pattern, method and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brickvault_http_requests_total",
			Help: "The total number of HTTP requests served",
		},
		[]string{"route", "method", "code"},
	)

	// HTTPRequestSeconds tracks API latency by route pattern
	HTTPRequestSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brickvault_http_request_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// JobRunsTotal counts scheduled job runs by job and outcome
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brickvault_job_runs_total",
			Help: "The total number of scheduled job runs",
		},
		[]string{"job", "status"}, // success, failed
	)
)

// RecordRejection records a rejected ledger mutation
func RecordRejection(operation, reason string) {
	LedgerRejectionsTotal.WithLabelValues(operation, reason).Inc()
}

// RecordTransaction records an appended ledger transaction
func RecordTransaction(kind, status string) {
	LedgerTransactionsTotal.WithLabelValues(kind, status).Inc()
}

// RecordIndexerRequest records a chain indexer request outcome
func RecordIndexerRequest(status string) {
	IndexerRequestsTotal.WithLabelValues(status).Inc()
}

// RecordReconciliation records a reconciliation result
func RecordReconciliation(result string) {
	ReconciliationsTotal.WithLabelValues(result).Inc()
}

// RecordJobRun records a scheduled job run
func RecordJobRun(job string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	JobRunsTotal.WithLabelValues(job, status).Inc()
}
