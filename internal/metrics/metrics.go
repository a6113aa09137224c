// Package metrics defines the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsRecorded counts ledger transactions accepted from the
	// extraction collaborator.
	TransactionsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_transactions_recorded_total",
		Help: "Number of ledger transactions recorded.",
	})

	// SettlementRuns counts settlement computations by outcome:
	// generated, reused, empty, or error.
	SettlementRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_settlement_runs_total",
		Help: "Number of settlement computations by outcome.",
	}, []string{"outcome"})

	// SettlementsGenerated counts individual settlement transfers persisted.
	SettlementsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_settlements_generated_total",
		Help: "Number of settlement transfers persisted.",
	})

	// HTTPRequests counts handled HTTP requests.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_http_requests_total",
		Help: "Number of HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	// HTTPDuration observes request latency per route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tally_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
