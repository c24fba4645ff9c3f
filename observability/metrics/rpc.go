package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RPCRequests counts JSON-RPC requests by method and outcome.
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credit",
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "JSON-RPC requests handled, by method and outcome.",
	}, []string{"method", "outcome"})

	// RPCDuration observes request handling latency by method.
	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "credit",
		Subsystem: "rpc",
		Name:      "request_duration_seconds",
		Help:      "JSON-RPC request handling latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	// AccountsCreated counts credit accounts minted since process start.
	AccountsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "credit",
		Subsystem: "engine",
		Name:      "accounts_created_total",
		Help:      "Credit accounts minted since process start.",
	})

	// AccountUpdates counts action sequences by result.
	AccountUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credit",
		Subsystem: "engine",
		Name:      "account_updates_total",
		Help:      "UpdateCreditAccount sequences, by result.",
	}, []string{"result"})
)

// Handler exposes the process metrics in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
