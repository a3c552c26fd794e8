package snapgene

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collectioncore",
		Subsystem: "snapgene",
		Name:      "rpc_calls_total",
		Help:      "RPC calls issued to the sequence-map server.",
	}, []string{"command"})

	rpcFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collectioncore",
		Subsystem: "snapgene",
		Name:      "rpc_failures_total",
		Help:      "RPC calls that returned an error or a failure code.",
	}, []string{"command"})

	attemptExhaustions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "collectioncore",
		Subsystem: "snapgene",
		Name:      "attempt_exhaustions_total",
		Help:      "Operations that failed all retry attempts.",
	})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "collectioncore",
		Subsystem: "snapgene",
		Name:      "operation_duration_seconds",
		Help:      "Wall time of whole pipeline operations including retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)
