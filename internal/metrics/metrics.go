package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodegraph_queries_enqueued_total",
		Help: "Total number of upstream queries placed on the worker queue.",
	})

	QueriesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodegraph_queries_dropped_total",
		Help: "Total number of upstream queries rejected due to a full queue.",
	})

	QueryTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodegraph_query_timeouts_total",
		Help: "Total number of upstream queries abandoned after the query timeout.",
	})

	Traversals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodegraph_traversals_total",
		Help: "Total number of traversals run, labelled by outcome.",
	}, []string{"outcome"})

	TraversalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nodegraph_traversal_duration_ms",
		Help:    "Traversal latency in milliseconds, settings resolution included.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 1000},
	})

	NodesVisited = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nodegraph_traversal_nodes",
		Help:    "Number of nodes returned per successful traversal.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nodegraph_queue_utilization_ratio",
		Help: "Current query queue utilization (0-1).",
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nodegraph_graph_nodes",
		Help: "Number of nodes in the graph snapshot being served.",
	})

	GraphReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodegraph_graph_reloads_total",
		Help: "Total number of scene reload attempts, labelled by result.",
	}, []string{"result"})
)
