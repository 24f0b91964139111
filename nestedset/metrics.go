package nestedset

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var nodesCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "nestedset_nodes_created_total",
	Help: "The total number of nodes inserted into a nested set",
})

var movesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nestedset_moves_total",
	Help: "The total number of subtree moves, by position and result",
}, []string{"position", "result"})

var subtreesDeleted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "nestedset_subtrees_deleted_total",
	Help: "The total number of subtree deletions",
})

var rowsRenumbered = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "nestedset_rows_renumbered",
	Help:    "Number of rows whose bounds were rewritten by a single mutation",
	Buckets: prometheus.ExponentialBuckets(1, 4, 10),
})

var rebuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "nestedset_rebuilds_total",
	Help: "The total number of full renumberings from parent pointers",
})
