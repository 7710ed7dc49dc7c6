package query

import "github.com/prometheus/client_golang/prometheus"

// Metric name suffixes follow stats/target_stats.go's convention:
// "*.n" - counter, "*.ns" - latency (nanoseconds).
const (
	MetricGatherCount   = "query.gather.n"
	MetricGatherLatency = "query.gather.ns"
	MetricCellCount     = "query.cell.n"
)

var (
	gatherCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "query_gather_n",
		Help: "Total number of query.Run gather passes completed.",
	})
	gatherLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "query_gather_ns",
		Help: "Wall-clock nanoseconds spent gathering records in query.Run.",
	})
	cellCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "query_cell_n",
		Help: "Number of distinct grid cells produced by the most recent query.Run.",
	})
)

func init() {
	prometheus.MustRegister(gatherCount, gatherLatency, cellCount)
}
