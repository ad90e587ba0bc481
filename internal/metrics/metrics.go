package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/limaJavier/roomallocation/pkg/allocation"
)

// Collector records allocation outcomes as Prometheus metrics. It implements allocation.Observer.
type Collector struct {
	registry    *prometheus.Registry
	placed      prometheus.Counter
	unplaced    *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	conflicts   prometheus.Gauge
	placedRatio prometheus.Gauge
}

var _ allocation.Observer = (*Collector)(nil)

// New registers the allocation collectors on a private registry
func New() *Collector {
	registry := prometheus.NewRegistry()

	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomallocation_demands_placed_total",
		Help: "Total number of demands placed by the engine",
	})

	unplaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roomallocation_demands_unplaced_total",
		Help: "Total number of demands left unplaced, by reason",
	}, []string{"reason"})

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roomallocation_runs_total",
		Help: "Total number of allocation runs, by outcome",
	}, []string{"outcome"})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "roomallocation_run_duration_seconds",
		Help:    "Wall-clock duration of allocation runs",
		Buckets: prometheus.DefBuckets,
	})

	conflicts := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomallocation_conflicts",
		Help: "Conflicts found in the records of the last run",
	})

	placedRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomallocation_placed_ratio",
		Help: "Share of demands placed by the last run",
	})

	registry.MustRegister(placed, unplaced, runs, runDuration, conflicts, placedRatio)

	return &Collector{
		registry:    registry,
		placed:      placed,
		unplaced:    unplaced,
		runs:        runs,
		runDuration: runDuration,
		conflicts:   conflicts,
		placedRatio: placedRatio,
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) DemandPlaced(uint64, uint64) {
	c.placed.Inc()
}

func (c *Collector) DemandUnplaced(_ uint64, reason allocation.UnplacedReason) {
	c.unplaced.WithLabelValues(string(reason)).Inc()
}

func (c *Collector) RunCompleted(report *allocation.Report, elapsed time.Duration) {
	outcome := "complete"
	switch {
	case report.Aborted:
		outcome = "aborted"
	case len(report.Conflicts) > 0:
		outcome = "conflicting"
	}
	c.runs.WithLabelValues(outcome).Inc()
	c.runDuration.Observe(elapsed.Seconds())
	c.conflicts.Set(float64(len(report.Conflicts)))

	if report.Total > 0 {
		c.placedRatio.Set(float64(report.PlacedCount()) / float64(report.Total))
	} else {
		c.placedRatio.Set(1)
	}
}

// WriteTextfile dumps the metrics in the node-exporter textfile format
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
