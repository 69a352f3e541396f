// Package ldometrics exposes the collective worker's testable properties
// (spec.md §8) as Prometheus metrics, modeled on pkg/collector/collector.go's
// Collector pattern: a struct implementing prometheus.Collector that fans
// its Describe/Collect calls out across whatever it is wired to observe.
package ldometrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flexio-dpa/ldo/pkg/ldo"
)

const namespace = "ldo"

// WorkerObserver is the read-only view Collector needs into a running
// worker; cmd/ldo-simd's harness implements it directly against its
// *ldo.Worker slice.
type WorkerObserver interface {
	Rank() int
	State() ldo.State
	CmpCount() uint64
	RemoteCmpCount() uint64
}

// Collector adapts a set of workers into a Prometheus collector, one
// worker-state gauge, one cmp_count counter, one remote-atomic-count gauge
// and one error-CQE counter per worker — the Prometheus analogue of
// spec.md §8's invariants 1-5.
type Collector struct {
	workers []WorkerObserver

	workerState    *prometheus.Desc
	cmpCount       *prometheus.Desc
	remoteCmpCount *prometheus.Desc
	errorCQEs      *prometheus.Desc

	errorCQECounts map[int]uint64
}

// NewCollector returns a collector over workers. errorCQECounts, when
// non-nil, is consulted live each Collect for the per-worker fatal-CQE
// tally; cmd/ldo-simd's runner owns the map and increments it, right after
// calling ErrorHandler, for each worker stopped by a fatal error completion.
func NewCollector(workers []WorkerObserver, errorCQECounts map[int]uint64) *Collector {
	return &Collector{
		workers:        workers,
		errorCQECounts: errorCQECounts,
		workerState: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "worker", "state"),
			"Current state of a collective worker (0=WAIT_HOST_CMD, 1=WAIT_TRIGGER, 2=WAIT_A2A_COMP).",
			[]string{"worker"}, nil,
		),
		cmpCount: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "worker", "cmp_count_total"),
			"Number of collectives this worker has completed.",
			[]string{"worker"}, nil,
		),
		remoteCmpCount: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "worker", "remote_cmp_count"),
			"Current value of the worker's remote-atomic completion flag.",
			[]string{"worker"}, nil,
		),
		errorCQEs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "worker", "error_cqes_total"),
			"Number of fatal error completions observed by this worker.",
			[]string{"worker"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.workerState
	ch <- c.cmpCount
	ch <- c.remoteCmpCount
	ch <- c.errorCQEs
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, w := range c.workers {
		label := strconv.Itoa(w.Rank())
		ch <- prometheus.MustNewConstMetric(c.workerState, prometheus.GaugeValue, float64(w.State()), label)
		ch <- prometheus.MustNewConstMetric(c.cmpCount, prometheus.CounterValue, float64(w.CmpCount()), label)
		ch <- prometheus.MustNewConstMetric(c.remoteCmpCount, prometheus.GaugeValue, float64(w.RemoteCmpCount()), label)
		ch <- prometheus.MustNewConstMetric(c.errorCQEs, prometheus.CounterValue, float64(c.errorCQECounts[w.Rank()]), label)
	}
}
