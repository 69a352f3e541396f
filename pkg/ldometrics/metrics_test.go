package ldometrics

import (
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexio-dpa/ldo/pkg/ldo"
)

type fakeWorker struct {
	rank           int
	state          ldo.State
	cmpCount       uint64
	remoteCmpCount uint64
}

func (f fakeWorker) Rank() int              { return f.rank }
func (f fakeWorker) State() ldo.State       { return f.state }
func (f fakeWorker) CmpCount() uint64       { return f.cmpCount }
func (f fakeWorker) RemoteCmpCount() uint64 { return f.remoteCmpCount }

func TestCollectorDescribeEmitsFourDescs(t *testing.T) {
	c := NewCollector(nil, nil)

	ch := make(chan *prometheus.Desc, 8)
	c.Describe(ch)
	close(ch)

	var n int
	for range ch {
		n++
	}
	assert.Equal(t, 4, n)
}

// metricValue finds the single collected metric whose fully-qualified name
// contains fqNamePart and whose "worker" label equals worker, and returns its
// gauge/counter value.
func metricValue(t *testing.T, metrics []prometheus.Metric, fqNamePart, worker string) float64 {
	t.Helper()
	for _, m := range metrics {
		if !strings.Contains(m.Desc().String(), fqNamePart) {
			continue
		}
		var pb dto.Metric
		require.NoError(t, m.Write(&pb))
		for _, l := range pb.GetLabel() {
			if l.GetName() == "worker" && l.GetValue() == worker {
				if pb.Gauge != nil {
					return pb.Gauge.GetValue()
				}
				return pb.Counter.GetValue()
			}
		}
	}
	t.Fatalf("no metric matching %q for worker %s", fqNamePart, worker)
	return 0
}

func TestCollectorCollectReflectsWorkerState(t *testing.T) {
	workers := []WorkerObserver{
		fakeWorker{rank: 0, state: ldo.WaitTrigger, cmpCount: 5, remoteCmpCount: 3},
		fakeWorker{rank: 1, state: ldo.WaitHostCmd, cmpCount: 2, remoteCmpCount: 1},
	}
	errCounts := map[int]uint64{0: 2}

	c := NewCollector(workers, errCounts)

	ch := make(chan prometheus.Metric, 16)
	c.Collect(ch)
	close(ch)

	var metrics []prometheus.Metric
	for m := range ch {
		metrics = append(metrics, m)
	}

	assert.Equal(t, float64(ldo.WaitTrigger), metricValue(t, metrics, "worker_state", "0"))
	assert.Equal(t, float64(5), metricValue(t, metrics, "cmp_count_total", "0"))
	assert.Equal(t, float64(3), metricValue(t, metrics, "remote_cmp_count", "0"))
	assert.Equal(t, float64(2), metricValue(t, metrics, "error_cqes_total", "0"))
	assert.Equal(t, float64(0), metricValue(t, metrics, "error_cqes_total", "1"))
}

func TestCollectorCollectEmitsOneSetOfMetricsPerWorker(t *testing.T) {
	workers := []WorkerObserver{
		fakeWorker{rank: 0, state: ldo.WaitA2AComp, cmpCount: 9, remoteCmpCount: 4},
	}
	c := NewCollector(workers, map[int]uint64{0: 1})

	ch := make(chan prometheus.Metric, 16)
	c.Collect(ch)
	close(ch)

	var n int
	for range ch {
		n++
	}
	assert.Equal(t, 4, n, "worker_state + cmp_count + remote_cmp_count + error_cqes, one worker")
}

func TestFakeWorkerRankFormatsAsLabel(t *testing.T) {
	w := fakeWorker{rank: 7}
	assert.Equal(t, "7", strconv.Itoa(w.Rank()))
}
