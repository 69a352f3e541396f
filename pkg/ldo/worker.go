package ldo

import (
	"log/slog"
	"sync/atomic"

	"github.com/flexio-dpa/ldo/pkg/ldo/window"
)

// Worker is the full per-thread context the original keeps in
// ldo_dev_worker: the net and trigger queue pairs, the memory windows it
// serializes host access through, the currently active command, and the
// three-state machine's position.
type Worker struct {
	Rank    int
	Topo    *Topology
	Net     NetQueues
	Trig    TrigQueues
	Ring    RingDoorbell
	NetRing NetRingDoorbell
	Coord   *Coordinator
	Reg     window.Registry
	Log     *slog.Logger

	State    State
	CmdIndex uint32
	CmpCount uint64
	Cmd      Command

	// RemoteCmpFlag is this worker's local atomic completion counter:
	// the target every peer's Atomic Fetch-and-Add WQE increments over
	// the fabric. In the software model a peer's simulated atomic
	// "arrives" as a direct Add on this counter instead of an RDMA
	// operation traversing real wire; the bit-exact part of the
	// protocol — the WQE that would carry it over real hardware — is
	// still formatted and posted exactly as spec.md §4.1 describes.
	RemoteCmpFlag *atomic.Uint64

	// lastContacted is the non-self peer count the most recent alltoall
	// call computed, needed by hangupA2AComp to decide whether a remote
	// completion is expected at all (spec.md §9's "num_local_comp"
	// branch).
	lastContacted int

	// netCQProd is the fabric's producer-side view of Net.CQ; see
	// ProduceNetCQE.
	netCQProd netCQProducer

	// trigCQProd is the harness's producer-side view of Trig.CQ; see
	// ProduceTrigCQE.
	trigCQProd netCQProducer
}

// NewWorker constructs a worker in its initial WAIT_HOST_CMD state. The
// caller is responsible for sizing Net/Trig rings to the configured queue
// depths, and for setting NetRing/RemoteCmpFlag, before calling
// WorkerSetup.
func NewWorker(rank int, topo *Topology, reg window.Registry, ring RingDoorbell, coord *Coordinator, logger *slog.Logger) *Worker {
	return &Worker{
		Rank:  rank,
		Topo:  topo,
		Ring:  ring,
		Coord: coord,
		Reg:   reg,
		Log:   logger.With("worker", rank),
		State: WaitHostCmd,
	}
}
