package ldo

import (
	"github.com/flexio-dpa/ldo/pkg/ldo/cq"
	"github.com/flexio-dpa/ldo/pkg/ldo/wqe"
)

// NetQueues is a worker's network send/completion queue pair. SQ holds one
// independent send-queue ring per peer (indexed by local rank index, the
// peer's position in the worker's rank range) — ldo_dev_format_a2a_wqes
// addresses each peer's ring at the base offset local_rank_index *
// wq_buf_size_per_rank, so every peer's ring can be driven by the same
// shared producer index SQPI. CQ is a single completion queue shared by
// every peer's QP; ldo_dev_poll_until_a2a_comp tallies completions from it
// without distinguishing which peer produced them.
type NetQueues struct {
	SQ    [][]wqe.BB
	SQPI  uint32
	CQ    []cq.CQE64
	CQSt  cq.State
	CQDBR *uint32
}

// TrigQueues is a worker's trigger send/completion queue pair: the
// single-WQE-at-a-time ring used exclusively to post Wait-on-Data WQEs and
// observe their completion, which is how a hung-up worker is resumed.
type TrigQueues struct {
	SQ    []wqe.BB
	SQPI  uint32
	QPN   uint32
	CQ    []cq.CQE64
	CQSt  cq.State
	CQDBR *uint32
}

// RingDoorbell simulates ringing the trigger send queue's doorbell: in
// real hardware this is an MMIO write; in the software model it invokes
// the harness's fabric callback, which for the trigger QP is always a
// loopback (a WOD only ever needs to be observed by this same worker's own
// hardware thread).
type RingDoorbell func(qpn uint32, sqPI uint32)

// NetRingDoorbell simulates ringing a network send queue's doorbell for a
// specific peer. ring is the peer-specific WQE ring the all-to-all driver
// just posted to (per NetQueues' doc comment); the harness's fabric
// decodes the posted WQEs from it exactly as real hardware would read them
// off the wire, rather than being told their effect out of band.
type NetRingDoorbell func(qpn uint32, ring []wqe.BB, sqPI uint32)
