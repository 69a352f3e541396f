package ldo

// Topology is the static, per-context configuration set up once (by the
// harness, standing in for host-side QP/CQ creation — itself out of
// scope per spec.md §1's non-goals) and shared read-only by every worker:
// queue pair numbers, memory keys and remote addresses that do not change
// between collectives.
type Topology struct {
	// NumWorkers is the number of cooperating worker threads driving a
	// single collective — the divisor ldo_dev_process_a2a_comp's
	// last-finisher check (fetch_add result == NumWorkers-1) is built on.
	NumWorkers int

	// MyRank is this context's rank in the collective.
	MyRank int

	// NumRanks is the total number of ranks participating in the job;
	// ldo_dev_poll_until_a2a_comp's expected remote-atomic-count is
	// (op_wraps+1)*(NumRanks-1).
	NumRanks int

	// QPN is this worker's net QP number, indexed by local rank index
	// (the peer's position in the rank range, not the peer's own rank).
	QPN []uint32

	// Rkey/Lkey are the net QP's registered remote/local keys for the
	// a2a send/recv buffers.
	Rkey uint32
	Lkey uint32

	// A2ARaddr/A2ALaddr are the base remote/local addresses of the
	// all-to-all send/recv buffers; ldo_dev_format_a2a_wqes offsets them
	// by myRank*msgSize and remoteRank*msgSize respectively.
	A2ARaddr uint64
	A2ALaddr uint64

	// AtomicRaddrBaseDaddr[localRankIndex] is the base remote address of
	// the per-peer atomic completion counter array; the per-collective
	// offset is coll_index*8, added by the a2a driver.
	AtomicRaddrBaseDaddr []uint64

	// DumpFillMkey/DumpFillAddr is the scratch dump-fill destination for
	// every fetch-and-add's discarded fetched value.
	DumpFillMkey uint32
	DumpFillAddr uint64

	// RemoteCmpFlagMkey/RemoteCmpFlagDaddr locates this worker's local
	// view of the remote-atomic-completion flag array it waits on in
	// WAIT_A2A_COMP.
	RemoteCmpFlagMkey  uint32
	RemoteCmpFlagDaddr uint64

	// Host-side memory keys the memory window configures against.
	HostCmdBufMkey  uint32
	HostCmdInfoMkey uint32
	HostCmpMkey     uint32

	// HostCmdBufAddr is the base local (WOD-addressable) address backing
	// the command buffer the host writes into via RDMA: the same memory
	// the window above reads through host_cmd_buf_mkey, addressed
	// directly for a WOD WQE instead of through the window abstraction.
	HostCmdBufAddr uint64

	// HostCmdInfoAddr is the base address of the host's cmd-info array;
	// ldo_get_cmp_haddr offsets it by cmd_index*sizeof(cmd_info).
	HostCmdInfoAddr uint64

	// NetSQMask/NetCQMask/TrigSQMask/TrigCQMask are the ring index masks
	// derived from the configured queue depths.
	NetSQMask  uint32
	NetCQMask  uint32
	TrigSQMask uint32
	TrigCQMask uint32
	CmdQMask   uint32
	CollMask   uint32

	// NetCQMkey/NetCQBaseAddr let a WOD address a word inside this
	// worker's own network CQ ring — used by hangupA2AComp to watch the
	// sentinel zeroed in alltoall.
	NetCQMkey    uint32
	NetCQBaseAddr uint64
}

// HostCmdBufAddrFor returns the WOD-addressable address of byte offset
// into the command buffer.
func (t *Topology) HostCmdBufAddrFor(offset uint64) uint64 {
	return t.HostCmdBufAddr + offset
}
