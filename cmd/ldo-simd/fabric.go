package main

import (
	"fmt"

	"github.com/flexio-dpa/ldo/pkg/ldo/wqe"
)

// deliver is the fabric's handling of one ringed network send-queue
// doorbell: it decodes the RDMA Write + Atomic Fetch-and-Add WQE pair the
// all-to-all driver just posted, applies their effect against the
// destination rank's simulated receive buffer and remote-completion
// counter, and posts the resulting completion back onto the sender's own
// net CQ — standing in for the wire, the peer NIC, and the sender's own
// NIC's completion generation, all at once. srcRank identifies the rank
// whose goroutine is making this call; destRank is decoded from the
// doorbell's own qpn argument, which in this harness's full-mesh-only
// topology is simply the peer's rank number (see DESIGN.md's harness
// scope note on QPN numbering).
func (h *Harness) deliver(srcRank int, destRank uint32, ring []wqe.BB, sqPI uint32) {
	mask := uint32(len(ring)) - 1
	writeWQE := wqe.Decode(&ring[(sqPI-2)&mask])

	if int(destRank) >= len(h.ranks) {
		h.logger.Error("fabric: doorbell addressed unknown rank", "src", srcRank, "dest", destRank)
		return
	}
	dest := h.ranks[destRank]
	src := h.ranks[srcRank]

	if err := copyA2AMessage(dest, src, writeWQE); err != nil {
		h.logger.Error("fabric: deliver a2a message", "src", srcRank, "dest", destRank, "error", err)
	}

	dest.worker.RemoteCmpFlag.Add(1)

	src.worker.ProduceNetCQE(0)
}

// copyA2AMessage applies an RDMA Write WQE's effect: copy ByteCount bytes
// from the sender's local (laddr-offset) send buffer into the
// destination's remote (raddr-offset) receive buffer.
func copyA2AMessage(dest, src *rankContext, w wqe.Decoded) error {
	raddr, laddr, n := int(w.Raddr), int(w.Laddr), int(w.ByteCount)
	if raddr < 0 || raddr+n > len(dest.recvBuf) {
		return fmt.Errorf("fabric: raddr %d len %d exceeds recv buffer size %d", raddr, n, len(dest.recvBuf))
	}
	if laddr < 0 || laddr+n > len(src.sendBuf) {
		return fmt.Errorf("fabric: laddr %d len %d exceeds send buffer size %d", laddr, n, len(src.sendBuf))
	}
	copy(dest.recvBuf[raddr:raddr+n], src.sendBuf[laddr:laddr+n])
	return nil
}
