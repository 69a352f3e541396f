package ldo

import (
	"context"

	"github.com/flexio-dpa/ldo/pkg/ldo/cq"
	"github.com/flexio-dpa/ldo/pkg/ldo/wqe"
)

// alltoall posts the per-peer RDMA Write + Atomic Fetch-and-Add WQE pair
// for every remote rank in the command's rank range, mirroring
// ldo_dev_alltoall. It returns the number of non-self peers contacted,
// which poll_until_a2a_comp needs to know how many net-CQ completions and
// how much remote-atomic progress to wait for.
func (w *Worker) alltoall(opIndex uint32) int {
	contacted := 0
	for li := 0; li < int(w.Cmd.RankCount); li++ {
		remoteRank := int(w.Cmd.StartRank) + li
		if remoteRank == w.Topo.MyRank {
			continue
		}

		qpn := w.Topo.QPN[li]
		ring := w.Net.SQ[li]
		mask := w.Topo.NetSQMask
		pi := w.Net.SQPI

		dataRaddr := w.Topo.A2ARaddr + uint64(w.Topo.MyRank)*uint64(w.Cmd.MsgSize)
		dataLaddr := w.Topo.A2ALaddr + uint64(remoteRank)*uint64(w.Cmd.MsgSize)
		pi = wqe.FormatRDMAWriteNoComp(ring, mask, pi, qpn, w.Topo.Rkey, dataRaddr, w.Topo.Lkey, dataLaddr, w.Cmd.MsgSize)

		atomicRaddr := w.Topo.AtomicRaddrBaseDaddr[li] + uint64(opIndex)*8
		wqe.FormatAtomicFetchAddComp(ring, mask, pi, qpn, w.Topo.Rkey, atomicRaddr, w.Topo.DumpFillMkey, w.Topo.DumpFillAddr)

		contacted++
	}

	// zero the CQE slot the next completion will land in: a
	// WOD-observable sentinel hangup_a2a_comp's invert-equal WOD checks
	// for a change away from, instead of relying solely on the owner
	// bit, mirroring ldo_dev_alltoall's pre-doorbell zeroing.
	cqIdxLast := w.Net.CQSt.Idx + uint32(contacted)
	zeroCQESentinel(w.Net.CQ, w.Topo.NetCQMask, cqIdxLast)

	// The shared epoch producer index advances once per collective, not
	// once per peer: every peer's independent ring is addressed at the
	// same relative position, per spec.md §4.4.
	w.Net.SQPI += 2

	for li := 0; li < int(w.Cmd.RankCount); li++ {
		remoteRank := int(w.Cmd.StartRank) + li
		if remoteRank == w.Topo.MyRank {
			continue
		}
		w.NetRing(w.Topo.QPN[li], w.Net.SQ[li], w.Net.SQPI)
	}

	return contacted
}

// zeroCQESentinel clears the trailing opcode/QPN word of ring[idx & mask].
func zeroCQESentinel(ring []cq.CQE64, mask uint32, idx uint32) {
	cqe := &ring[idx&mask]
	cqe[56], cqe[57], cqe[58], cqe[59] = 0, 0, 0, 0
}

// pollUntilA2AComp mirrors ldo_dev_poll_until_a2a_comp: tally net-CQ
// completions non-blockingly and watch the remote-atomic flag until both
// the expected completion count and the expected remote-atomic count are
// observed, or the poll quota runs out.
func (w *Worker) pollUntilA2AComp(ctx context.Context, opWraps uint32, remoteRanks int, hangup *bool) error {
	expectedRemoteAtomicCount := uint64(opWraps+1) * uint64(w.Topo.NumRanks-1)
	totalFound := 0

	for i := 0; i < PollQuota; i++ {
		found, err := w.advanceNetCQ(ctx)
		if err != nil {
			return err
		}
		totalFound += found

		remoteDone := w.RemoteCmpFlag.Load() == expectedRemoteAtomicCount
		if totalFound == remoteRanks && remoteDone {
			return nil
		}
	}
	*hangup = true
	return nil
}

// processTrigger mirrors ldo_dev_process_trigger.
func (w *Worker) processTrigger(ctx context.Context, hangup *bool) (State, error) {
	opIndex := uint32(w.CmpCount) & w.Topo.CollMask
	opWraps := uint32(w.CmpCount >> wqe.LogConcurrentColls)

	contacted := w.alltoall(opIndex)
	w.lastContacted = contacted
	if err := w.pollUntilA2AComp(ctx, opWraps, contacted, hangup); err != nil {
		return WaitTrigger, err
	}
	if *hangup {
		return WaitTrigger, nil
	}
	return WaitA2AComp, nil
}

// hangupTrigger mirrors ldo_dev_hangup_trigger: post an inverted BIGGER
// WOD on the command's trigger location so the worker resumes the instant
// the host advances the trigger counter past the threshold it was waiting
// on, then ring and arm the trigger queue.
func (w *Worker) hangupTrigger() error {
	w.Trig.SQPI = wqe.FormatWOD(w.Trig.SQ, w.Topo.TrigSQMask, w.Trig.SQPI, w.Trig.QPN,
		w.Cmd.TriggerLoc, w.Cmd.TriggerLkey, wqe.WODBigger, true, wqe.CEAlways,
		w.Cmd.TriggerThreshold, ^uint64(0))
	w.armTrigger()
	return nil
}
