package ldo

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexio-dpa/ldo/pkg/hostmem"
	"github.com/flexio-dpa/ldo/pkg/ldo/cq"
	"github.com/flexio-dpa/ldo/pkg/ldo/wqe"
)

// testRank is a minimal in-package stand-in for cmd/ldo-simd's rankContext,
// just enough to drive two workers through one all-to-all round without
// depending on the harness's own package (which this package cannot import,
// being a main package).
type testRank struct {
	topo    *Topology
	reg     *hostmem.Registry
	worker  *Worker
	coord   *Coordinator
	cmdBuf  *hostmem.Region
	trigLoc *hostmem.Region
	sendBuf []byte
	recvBuf []byte
}

const (
	testMkeyCmdBuf   = 1
	testMkeyCmdInfo  = 2
	testMkeyCmp      = 3
	testMkeyDumpFill = 4
	testMkeyTrigLoc  = 5
)

func buildTestRanks(t *testing.T, numRanks int, msgSize uint32, logger *slog.Logger) []*testRank {
	t.Helper()

	cmdQDepth := int(wqe.L2V(wqe.LogCMDQDepth))
	netSQDepth := int(wqe.L2V(wqe.LogNetSQDepth))
	netCQDepth := int(wqe.L2V(wqe.LogNetCQDepth))
	trigSQDepth := int(wqe.L2V(wqe.LogWorkerSQDepth))
	trigCQDepth := int(wqe.L2V(wqe.LogWorkerCQDepth))

	ranks := make([]*testRank, numRanks)
	for r := 0; r < numRanks; r++ {
		reg := hostmem.NewRegistry()
		cmdBuf := hostmem.NewRegion(cmdQDepth * CmdSize)
		cmdInfo := hostmem.NewRegion(cmdQDepth * int(CmdInfoStride))
		trigLoc := hostmem.NewRegion(8)
		dumpFill := hostmem.NewRegion(8)

		reg.Register(testMkeyCmdBuf, cmdBuf)
		reg.Register(testMkeyCmdInfo, cmdInfo)
		reg.Register(testMkeyCmp, cmdInfo)
		reg.Register(testMkeyDumpFill, dumpFill)
		reg.Register(testMkeyTrigLoc, trigLoc)

		qpn := make([]uint32, numRanks)
		atomicBase := make([]uint64, numRanks)
		for i := range qpn {
			qpn[i] = uint32(i)
			atomicBase[i] = uint64(i) * 8
		}

		topo := &Topology{
			NumWorkers:           1,
			MyRank:               r,
			NumRanks:             numRanks,
			QPN:                  qpn,
			Rkey:                 1,
			Lkey:                 1,
			AtomicRaddrBaseDaddr: atomicBase,
			DumpFillMkey:         testMkeyDumpFill,
			RemoteCmpFlagMkey:    testMkeyTrigLoc,
			HostCmdBufMkey:       testMkeyCmdBuf,
			HostCmdInfoMkey:      testMkeyCmdInfo,
			HostCmpMkey:          testMkeyCmp,
			NetSQMask:            wqe.L2M(wqe.LogNetSQDepth),
			NetCQMask:            wqe.L2M(wqe.LogNetCQDepth),
			TrigSQMask:           wqe.L2M(wqe.LogWorkerSQDepth),
			TrigCQMask:           wqe.L2M(wqe.LogWorkerCQDepth),
			CmdQMask:             wqe.L2M(wqe.LogCMDQDepth),
			CollMask:             wqe.L2M(wqe.LogConcurrentColls),
			NetCQMkey:            testMkeyTrigLoc,
		}

		coord := NewCoordinator(1, cmdQDepth)

		worker := NewWorker(r, topo, reg, func(uint32, uint32) {}, coord, logger)
		worker.RemoteCmpFlag = &atomic.Uint64{}
		worker.Net.SQ = make([][]wqe.BB, numRanks)
		for i := range worker.Net.SQ {
			worker.Net.SQ[i] = make([]wqe.BB, netSQDepth)
		}
		worker.Net.CQ = make([]cq.CQE64, netCQDepth)
		worker.Net.CQDBR = new(uint32)
		worker.Trig.SQ = make([]wqe.BB, trigSQDepth)
		worker.Trig.CQ = make([]cq.CQE64, trigCQDepth)
		worker.Trig.CQDBR = new(uint32)
		worker.Trig.QPN = uint32(r)

		rank := &testRank{
			topo:    topo,
			reg:     reg,
			worker:  worker,
			coord:   coord,
			cmdBuf:  cmdBuf,
			trigLoc: trigLoc,
			sendBuf: make([]byte, numRanks*int(msgSize)),
			recvBuf: make([]byte, numRanks*int(msgSize)),
		}
		for dest := 0; dest < numRanks; dest++ {
			slot := rank.sendBuf[dest*int(msgSize) : (dest+1)*int(msgSize)]
			for i := range slot {
				slot[i] = byte(r*31 + dest*7 + i)
			}
		}
		ranks[r] = rank
	}

	for r, rank := range ranks {
		r := r
		rank.worker.NetRing = func(qpn uint32, ring []wqe.BB, sqPI uint32) {
			deliverTestRank(ranks, r, qpn, ring, sqPI)
		}
		WorkerSetup([]*Worker{rank.worker}, rank.coord, logger)
	}

	return ranks
}

// deliverTestRank mirrors cmd/ldo-simd/fabric.go's deliver: decode the
// just-posted RDMA Write WQE and apply it against the destination rank's
// receive buffer, then post the resulting completion on the sender's own
// net CQ.
func deliverTestRank(ranks []*testRank, srcRank int, destRank uint32, ring []wqe.BB, sqPI uint32) {
	mask := uint32(len(ring)) - 1
	w := wqe.Decode(&ring[(sqPI-2)&mask])

	dest := ranks[destRank]
	src := ranks[srcRank]

	raddr, laddr, n := int(w.Raddr), int(w.Laddr), int(w.ByteCount)
	copy(dest.recvBuf[raddr:raddr+n], src.sendBuf[laddr:laddr+n])

	dest.worker.RemoteCmpFlag.Add(1)
	src.worker.ProduceNetCQE(0)
}

func submitTestCommand(t *testing.T, rank *testRank, msgSize uint32, rankCount int) {
	t.Helper()

	cmd := Command{
		ValidCount:       1,
		TriggerThreshold: 1,
		TriggerLkey:      testMkeyTrigLoc,
		TriggerLoc:       0,
		MsgSize:          msgSize,
		RankCount:        uint32(rankCount),
		StartRank:        0,
	}
	_, err := rank.cmdBuf.WriteAt(cmd.Encode(), 0)
	require.NoError(t, err)

	trigBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(trigBuf, 1)
	_, err = rank.trigLoc.WriteAt(trigBuf, 0)
	require.NoError(t, err)
}

// runUntilCompletion nudges w (ProduceTrigCQE then Run, exactly as
// cmd/ldo-simd's runWorker goroutine does) until it has cycled all the way
// back around to WAIT_HOST_CMD with at least one collective completed, or
// the iteration budget runs out.
func runUntilCompletion(t *testing.T, ctx context.Context, w *Worker) {
	t.Helper()
	for i := 0; i < 10_000; i++ {
		select {
		case <-ctx.Done():
			t.Fatalf("worker %d: context done before completion: %v", w.Rank, ctx.Err())
		default:
		}

		w.ProduceTrigCQE()
		err := w.Run(ctx)
		require.NoError(t, err)

		if w.State == WaitHostCmd && w.CmpCount > 0 {
			return
		}
		// A hung-up worker's peer may not have posted its own completion
		// yet; yield briefly so the other rank's goroutine gets scheduled,
		// mirroring cmd/ldo-simd's runWorker loop.
		time.Sleep(100 * time.Microsecond)
	}
	t.Fatalf("worker %d: did not complete within iteration budget", w.Rank)
}

func TestTwoRankAllToAllExchange(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	const numRanks = 2
	const msgSize = 8

	ranks := buildTestRanks(t, numRanks, msgSize, logger)
	for _, rank := range ranks {
		submitTestCommand(t, rank, msgSize, numRanks)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, rank := range ranks {
		rank := rank
		wg.Add(1)
		go func() {
			defer wg.Done()
			runUntilCompletion(t, ctx, rank.worker)
		}()
	}
	wg.Wait()

	for r, rank := range ranks {
		require.Equal(t, uint64(1), rank.worker.CmpCount, "rank %d", r)
		require.True(t, rank.coord.Finish(0), "rank %d's coordinator slot should reset after its own last-finisher publish, so the next Finish reports last-finisher again", r)

		for sender := 0; sender < numRanks; sender++ {
			if sender == r {
				continue
			}
			want := make([]byte, msgSize)
			for i := range want {
				want[i] = byte(sender*31 + r*7 + i)
			}
			got := rank.recvBuf[sender*msgSize : (sender+1)*msgSize]
			require.Equal(t, want, got, "rank %d's receive slot for sender %d", r, sender)
		}
	}
}
