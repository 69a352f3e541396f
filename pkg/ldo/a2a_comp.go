package ldo

import (
	"context"
	"encoding/binary"

	"github.com/flexio-dpa/ldo/pkg/ldo/window"
	"github.com/flexio-dpa/ldo/pkg/ldo/wqe"
)

// cmdInfoHaddr mirrors ldo_get_cmp_haddr: the host's cmd-info array offset
// by this command slot's index.
func (w *Worker) cmdInfoHaddr() int64 {
	return int64(w.Topo.HostCmdInfoAddr) + int64(w.CmdIndex)*CmdInfoStride
}

// CmdInfoStride is the per-slot stride of the host's cmd-info array: one
// CmdCompleted sentinel word plus one cmp_count word.
const CmdInfoStride = 16

// completeColl mirrors ldo_dev_complete_coll: publish the sentinel and the
// completion count to the host through two separate memory windows, one
// per mkey, exactly as the original does.
func (w *Worker) completeColl() error {
	infoWin, err := window.Configure(w.Reg, w.Topo.HostCmdInfoMkey)
	if err != nil {
		return err
	}
	infoWin.Acquire(w.cmdInfoHaddr())
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, CmdCompleted)
	if err := infoWin.Write(buf); err != nil {
		return err
	}
	if err := infoWin.Writeback(); err != nil {
		return err
	}

	cmpWin, err := window.Configure(w.Reg, w.Topo.HostCmpMkey)
	if err != nil {
		return err
	}
	cmpWin.Acquire(w.cmdInfoHaddr() + 8)
	binary.BigEndian.PutUint64(buf, w.CmpCount)
	if err := cmpWin.Write(buf); err != nil {
		return err
	}
	return cmpWin.Writeback()
}

// pollUntilHostCmd mirrors ldo_dev_poll_until_host_cmd: an optimistic check
// for whether the host has already deposited the next command before the
// worker commits to hanging up in WAIT_HOST_CMD.
func (w *Worker) pollUntilHostCmd(hangup *bool) error {
	expectedValid := (w.CmpCount >> wqe.LogCMDQDepth) + 1

	win, err := window.Configure(w.Reg, w.Topo.HostCmdBufMkey)
	if err != nil {
		return err
	}
	win.Acquire(int64(w.CmdIndex) * CmdSize)

	buf := make([]byte, 8)
	for i := 0; i < PollQuota; i++ {
		if err := win.ReadInv(buf); err != nil {
			return err
		}
		if binary.BigEndian.Uint64(buf) == expectedValid {
			return nil
		}
	}
	*hangup = true
	return nil
}

// processA2AComp mirrors ldo_dev_process_a2a_comp.
func (w *Worker) processA2AComp(ctx context.Context, hangup *bool) (State, error) {
	w.CmpCount++

	if w.Coord.Finish(w.CmdIndex) {
		if err := w.completeColl(); err != nil {
			return WaitA2AComp, err
		}
	}

	w.CmdIndex = (w.CmdIndex + 1) & w.Topo.CmdQMask

	if err := w.pollUntilHostCmd(hangup); err != nil {
		return WaitA2AComp, err
	}
	return WaitHostCmd, nil
}

// activationA2AComp is just advanceTrigCQ, handled generically in
// dispatch.go's Activation switch.

// hangupA2AComp mirrors ldo_dev_hangup_a2a_comp: post the resume condition
// for the next all-to-all round. When this round expected remote
// completions, two WODs are posted — one watching the remote-atomic flag,
// one watching the zeroed CQE sentinel's trailing word flip away from
// zero. When no remote completions were expected (a single-rank "all to
// all" degenerates to nothing to wait for), only the flag WOD is posted,
// and it alone carries CQE_ALWAYS.
func (w *Worker) hangupA2AComp() error {
	if w.lastContacted > 0 {
		w.Trig.SQPI = wqe.FormatWOD(w.Trig.SQ, w.Topo.TrigSQMask, w.Trig.SQPI, w.Trig.QPN,
			w.Topo.RemoteCmpFlagDaddr, w.Topo.RemoteCmpFlagMkey, wqe.WODEqual, false, wqe.CEOnFirstCQEError,
			w.RemoteCmpFlag.Load(), ^uint64(0))

		cqeIdx := uint64(w.Net.CQSt.Idx & w.Topo.NetCQMask)
		cqeAddr := w.Topo.NetCQBaseAddr + cqeIdx*64 + 56 // &cqe->s_wqe_opcode_qpn
		w.Trig.SQPI = wqe.FormatWOD(w.Trig.SQ, w.Topo.TrigSQMask, w.Trig.SQPI, w.Trig.QPN,
			cqeAddr, w.Topo.NetCQMkey, wqe.WODEqual, true, wqe.CEAlways, 0, 0xffffffff00000000)
	} else {
		w.Trig.SQPI = wqe.FormatWOD(w.Trig.SQ, w.Topo.TrigSQMask, w.Trig.SQPI, w.Trig.QPN,
			w.Topo.RemoteCmpFlagDaddr, w.Topo.RemoteCmpFlagMkey, wqe.WODEqual, false, wqe.CEAlways,
			w.RemoteCmpFlag.Load(), ^uint64(0))
	}

	w.armTrigger()
	return nil
}
