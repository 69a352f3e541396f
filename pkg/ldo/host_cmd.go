package ldo

import (
	"context"
	"encoding/binary"

	"github.com/flexio-dpa/ldo/pkg/ldo/window"
	"github.com/flexio-dpa/ldo/pkg/ldo/wqe"
)

// getCmdPtr configures the command-buffer window and acquires a pointer to
// this worker's command slot, mirroring ldo_dev_get_cmd_ptr.
func (w *Worker) getCmdPtr() (*window.Window, error) {
	win, err := window.Configure(w.Reg, w.Topo.HostCmdBufMkey)
	if err != nil {
		return nil, err
	}
	win.Acquire(int64(w.CmdIndex) * CmdSize)
	return win, nil
}

// readHostCmd reads the command at the current CmdIndex into w.Cmd,
// mirroring ldo_dev_read_host_cmd: thread_window_read_inv then a copy into
// the worker's own stack-resident command.
func (w *Worker) readHostCmd() error {
	win, err := w.getCmdPtr()
	if err != nil {
		return err
	}
	buf := make([]byte, CmdSize)
	if err := win.ReadInv(buf); err != nil {
		return err
	}
	w.Cmd = DecodeCommand(buf)
	return nil
}

// pollUntilTrigger configures the trigger-location window (from the
// command's trigger lkey) and polls it until the trigger counter reaches
// the command's threshold, mirroring ldo_dev_poll_until_trigger. On
// exhausting PollQuota without success it reports hangup.
func (w *Worker) pollUntilTrigger(hangup *bool) error {
	win, err := window.Configure(w.Reg, w.Cmd.TriggerLkey)
	if err != nil {
		return err
	}
	win.Acquire(int64(w.Cmd.TriggerLoc))

	buf := make([]byte, 8)
	for i := 0; i < PollQuota; i++ {
		if err := win.ReadInv(buf); err != nil {
			return err
		}
		if binary.BigEndian.Uint64(buf) >= w.Cmd.TriggerThreshold {
			return nil
		}
	}
	*hangup = true
	return nil
}

// processHostCmd mirrors ldo_dev_process_host_cmd: the command was already
// read into the worker by activationHostCmd, so this state just waits for
// the trigger.
func (w *Worker) processHostCmd(hangup *bool) (State, error) {
	if err := w.pollUntilTrigger(hangup); err != nil {
		return WaitHostCmd, err
	}
	if *hangup {
		return WaitHostCmd, nil
	}
	return WaitTrigger, nil
}

// activationHostCmd mirrors ldo_dev_activation_host_cmd: drain the trigger
// CQ for the WOD that resumed this worker, then read the host command.
func (w *Worker) activationHostCmd(ctx context.Context) error {
	if err := w.advanceTrigCQ(ctx, true); err != nil {
		return err
	}
	return w.readHostCmd()
}

// waitHostCmd posts the WOD this worker parks on until its CMDQ slot's
// valid_count reaches the value the host will write for its next
// submission, mirroring ldo_dev_wait_host_cmd. expectedValid is
// (cmp_count >> LogCMDQDepth) + 1.
func (w *Worker) waitHostCmd() {
	expectedValid := (w.CmpCount >> wqe.LogCMDQDepth) + 1
	cmdOffset := uint64(w.CmdIndex) * CmdSize // ValidCount is cmd's leading field
	w.Trig.SQPI = wqe.FormatWOD(w.Trig.SQ, w.Topo.TrigSQMask, w.Trig.SQPI, w.Trig.QPN,
		w.Topo.HostCmdBufAddrFor(cmdOffset), w.Topo.HostCmdBufMkey,
		wqe.WODEqual, false, wqe.CEAlways, expectedValid, ^uint64(0))
}

// hangupHostCmd mirrors ldo_dev_hangup_host_cmd: post the resume condition,
// flush it to the NIC, ring the trigger doorbell, and arm the trigger CQ.
func (w *Worker) hangupHostCmd() error {
	w.waitHostCmd()
	w.armTrigger()
	return nil
}
