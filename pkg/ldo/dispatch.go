package ldo

import (
	"context"
	"fmt"

	"github.com/flexio-dpa/ldo/pkg/ldo/cq"
)

// advanceTrigCQ wraps cq.AdvanceCQ for this worker's trigger CQ, mirroring
// ldo_dev_advance_trig_cq.
func (w *Worker) advanceTrigCQ(ctx context.Context, wait bool) error {
	_, err := cq.AdvanceCQ(ctx, w.Trig.CQ, &w.Trig.CQSt, w.Topo.TrigCQMask, w.Trig.CQDBR, wait)
	return err
}

// advanceNetCQ wraps cq.AdvanceCQ for this worker's network CQ, returning
// the number of completions found (0 or 1) so callers can tally progress
// across repeated polls, as ldo_dev_poll_until_a2a_comp does.
func (w *Worker) advanceNetCQ(ctx context.Context) (int, error) {
	return cq.AdvanceCQ(ctx, w.Net.CQ, &w.Net.CQSt, w.Topo.NetCQMask, w.Net.CQDBR, false)
}

// armTrigger rings this worker's trigger SQ doorbell for the WOD just
// posted, the doorbell-ring tail shared by every hangup_* function. The
// software model has no separate trigger-CQ arm step: the harness produces
// the next trigger completion itself (ProduceTrigCQE).
func (w *Worker) armTrigger() {
	w.Ring(w.Trig.QPN, w.Trig.SQPI)
}

// Activation dispatches to the per-state activation hook, mirroring
// ldo_dev_activation.
func (w *Worker) Activation(ctx context.Context, state State) error {
	switch state {
	case WaitHostCmd:
		return w.activationHostCmd(ctx)
	case WaitTrigger:
		return w.advanceTrigCQ(ctx, true)
	case WaitA2AComp:
		return w.advanceTrigCQ(ctx, true)
	default:
		return fmt.Errorf("ldo: activation: unknown state %v", state)
	}
}

// progressState dispatches to the per-state process hook, mirroring
// ldo_dev_progress_state, returning the next state and whether this
// iteration hung the worker up.
func (w *Worker) progressState(ctx context.Context, state State, hangup *bool) (State, error) {
	switch state {
	case WaitHostCmd:
		return w.processHostCmd(hangup)
	case WaitTrigger:
		return w.processTrigger(ctx, hangup)
	case WaitA2AComp:
		return w.processA2AComp(ctx, hangup)
	default:
		return state, fmt.Errorf("ldo: progress: unknown state %v", state)
	}
}

// Hangup dispatches to the per-state hangup hook, mirroring ldo_dev_hangup.
func (w *Worker) Hangup(state State) error {
	switch state {
	case WaitHostCmd:
		return w.hangupHostCmd()
	case WaitTrigger:
		return w.hangupTrigger()
	case WaitA2AComp:
		return w.hangupA2AComp()
	default:
		return fmt.Errorf("ldo: hangup: unknown state %v", state)
	}
}

// Run is one hardware-thread activation of this worker, mirroring
// ldo_dev_worker: run the current state's activation hook, then progress
// through states without yielding until one of them hangs the worker up,
// then run that state's hangup hook and persist the (possibly advanced)
// state for the next activation. The caller (cmd/ldo-simd's worker
// goroutine) is responsible for deciding when to call Run again — that
// decision stands in for flexio_dev_thread_reschedule() waking a hardware
// thread back up.
func (w *Worker) Run(ctx context.Context) error {
	next := w.State
	if err := w.Activation(ctx, next); err != nil {
		return err
	}

	var state State
	for {
		state = next
		hangup := false
		n, err := w.progressState(ctx, state, &hangup)
		if err != nil {
			return err
		}
		next = n
		if hangup {
			break
		}
	}

	if err := w.Hangup(state); err != nil {
		return err
	}
	w.State = next
	return nil
}
