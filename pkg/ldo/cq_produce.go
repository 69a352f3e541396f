package ldo

import "sync"

// netCQProducer tracks the producer-side state of a worker's network CQ:
// in real hardware the NIC itself owns this side of the owner-bit
// protocol. The software model's fabric plays that role instead, so it
// needs its own index/owner-bit pair, independent of (but required to
// stay in lockstep with) the consumer side AdvanceCQ tracks.
type netCQProducer struct {
	mu    sync.Mutex
	idx   uint32
	owner uint8
}

// ProduceNetCQE writes a new completion — success (opcode 0) unless
// errSyndrome is non-zero, in which case it writes an error CQE carrying
// that syndrome — into w's network CQ ring at the producer's current
// position, then advances the producer index and flips its owner bit on
// wrap, mirroring how real hardware publishes a CQE.
func (w *Worker) ProduceNetCQE(errSyndrome uint8) {
	w.netCQProd.mu.Lock()
	defer w.netCQProd.mu.Unlock()

	mask := w.Topo.NetCQMask
	cqe := &w.Net.CQ[w.netCQProd.idx&mask]

	for i := range cqe {
		cqe[i] = 0
	}
	if errSyndrome != 0 {
		cqe[55] = errSyndrome // syndrome byte, per cq.errCQE's layout
		cqe[63] = (1 << 4) | w.netCQProd.owner
	} else {
		cqe[63] = w.netCQProd.owner
	}

	w.netCQProd.idx++
	if w.netCQProd.idx&mask == 0 {
		w.netCQProd.owner ^= 1
	}
}

// initNetCQProducer sets the producer's initial owner bit to the
// complement of the consumer's, so the first production is recognized as
// new by AdvanceCQ.
func (w *Worker) initNetCQProducer() {
	w.netCQProd.idx = 0
	w.netCQProd.owner = w.Net.CQSt.OwnerBit ^ 1
}

// ProduceTrigCQE produces a completion on w's trigger CQ: the software
// model's stand-in for "the NIC finished evaluating a posted Wait-on-Data
// WQE and rescheduled this hardware thread". The harness calls this right
// before every Worker.Run, since Run's Activation hook always drains
// exactly one trigger completion before a state's process_* function does
// its own real check (reading the host command buffer, trigger counter or
// remote-atomic flag) to decide whether the wait condition the WOD encoded
// actually holds yet.
func (w *Worker) ProduceTrigCQE() {
	w.trigCQProd.mu.Lock()
	defer w.trigCQProd.mu.Unlock()

	mask := w.Topo.TrigCQMask
	cqe := &w.Trig.CQ[w.trigCQProd.idx&mask]
	for i := range cqe {
		cqe[i] = 0
	}
	cqe[63] = w.trigCQProd.owner

	w.trigCQProd.idx++
	if w.trigCQProd.idx&mask == 0 {
		w.trigCQProd.owner ^= 1
	}
}

// initTrigCQProducer mirrors initNetCQProducer for the trigger CQ.
func (w *Worker) initTrigCQProducer() {
	w.trigCQProd.idx = 0
	w.trigCQProd.owner = w.Trig.CQSt.OwnerBit ^ 1
}
