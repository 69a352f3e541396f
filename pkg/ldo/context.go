package ldo

import (
	"errors"
	"log/slog"
	"os"
	"unsafe"

	"github.com/prometheus/procfs"

	"github.com/flexio-dpa/ldo/pkg/ldo/cq"
	"github.com/flexio-dpa/ldo/pkg/ldo/wqe"
)

// Compile-time size assertions, the Go analogue of ldo_context_setup's
// _Static_assert calls: unsafe.Sizeof is a constant expression for these
// fixed-size array types, so an array literal whose length is the
// remainder of a division by 64 fails to compile unless that remainder is
// exactly zero.
var (
	_ [0]struct{} = [unsafe.Sizeof(wqe.BB{}) % 64]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(cq.CQE64{}) % 64]struct{}{}
	_ [0]struct{} = [CmdSize % wqe.SWQEBSize]struct{}{}
)

// ContextSetup mirrors ldo_context_setup: validate the fixed-layout struct
// sizes above (done at compile time here rather than the original's
// runtime _Static_assert, since Go's unsafe.Sizeof is itself a constant
// expression) and return the next context generation number. The original
// source's duplicated `return arg+1; return arg+1;` is a dead second
// statement; SPEC_FULL.md §4 treats it as a source artifact, so this
// returns once.
func ContextSetup(arg int) (int, error) {
	return arg + 1, nil
}

// WorkerSetup primes every worker before any is run, mirroring
// ldo_dev_worker_setup's exact ordering: post every worker's initial WOD
// first, flush, THEN ring every doorbell and arm every trigger CQ, and
// ONLY THEN zero the completion coordinator. An arm before its matching
// doorbell ring would never observe the WOD firing, and zeroing the
// coordinator first would be harmless but is kept last anyway, unchanged
// from the original, per SPEC_FULL.md §4's supplemented-feature note.
func WorkerSetup(workers []*Worker, coord *Coordinator, logger *slog.Logger) {
	for _, w := range workers {
		w.Net.CQSt = cq.State{Idx: 0, OwnerBit: 0}
		w.initNetCQProducer()
		w.waitHostCmd()
	}

	for _, w := range workers {
		w.armTrigger()
	}

	for _, w := range workers {
		w.Trig.CQSt = cq.State{Idx: 0, OwnerBit: 0}
		w.initTrigCQProducer()
	}

	coord.Reset()

	logger.Info("ldo worker setup complete", "workers", len(workers))
}

// ContextFinalize mirrors ldo_context_finalize's diagnostic dump: log, for
// each worker, the address and value of its remote-completion flag. Each
// worker holds a single flag counter, so one entry per worker is logged,
// not one per concurrent-collective slot. It also
// folds in the procfs-backed process diagnostics SPEC_FULL.md's domain
// stack adds (§3), genuinely new information the original's process-local
// NIC dump couldn't have had.
func ContextFinalize(workers []*Worker, logger *slog.Logger) {
	for i, w := range workers {
		logger.Info("remote completion flag", "worker", i, "addr", w.Topo.RemoteCmpFlagDaddr, "value", w.RemoteCmpFlag.Load())
	}

	if stat, err := processSelfStat(); err == nil {
		logger.Info("host process diagnostics", "rss_bytes", stat.RSS*os.Getpagesize(), "utime_ticks", stat.UTime, "num_threads", stat.NumThreads)
	} else {
		logger.Debug("host process diagnostics unavailable", "error", err)
	}
}

// processSelfStat reads /proc/self/stat through procfs: a genuinely new
// diagnostic the original DPA program, which never runs under a host OS
// process at all, couldn't have had. cmd/ldo-simd's host-side simulator
// process is the thing procfs actually describes here.
func processSelfStat() (procfs.ProcStat, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return procfs.ProcStat{}, err
	}
	proc, err := fs.Self()
	if err != nil {
		return procfs.ProcStat{}, err
	}
	return proc.Stat()
}

// ErrorHandler mirrors ldo_error_handler: log the error that terminated a
// worker. The original calls flexio_dev_get_errno() then
// flexio_dev_thread_reschedule(); the software model has no hardware
// thread to reschedule, so the harness decides whether to restart the
// worker's goroutine after this is called.
func ErrorHandler(logger *slog.Logger, rank int, err error) {
	var cqeErr *cq.CQEError
	if errors.As(err, &cqeErr) {
		logger.Error("worker fatal error completion", "worker", rank, "error", cqeErr)
		return
	}
	logger.Error("worker error", "worker", rank, "error", err)
}
