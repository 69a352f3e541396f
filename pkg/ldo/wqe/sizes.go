// Package wqe formats the RDMA and Wait-on-Data work queue elements the
// collective worker posts to its network and trigger send queues. Layouts
// are big-endian and bit-exact with the PRM: every field here is read by
// real NIC hardware in the original DPA program, so field widths and shift
// amounts are never "cleaned up" for Go readability.
package wqe

// L2V returns 1<<n, the idiom the original program uses throughout to turn
// a log2 depth into a linear size.
func L2V(n uint) uint32 { return 1 << n }

// L2M returns L2V(n)-1, a ring index mask for a power-of-two-sized ring.
func L2M(n uint) uint32 { return L2V(n) - 1 }

// Depth/size constants, reproduced from ldo_dev.h's #defines.
const (
	LogNetSQDepth      = 7  // network send queue depth
	LogNetCQDepth      = 7  // network completion queue depth
	LogWorkerSQDepth   = 5  // trigger send queue depth
	LogWorkerCQDepth   = 5  // trigger completion queue depth
	LogCMDQDepth       = 5  // host command queue depth
	LogConcurrentColls = 3  // in-flight collective slots
	LogCMDSize         = 6  // size in bytes of one host command, log2
	LogSWQEBSize       = 6  // 64 bytes per WQE basic block
	SWQEBSize          = 64 // L2V(LogSWQEBSize)
)

// BB is one WQE basic block: a fixed 64-byte slot in a send queue ring.
type BB [SWQEBSize]byte

// Opcode holds the low byte of ctrl.idx_opcode.
type Opcode uint8

const (
	OpcodeRDMAWrite      Opcode = 0x08
	OpcodeAtomicFetchAdd Opcode = 0x0f
	// OpcodeWait shares the atomic fetch-and-add opcode value; the ctrl
	// segment's mod field (OpcodeModWaitOnData) is what actually tells
	// the two apart, exactly as the PRM defines it.
	OpcodeWait          Opcode = 0x0f
	OpcodeModWaitOnData uint32 = 1
)

// Data segment sizes (DS), counted in 16-byte octowords including ctrl.
const (
	DSRDMAWrite  = 3
	DSAtomicFAA  = 4
	DSWaitOnData = 3
)

// Completion-event policy for ctrl.signature_fm_ce_se.
const (
	CENever             = 0
	CEAlways            = 1
	CEOnFirstCQEError   = 3
)

// Wait-on-Data comparison ops (wod_seg.op_inv low nibble).
const (
	WODAlwaysTrue    = 0
	WODEqual         = 1
	WODBigger        = 2
	WODSmaller       = 3
	WODCyclicBigger  = 4
	WODCyclicSmaller = 5
)

// WODFailActionRetry is the only fail-action the original program ever
// encodes in a WOD segment's low 3 address bits; it is never varied, so
// SPEC_FULL keeps it a constant rather than a parameter.
const WODFailActionRetry = 0
