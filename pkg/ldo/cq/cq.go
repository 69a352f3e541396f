// Package cq implements the completion queue engine the worker state
// machine polls: owner-bit tracking, doorbell record updates, and the
// fatal error-CQE trap described in spec.md §4.2 and §7.
package cq

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
)

// CQE64 is one 64-byte completion queue entry. Only the fields the worker
// actually inspects (opcode/owner in the last byte, and the error-CQE
// fields when opcode != 0) are named; the rest is opaque hardware payload.
type CQE64 [64]byte

// OwnerBit returns the low bit of the trailing op_own byte.
func (c *CQE64) OwnerBit() uint8 { return c[63] & 0x1 }

// Opcode returns the high nibble of the trailing op_own byte. A non-zero
// opcode on a completion means an error CQE, per the PRM convention the
// original program relies on.
func (c *CQE64) Opcode() uint8 { return c[63] >> 4 }

// errCQE overlays the error-specific fields of a CQE64 whose Opcode() is
// non-zero, reproducing dpa_mlx5_err_cqe64's tail layout.
type errCQE struct {
	raw *CQE64
}

func (e errCQE) syndrome() uint8        { return e.raw[55] }
func (e errCQE) vendorSyndrome() uint8  { return e.raw[54] }
func (e errCQE) hwErrorSyndrome() uint8 { return e.raw[52] }
func (e errCQE) hwSyndromeType() uint8  { return e.raw[53] }
func (e errCQE) sWQEOpcodeQPN() uint32  { return binary.BigEndian.Uint32(e.raw[56:60]) }
func (e errCQE) wqeCounter() uint16     { return binary.BigEndian.Uint16(e.raw[60:62]) }

// ErrFatalCQE is returned when AdvanceCQ observes an error completion. Per
// spec.md §7 this is unconditionally fatal: the original calls
// flexio_dev_thread_finish() and never returns to its caller. The software
// model can't terminate a hardware thread, so it returns this sentinel up
// through ldo.Worker.Run, whose caller stops that worker's goroutine and reports
// the error to the harness exactly as a thread-finish trap would have.
var ErrFatalCQE = errors.New("cq: fatal error completion")

// CQEError carries the decoded error-CQE fields for logging/diagnostics.
type CQEError struct {
	Syndrome        uint8
	VendorSyndrome  uint8
	HWErrorSyndrome uint8
	HWSyndromeType  uint8
	WQEOpcodeQPN    uint32
	WQECounter      uint16
}

func (e *CQEError) Error() string {
	return fmt.Sprintf("cq: syndrome=0x%x vendor_syndrome=0x%x hw_error_syndrome=0x%x hw_syndrome_type=0x%x wqe_opcode_qpn=0x%x wqe_counter=%d",
		e.Syndrome, e.VendorSyndrome, e.HWErrorSyndrome, e.HWSyndromeType, e.WQEOpcodeQPN, e.WQECounter)
}

func (e *CQEError) Unwrap() error { return ErrFatalCQE }

// State tracks the mutable poll position the original keeps in the worker
// DB: a ring index and the hardware owner bit expected on the next unseen
// CQE.
type State struct {
	Idx      uint32
	OwnerBit uint8
}

// AdvanceCQ inspects ring[state.Idx & mask]. If wait is false, it returns
// immediately (0, nil) when no new completion has arrived. If wait is true,
// it spins — yielding the goroutine between checks, standing in for the
// original's busy-wait inside a hardware thread — until either a new
// completion arrives or ctx is done. dbr, when non-nil, is written with the
// advanced consumer index exactly as the original updates the doorbell
// record so the NIC can reclaim CQ space.
func AdvanceCQ(ctx context.Context, ring []CQE64, state *State, mask uint32, dbr *uint32, wait bool) (int, error) {
	cqe := &ring[state.Idx&mask]

	for cqe.OwnerBit() == state.OwnerBit {
		if !wait {
			return 0, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
		runtime.Gosched()
	}

	if op := cqe.Opcode(); op != 0 {
		e := errCQE{raw: cqe}
		return 0, &CQEError{
			Syndrome:        e.syndrome(),
			VendorSyndrome:  e.vendorSyndrome(),
			HWErrorSyndrome: e.hwErrorSyndrome(),
			HWSyndromeType:  e.hwSyndromeType(),
			WQEOpcodeQPN:    e.sWQEOpcodeQPN(),
			WQECounter:      e.wqeCounter(),
		}
	}

	state.Idx++
	if dbr != nil {
		*dbr = state.Idx
	}
	if state.Idx&mask == 0 {
		state.OwnerBit ^= 1
	}
	return 1, nil
}
