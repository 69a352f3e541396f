package wqe

import "encoding/binary"

// Decoded is a parsed view of one WQE, used by tests and by the simulator
// harness (which has no real NIC to execute the WQE against, so it decodes
// the posted bytes and applies their effect itself).
type Decoded struct {
	Opcode Opcode
	QPN    uint32
	DS     uint32
	CE     uint32

	// RDMA segment, valid for RDMA Write and Atomic Fetch-and-Add.
	Rkey  uint32
	Raddr uint64

	// Data segment, valid for RDMA Write and (as the dump-fill target)
	// Atomic Fetch-and-Add.
	ByteCount uint32
	Lkey      uint32
	Laddr     uint64

	// Atomic segment, valid only for Atomic Fetch-and-Add.
	SwapAddData uint64
	CompareData uint64

	// WOD segment, valid only for Wait-on-Data (Mod == OpcodeModWaitOnData).
	Mod         uint32
	WODOp       uint8
	Invert      bool
	WODMkey     uint32
	WODAddr     uint64
	WODData     uint64
	WODDataMask uint64
}

// Decode parses bb according to its ctrl segment's opcode and mod field.
func Decode(bb *BB) Decoded {
	idxOpcode := binary.BigEndian.Uint32(bb[0:4])
	qpnDS := binary.BigEndian.Uint32(bb[4:8])
	ceSe := binary.BigEndian.Uint32(bb[8:12])

	d := Decoded{
		Opcode: Opcode(idxOpcode & 0xff),
		Mod:    idxOpcode >> 24,
		QPN:    qpnDS >> 8,
		DS:     qpnDS & 0xff,
		CE:     ceSe >> 2,
	}

	switch {
	case d.Opcode == OpcodeRDMAWrite:
		d.Rkey = binary.BigEndian.Uint32(bb[16:20])
		d.Raddr = binary.BigEndian.Uint64(bb[24:32])
		d.ByteCount = binary.BigEndian.Uint32(bb[32:36])
		d.Lkey = binary.BigEndian.Uint32(bb[36:40])
		d.Laddr = binary.BigEndian.Uint64(bb[40:48])
	case d.Opcode == OpcodeAtomicFetchAdd && d.Mod == OpcodeModWaitOnData:
		opInv := binary.BigEndian.Uint32(bb[16:20])
		d.WODOp = uint8(opInv & 0xf)
		d.Invert = opInv&(1<<4) != 0
		d.WODMkey = binary.BigEndian.Uint32(bb[20:24])
		d.WODAddr = binary.BigEndian.Uint64(bb[24:32]) &^ 0x7
		d.WODData = binary.BigEndian.Uint64(bb[32:40])
		d.WODDataMask = binary.BigEndian.Uint64(bb[40:48])
	case d.Opcode == OpcodeAtomicFetchAdd:
		d.Rkey = binary.BigEndian.Uint32(bb[16:20])
		d.Raddr = binary.BigEndian.Uint64(bb[24:32])
		d.SwapAddData = binary.BigEndian.Uint64(bb[32:40])
		d.CompareData = binary.BigEndian.Uint64(bb[40:48])
		d.ByteCount = binary.BigEndian.Uint32(bb[48:52])
		d.Lkey = binary.BigEndian.Uint32(bb[52:56])
		d.Laddr = binary.BigEndian.Uint64(bb[56:64])
	}

	return d
}
