package wqe

import "encoding/binary"

// putCtrl writes the 16-byte ctrl segment shared by every WQE type:
//
//	idx_opcode          = (mod<<24) | ((sqPI & 0xffff) << 8) | opcode
//	qpn_ds              = (qpn<<8) | ds
//	signature_fm_ce_se  = ce << 2
//
// mod is the opcode-modifier field (OpcodeModWaitOnData for WOD WQEs, 0
// otherwise). The fourth ctrl word is left zero, matching the original.
func putCtrl(bb *BB, mod uint32, sqPI uint32, opcode Opcode, qpn uint32, ds uint32, ce uint32) {
	idxOpcode := (mod << 24) | ((sqPI & 0xffff) << 8) | uint32(opcode)
	qpnDS := (qpn << 8) | ds
	signatureFmCeSe := ce << 2

	binary.BigEndian.PutUint32(bb[0:4], idxOpcode)
	binary.BigEndian.PutUint32(bb[4:8], qpnDS)
	binary.BigEndian.PutUint32(bb[8:12], signatureFmCeSe)
	binary.BigEndian.PutUint32(bb[12:16], 0)
}

// putRDMASeg writes the 16-byte RDMA segment: rkey, a reserved word, then
// the 64-bit remote address.
func putRDMASeg(bb *BB, off int, rkey uint32, raddr uint64) {
	binary.BigEndian.PutUint32(bb[off:off+4], rkey)
	binary.BigEndian.PutUint32(bb[off+4:off+8], 0)
	binary.BigEndian.PutUint64(bb[off+8:off+16], raddr)
}

// putDataSeg writes the 16-byte data segment: byte count, lkey, local
// address.
func putDataSeg(bb *BB, off int, byteCount uint32, lkey uint32, laddr uint64) {
	binary.BigEndian.PutUint32(bb[off:off+4], byteCount)
	binary.BigEndian.PutUint32(bb[off+4:off+8], lkey)
	binary.BigEndian.PutUint64(bb[off+8:off+16], laddr)
}

// putAtomicSeg writes the 16-byte atomic segment: a swap-add-data 64-bit
// word and a compare-data 64-bit word. Fetch-and-add encodes add=1, swap=0.
func putAtomicSeg(bb *BB, off int, swapAddData, compareData uint64) {
	binary.BigEndian.PutUint64(bb[off:off+8], swapAddData)
	binary.BigEndian.PutUint64(bb[off+8:off+16], compareData)
}
