package wqe

// FormatRDMAWriteNoComp formats an RDMA Write WQE with no completion
// requested (CE fires only on first CQE error), at ring[sqPI & mask], and
// returns the advanced producer index.
func FormatRDMAWriteNoComp(ring []BB, mask uint32, sqPI uint32, qpn uint32, rkey uint32, raddr uint64, lkey uint32, laddr uint64, msgSize uint32) uint32 {
	bb := &ring[sqPI&mask]
	putCtrl(bb, 0, sqPI, OpcodeRDMAWrite, qpn, DSRDMAWrite, CEOnFirstCQEError)
	putRDMASeg(bb, 16, rkey, raddr)
	putDataSeg(bb, 32, msgSize, lkey, laddr)
	return sqPI + 1
}

// FormatAtomicFetchAddComp formats an Atomic Fetch-and-Add WQE (add=1,
// swap=0) with a completion always requested, writing the fetched value
// into the dump-fill mkey/address pair (the fetched value is discarded;
// only the side effect of the add is used). Returns the advanced producer
// index.
func FormatAtomicFetchAddComp(ring []BB, mask uint32, sqPI uint32, qpn uint32, rkey uint32, raddr uint64, dumpFillMkey uint32, dumpFillAddr uint64) uint32 {
	bb := &ring[sqPI&mask]
	putCtrl(bb, 0, sqPI, OpcodeAtomicFetchAdd, qpn, DSAtomicFAA, CEAlways)
	putRDMASeg(bb, 16, rkey, raddr)
	putAtomicSeg(bb, 32, 1, 0)
	const dumpFillSize = 8 // sizeof(uint64_t)
	putDataSeg(bb, 48, dumpFillSize, dumpFillMkey, dumpFillAddr)
	return sqPI + 1
}
