package wqe

import "encoding/binary"

// FormatWOD formats a Wait-on-Data WQE at ring[sqPI & mask] and returns the
// advanced producer index. op is one of the WOD* comparison constants; when
// invert is true the hardware waits for the comparison to be false instead
// of true. addr's low 3 bits are reserved for a fail-action and are always
// cleared to WODFailActionRetry — the original never varies this.
func FormatWOD(ring []BB, mask uint32, sqPI uint32, qpn uint32, addr uint64, mkey uint32, op uint8, invert bool, ce uint32, data uint64, dataMask uint64) uint32 {
	bb := &ring[sqPI&mask]
	putCtrl(bb, OpcodeModWaitOnData, sqPI, OpcodeWait, qpn, DSWaitOnData, ce)

	opInv := op & 0xf
	if invert {
		opInv |= 1 << 4
	}

	wod := bb[16:]
	binary.BigEndian.PutUint32(wod[0:4], uint32(opInv))
	binary.BigEndian.PutUint32(wod[4:8], mkey)
	vaFailAct := (addr &^ 0x7) | WODFailActionRetry
	binary.BigEndian.PutUint64(wod[8:16], vaFailAct)
	binary.BigEndian.PutUint64(wod[16:24], data)
	binary.BigEndian.PutUint64(wod[24:32], dataMask)

	return sqPI + 1
}
