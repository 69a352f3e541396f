// Package ldo implements the cooperatively-scheduled collective-worker
// state machine a DPA program runs per thread: three states driven by a
// host command queue, a trigger counter and network completions, posting
// RDMA Write and Atomic Fetch-and-Add WQEs to perform an all-to-all
// exchange and publishing completion back to the host through a memory
// window. Because the real artifact never runs under a host OS, this
// package models it exactly — wire formats, ring indices, atomics — and
// leaves only its execution substrate (goroutines instead of a hardware
// thread scheduler) to the harness in cmd/ldo-simd.
package ldo

import "encoding/binary"

// CmdSize is the size in bytes of one host command slot, L2V(LogCMDSize).
const CmdSize = 64

// Command is one host-submitted entry in the CMDQ ring: per spec.md §6's
// command message layout. ValidCount is the field WaitHostCmd polls for;
// the host increments it (by LogCMDQDepth wraps) each time it deposits a
// new command into a reused slot.
type Command struct {
	ValidCount       uint64
	TriggerThreshold uint64
	TriggerLkey      uint32
	TriggerLoc       uint64
	MsgSize          uint32
	RankCount        uint32
	StartRank        uint32
}

// Encode renders c into its CmdSize-byte big-endian wire form.
func (c *Command) Encode() []byte {
	buf := make([]byte, CmdSize)
	binary.BigEndian.PutUint64(buf[0:8], c.ValidCount)
	binary.BigEndian.PutUint64(buf[8:16], c.TriggerThreshold)
	binary.BigEndian.PutUint32(buf[16:20], c.TriggerLkey)
	binary.BigEndian.PutUint64(buf[20:28], c.TriggerLoc)
	binary.BigEndian.PutUint32(buf[28:32], c.MsgSize)
	binary.BigEndian.PutUint32(buf[32:36], c.RankCount)
	binary.BigEndian.PutUint32(buf[36:40], c.StartRank)
	return buf
}

// DecodeCommand parses a CmdSize-byte big-endian command slot.
func DecodeCommand(buf []byte) Command {
	var c Command
	c.ValidCount = binary.BigEndian.Uint64(buf[0:8])
	c.TriggerThreshold = binary.BigEndian.Uint64(buf[8:16])
	c.TriggerLkey = binary.BigEndian.Uint32(buf[16:20])
	c.TriggerLoc = binary.BigEndian.Uint64(buf[20:28])
	c.MsgSize = binary.BigEndian.Uint32(buf[28:32])
	c.RankCount = binary.BigEndian.Uint32(buf[32:36])
	c.StartRank = binary.BigEndian.Uint32(buf[36:40])
	return c
}

// CmdCompleted is the sentinel complete_coll writes into a cmd-info slot
// before writing cmp_count into the separate completion region, per
// spec.md §6's host completion ABI. The two writes go through two
// different memory windows/mkeys (host_cmd_info_mkey, then host_cmp_mkey)
// exactly as ldo_dev_complete_coll does.
const CmdCompleted uint64 = 0xffffffffffffffff
