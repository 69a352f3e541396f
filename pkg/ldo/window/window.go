// Package window models the memory window abstraction the DPA core uses to
// reach host memory: configure a memory key, acquire a scoped pointer into
// it, then either an invalidate-read (to see the host's latest write) or a
// buffered write plus an explicit writeback (to make the DPA's write
// visible to the host). Per spec.md §4.6.
package window

import (
	"fmt"
	"io"
)

// Region is anything a memory key can resolve to: a byte-addressable span
// of host memory. pkg/hostmem's regions satisfy this, as does any
// io.ReaderAt/WriterAt such as *os.File.
type Region interface {
	io.ReaderAt
	io.WriterAt
}

// Registry resolves a memory key to the Region it protects, standing in
// for the NIC's memory-key translation table.
type Registry interface {
	Lookup(mkey uint32) (Region, error)
}

// ErrNotAcquired is returned by ReadInv/Write/Writeback when called before
// Acquire.
var ErrNotAcquired = fmt.Errorf("window: pointer not acquired")

// Window is one configure/acquire/access cycle. It is not safe for
// concurrent use — exactly like the single scratch window register the
// original program serializes all host access through.
type Window struct {
	reg      Registry
	mkey     uint32
	region   Region
	offset   int64
	acquired bool
	pending  []byte
}

// Configure binds the window to the region behind mkey, matching
// window_mkey_config.
func Configure(reg Registry, mkey uint32) (*Window, error) {
	region, err := reg.Lookup(mkey)
	if err != nil {
		return nil, fmt.Errorf("window: configure mkey=%d: %w", mkey, err)
	}
	return &Window{reg: reg, mkey: mkey, region: region}, nil
}

// Acquire scopes the window to offset within the configured region,
// matching ptr_acquire.
func (w *Window) Acquire(offset int64) {
	w.offset = offset
	w.acquired = true
	w.pending = nil
}

// ReadInv invalidates any local view of the acquired span and reads len(buf)
// fresh bytes from the host region, matching thread_window_read_inv.
func (w *Window) ReadInv(buf []byte) error {
	if !w.acquired {
		return ErrNotAcquired
	}
	_, err := w.region.ReadAt(buf, w.offset)
	return err
}

// Write stages buf to be written at the acquired offset. It is not visible
// to the host until Writeback, matching the original's separation between
// writing into the window and issuing thread_memory_writeback.
func (w *Window) Write(buf []byte) error {
	if !w.acquired {
		return ErrNotAcquired
	}
	w.pending = append([]byte(nil), buf...)
	return nil
}

// Writeback flushes any staged write to the host region, matching
// thread_window_writeback / thread_memory_writeback.
func (w *Window) Writeback() error {
	if !w.acquired {
		return ErrNotAcquired
	}
	if w.pending == nil {
		return nil
	}
	_, err := w.region.WriteAt(w.pending, w.offset)
	w.pending = nil
	return err
}
