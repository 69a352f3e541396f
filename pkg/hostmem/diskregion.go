package hostmem

import (
	"fmt"
	"os"
	"os/user"

	"github.com/steiler/acls"
	"github.com/wneessen/go-fileperm"
)

// DiskRegion is a file-backed region whose contents survive process exit.
// EnsureWorkerAccess grants a worker identity read/write access to such a
// file, the same ACL-entry pattern internal/security used to grant a
// dropped-privilege process access to paths it does not own. Neither is
// used by cmd/ldo-simd: its regions are in-memory Regions, and
// pkg/hostaudit opens its database file through database/sql.
type DiskRegion struct {
	f *os.File
}

// OpenDiskRegion opens (creating if necessary) a file-backed region of at
// least size bytes.
func OpenDiskRegion(path string, size int64) (*DiskRegion, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o640)
	if err != nil {
		return nil, fmt.Errorf("hostmem: open %s: %w", path, err)
	}
	if info, err := f.Stat(); err == nil && info.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("hostmem: truncate %s to %d: %w", path, size, err)
		}
	}
	return &DiskRegion{f: f}, nil
}

func (d *DiskRegion) ReadAt(p []byte, off int64) (int, error)  { return d.f.ReadAt(p, off) }
func (d *DiskRegion) WriteAt(p []byte, off int64) (int, error) { return d.f.WriteAt(p, off) }
func (d *DiskRegion) Close() error                             { return d.f.Close() }

// EnsureWorkerAccess grants uid read/write access to path via a POSIX ACL
// entry, unless uid is the current user and can already read and write
// path, or path is already readable and writable by others (group bits are
// not consulted), mirroring internal/security's NewManager ACL computation but scoped to a
// single read-write path instead of a whole privilege-drop configuration:
// this simulator never changes its own UID, it only needs to prove a
// *different* simulated worker identity could reach the region.
func EnsureWorkerAccess(path string, uid uint32) error {
	fperms, err := fileperm.New(path)
	if err != nil {
		return fmt.Errorf("hostmem: inspect permissions of %s: %w", path, err)
	}

	current, err := user.Current()
	if err != nil {
		return fmt.Errorf("hostmem: lookup current user: %w", err)
	}

	if current.Uid == fmt.Sprint(uid) {
		if fperms.UserWriteReadable() {
			return nil
		}
	} else if fperms.Stat.Mode().Perm()&fileperm.OsOthR != 0 && fperms.Stat.Mode().Perm()&fileperm.OsOthW != 0 {
		return nil
	}

	entry := acls.NewEntry(acls.TAG_ACL_USER, uid, 6) // rw-

	a := &acls.ACL{}
	if err := a.Load(path, acls.PosixACLAccess); err != nil {
		return fmt.Errorf("hostmem: load acl entries for %s: %w", path, err)
	}
	if err := a.AddEntry(entry); err != nil {
		return fmt.Errorf("hostmem: add acl entry for uid %d on %s: %w", uid, path, err)
	}
	if err := a.Apply(path, acls.PosixACLAccess); err != nil {
		return fmt.Errorf("hostmem: apply acl entries to %s: %w", path, err)
	}

	return nil
}
