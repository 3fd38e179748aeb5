// Package blockdev implements the block-device abstraction the cluster
// filesystem reads and writes through. Grounded on the teacher's
// fs.Disk_i interface and its synchronous/async Bdev_req_t request shape,
// and on ufs/driver.go's ahci_disk_t file-backed disk.
package blockdev

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"pageos/defs"
)

// SectorSize is the on-disk sector size, matching the BPB
// BytesPerSector original_source's FAT32 boot record expects.
const SectorSize = 512

// Disk abstracts a block device addressed by sector number.
type Disk interface {
	ReadSector(n int, dst []byte) defs.Err_t
	WriteSector(n int, src []byte) defs.Err_t
	NumSectors() int
	Sync() defs.Err_t
}

// MemDisk is an in-memory disk image, used by tests and by cmd/mkfs before
// the image is flushed to a host file.
type MemDisk struct {
	sync.Mutex
	data []byte
}

// NewMemDisk allocates a zeroed disk image of n sectors.
func NewMemDisk(n int) *MemDisk {
	return &MemDisk{data: make([]byte, n*SectorSize)}
}

func (d *MemDisk) NumSectors() int { return len(d.data) / SectorSize }

func (d *MemDisk) ReadSector(n int, dst []byte) defs.Err_t {
	d.Lock()
	defer d.Unlock()
	if n < 0 || n >= d.NumSectors() {
		return -defs.EINVAL
	}
	copy(dst, d.data[n*SectorSize:(n+1)*SectorSize])
	return 0
}

func (d *MemDisk) WriteSector(n int, src []byte) defs.Err_t {
	d.Lock()
	defer d.Unlock()
	if n < 0 || n >= d.NumSectors() {
		return -defs.EINVAL
	}
	copy(d.data[n*SectorSize:(n+1)*SectorSize], src)
	return 0
}

func (d *MemDisk) Sync() defs.Err_t { return 0 }

// Bytes exposes the raw image, used by cmd/mkfs to flush to a host file.
func (d *MemDisk) Bytes() []byte { return d.data }

// FileDisk is a host-file-backed disk image, the production counterpart
// to MemDisk. Grounded on ufs/driver.go's ahci_disk_t (a disk "simulated
// by a file", Seek-then-Read/Write), upgraded from ahci_disk_t's buffered
// os.File Seek/Read/Write to golang.org/x/sys/unix's positioned
// Pread/Pwrite so concurrent readers and writers never race over a
// shared file offset, plus Fsync for durability on Sync.
type FileDisk struct {
	f       *os.File
	sectors int
}

// OpenFileDisk opens (or creates) path as a disk image of exactly
// nsectors sectors, truncating or extending it to that size.
func OpenFileDisk(path string, nsectors int) (*FileDisk, defs.Err_t) {
	f, oerr := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if oerr != nil {
		return nil, -defs.EIO
	}
	size := int64(nsectors) * SectorSize
	if terr := f.Truncate(size); terr != nil {
		f.Close()
		return nil, -defs.EIO
	}
	return &FileDisk{f: f, sectors: nsectors}, 0
}

// OpenExistingFileDisk opens path as a disk image, sizing sectors from
// the file's current length rather than truncating it, for mounting an
// image cmd/mkfs already built.
func OpenExistingFileDisk(path string) (*FileDisk, defs.Err_t) {
	f, oerr := os.OpenFile(path, os.O_RDWR, 0644)
	if oerr != nil {
		return nil, -defs.EIO
	}
	fi, serr := f.Stat()
	if serr != nil {
		f.Close()
		return nil, -defs.EIO
	}
	return &FileDisk{f: f, sectors: int(fi.Size() / SectorSize)}, 0
}

func (d *FileDisk) NumSectors() int { return d.sectors }

func (d *FileDisk) ReadSector(n int, dst []byte) defs.Err_t {
	if n < 0 || n >= d.sectors {
		return -defs.EINVAL
	}
	if _, err := unix.Pread(int(d.f.Fd()), dst[:SectorSize], int64(n)*SectorSize); err != nil {
		return -defs.EIO
	}
	return 0
}

func (d *FileDisk) WriteSector(n int, src []byte) defs.Err_t {
	if n < 0 || n >= d.sectors {
		return -defs.EINVAL
	}
	if _, err := unix.Pwrite(int(d.f.Fd()), src[:SectorSize], int64(n)*SectorSize); err != nil {
		return -defs.EIO
	}
	return 0
}

func (d *FileDisk) Sync() defs.Err_t {
	if err := unix.Fsync(int(d.f.Fd())); err != nil {
		return -defs.EIO
	}
	return 0
}

// Close releases the underlying host file descriptor.
func (d *FileDisk) Close() error { return d.f.Close() }
