package blockdev

import (
	"os"
	"path/filepath"
	"testing"

	"pageos/defs"
)

func TestMemDiskReadWriteRoundTrip(t *testing.T) {
	d := NewMemDisk(4)
	buf := make([]byte, SectorSize)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := d.WriteSector(1, buf); err != 0 {
		t.Fatalf("write: err %d", err)
	}
	out := make([]byte, SectorSize)
	if err := d.ReadSector(1, out); err != 0 {
		t.Fatalf("read: err %d", err)
	}
	if string(out) != string(buf) {
		t.Fatal("read back does not match write")
	}
}

func TestMemDiskOutOfRange(t *testing.T) {
	d := NewMemDisk(2)
	if err := d.ReadSector(5, make([]byte, SectorSize)); err != -defs.EINVAL {
		t.Fatalf("out-of-range read = %d, want EINVAL", err)
	}
}

func TestFileDiskPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := OpenFileDisk(path, 8)
	if err != 0 {
		t.Fatalf("open: err %d", err)
	}
	buf := make([]byte, SectorSize)
	for i := range buf {
		buf[i] = byte(i)
	}
	if werr := d.WriteSector(3, buf); werr != 0 {
		t.Fatalf("write: err %d", werr)
	}
	if serr := d.Sync(); serr != 0 {
		t.Fatalf("sync: err %d", serr)
	}
	d.Close()

	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("disk image missing: %v", statErr)
	}

	reopened, rerr := OpenFileDisk(path, 8)
	if rerr != 0 {
		t.Fatalf("reopen: err %d", rerr)
	}
	defer reopened.Close()
	out := make([]byte, SectorSize)
	if gerr := reopened.ReadSector(3, out); gerr != 0 {
		t.Fatalf("read after reopen: err %d", gerr)
	}
	if string(out) != string(buf) {
		t.Fatal("data did not survive reopen")
	}
}

func TestOpenExistingFileDiskSizesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.img")
	d, err := OpenFileDisk(path, 6)
	if err != 0 {
		t.Fatalf("open: err %d", err)
	}
	d.Close()

	existing, eerr := OpenExistingFileDisk(path)
	if eerr != 0 {
		t.Fatalf("open existing: err %d", eerr)
	}
	defer existing.Close()
	if existing.NumSectors() != 6 {
		t.Fatalf("sectors = %d, want 6", existing.NumSectors())
	}
}
