package clusterfs

import (
	"testing"

	"pageos/blockdev"
	"pageos/defs"
	"pageos/ustr"
	"pageos/vfs"
)

func mustMount(t *testing.T) *FS {
	t.Helper()
	disk := blockdev.NewMemDisk(4096)
	if err := Format(disk, "TESTVOL"); err != 0 {
		t.Fatalf("format: err %d", err)
	}
	fs, err := Mount(disk)
	if err != 0 {
		t.Fatalf("mount: err %d", err)
	}
	return fs
}

func TestFormatThenMountEmptyRoot(t *testing.T) {
	fs := mustMount(t)
	root := fs.Root()
	if root.Type() != vfs.FtDirectory {
		t.Fatal("root is not a directory")
	}
	if _, err := root.Readdir(0); err != -defs.ENOENT {
		t.Fatalf("empty root readdir(0) = %d, want ENOENT", err)
	}
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	fs := mustMount(t)
	root := fs.Root()

	vn, err := root.Create(ustr.Ustr("hello.txt"), vfs.FtRegular)
	if err != 0 {
		t.Fatalf("create: err %d", err)
	}

	msg := []byte("hello, cluster filesystem")
	n, werr := vn.Write(msg, 0)
	if werr != 0 || n != len(msg) {
		t.Fatalf("write: n=%d err=%d", n, werr)
	}
	if vn.Size() != uint32(len(msg)) {
		t.Fatalf("size = %d, want %d", vn.Size(), len(msg))
	}

	looked, lerr := root.Lookup(ustr.Ustr("hello.txt"))
	if lerr != 0 {
		t.Fatalf("lookup: err %d", lerr)
	}
	buf := make([]byte, len(msg))
	rn, rerr := looked.Read(buf, 0)
	if rerr != 0 || rn != len(msg) {
		t.Fatalf("read: n=%d err=%d", rn, rerr)
	}
	if string(buf) != string(msg) {
		t.Fatalf("read back %q, want %q", buf, msg)
	}
}

func TestWriteSpanningMultipleClusters(t *testing.T) {
	fs := mustMount(t)
	root := fs.Root()
	vn, err := root.Create(ustr.Ustr("big.dat"), vfs.FtRegular)
	if err != 0 {
		t.Fatalf("create: err %d", err)
	}

	big := make([]byte, fs.bytesPerCluster*3+17)
	for i := range big {
		big[i] = byte(i)
	}
	if _, werr := vn.Write(big, 0); werr != 0 {
		t.Fatalf("write: err %d", werr)
	}

	out := make([]byte, len(big))
	if _, rerr := vn.Read(out, 0); rerr != 0 {
		t.Fatalf("read: err %d", rerr)
	}
	for i := range big {
		if out[i] != big[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, out[i], big[i])
		}
	}
}

func TestMkdirAndNestedFile(t *testing.T) {
	fs := mustMount(t)
	root := fs.Root()

	sub, err := root.Mkdir(ustr.Ustr("sub"))
	if err != 0 {
		t.Fatalf("mkdir: err %d", err)
	}
	if sub.Type() != vfs.FtDirectory {
		t.Fatal("sub is not a directory")
	}

	child, cerr := sub.Create(ustr.Ustr("inner.txt"), vfs.FtRegular)
	if cerr != 0 {
		t.Fatalf("create inner: err %d", cerr)
	}
	if _, werr := child.Write([]byte("nested"), 0); werr != 0 {
		t.Fatalf("write inner: err %d", werr)
	}

	resolved, rerr := root.Lookup(ustr.Ustr("sub"))
	if rerr != 0 {
		t.Fatalf("lookup sub: err %d", rerr)
	}
	ent, derr := resolved.Readdir(0)
	if derr != 0 {
		t.Fatalf("readdir: err %d", derr)
	}
	if ent.Name.String() != "INNER.TXT" && ent.Name.String() != "inner.txt" {
		t.Fatalf("unexpected dirent name %q", ent.Name.String())
	}
}

func TestUnlinkFreesClusterAndRemovesEntry(t *testing.T) {
	fs := mustMount(t)
	root := fs.Root()
	vn, err := root.Create(ustr.Ustr("doomed.txt"), vfs.FtRegular)
	if err != 0 {
		t.Fatalf("create: err %d", err)
	}
	if _, werr := vn.Write([]byte("bye"), 0); werr != 0 {
		t.Fatalf("write: err %d", werr)
	}

	if uerr := root.Unlink(ustr.Ustr("doomed.txt")); uerr != 0 {
		t.Fatalf("unlink: err %d", uerr)
	}
	if _, lerr := root.Lookup(ustr.Ustr("doomed.txt")); lerr != -defs.ENOENT {
		t.Fatalf("lookup after unlink = %d, want ENOENT", lerr)
	}
}

func TestCreateDuplicateNameFails(t *testing.T) {
	fs := mustMount(t)
	root := fs.Root()
	if _, err := root.Create(ustr.Ustr("dup.txt"), vfs.FtRegular); err != 0 {
		t.Fatalf("first create: err %d", err)
	}
	if _, err := root.Create(ustr.Ustr("dup.txt"), vfs.FtRegular); err != -defs.EEXIST {
		t.Fatalf("second create = %d, want EEXIST", err)
	}
}
