package kctx

import (
	"testing"

	"pageos/defs"
	"pageos/mem"
	"pageos/scall"
	"pageos/stat"
	"pageos/ustr"
	"pageos/vfs"
)

// trivialVnode is a minimal always-empty-directory root, enough to boot a
// Kernel for dispatcher wiring tests without a real filesystem.
type trivialVnode struct{}

func (trivialVnode) Read(dst []byte, off uint32) (int, defs.Err_t)  { return 0, 0 }
func (trivialVnode) Write(src []byte, off uint32) (int, defs.Err_t) { return len(src), 0 }
func (trivialVnode) Size() uint32                                  { return 0 }
func (trivialVnode) Stat(st *stat.Stat_t) defs.Err_t                { return 0 }
func (trivialVnode) Type() vfs.FileType                            { return vfs.FtDirectory }
func (trivialVnode) Inode() uint32                                 { return 1 }
func (trivialVnode) Readdir(idx int) (vfs.DirEnt, defs.Err_t)       { return vfs.DirEnt{}, -defs.ENOENT }
func (trivialVnode) Lookup(name ustr.Ustr) (vfs.Vnode, defs.Err_t)  { return nil, -defs.ENOENT }
func (trivialVnode) Create(name ustr.Ustr, t vfs.FileType) (vfs.Vnode, defs.Err_t) {
	return nil, -defs.ENOSYS
}
func (trivialVnode) Unlink(name ustr.Ustr) defs.Err_t { return -defs.ENOENT }
func (trivialVnode) Mkdir(name ustr.Ustr) (vfs.Vnode, defs.Err_t) {
	return nil, -defs.ENOSYS
}

type trivialFS struct{}

func (trivialFS) Root() vfs.Vnode      { return trivialVnode{} }
func (trivialFS) Sync() defs.Err_t     { return 0 }
func (trivialFS) Name() string         { return "trivialfs" }

func TestBootWiresGetpidSyscall(t *testing.T) {
	k := Boot(256, trivialFS{})
	p := k.Spawn("init", 5)

	rv := k.Scall.Dispatch(p, defs.SYS_GETPID, scall.Args{})
	if rv != int32(p.Pid) {
		t.Fatalf("getpid = %d, want %d", rv, p.Pid)
	}
}

func TestBootWiresWriteSyscallToConsole(t *testing.T) {
	k := Boot(256, trivialFS{})
	p := k.Spawn("writer", 5)

	msg := []byte("hello\n")
	va := p.HeapStart
	if va == 0 {
		va = 0x40000000
	}
	if err := p.Vm.Vmadd_anon(va, uint32(len(msg)), mem.PTE_U|mem.PTE_W); err != 0 {
		t.Fatalf("vmadd_anon: %d", err)
	}
	pa, _, ok := p.Vm.Lookup(va)
	if !ok {
		t.Fatal("mapped page not found")
	}
	copy(mem.Physmem.Bytes(pa), msg)

	rv := k.Scall.Dispatch(p, defs.SYS_WRITE, scall.Args{A0: va, A1: uint32(len(msg))})
	if rv != int32(len(msg)) {
		t.Fatalf("write returned %d, want %d", rv, len(msg))
	}
	vis := k.Console.Visible()
	if len(vis) == 0 || vis[len(vis)-1] != "hello" {
		t.Fatalf("console did not receive the written line: %v", vis)
	}
}
