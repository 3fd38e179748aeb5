package scall

import (
	"encoding/binary"
	"testing"

	"pageos/defs"
	"pageos/elf"
	"pageos/fd"
	"pageos/mem"
	"pageos/proc"
	"pageos/stat"
	"pageos/ustr"
	"pageos/vfs"
	"pageos/vm"
)

func setup(t *testing.T) (*mem.FrameTable, *proc.Scheduler, *proc.Table) {
	t.Helper()
	mem.Phys_init(512)
	return mem.NewFrameTable(), proc.MkScheduler(), proc.MkTable()
}

// memVnode is a minimal in-memory Vnode, just enough to resolve an exec
// path and read back its ELF bytes.
type memVnode struct {
	ino  uint32
	data []byte
}

func (m *memVnode) Read(dst []byte, off uint32) (int, defs.Err_t) {
	if off >= uint32(len(m.data)) {
		return 0, 0
	}
	return copy(dst, m.data[off:]), 0
}
func (m *memVnode) Write(src []byte, off uint32) (int, defs.Err_t) { return 0, -defs.EACCES }
func (m *memVnode) Size() uint32                                   { return uint32(len(m.data)) }
func (m *memVnode) Stat(st *stat.Stat_t) defs.Err_t                { st.Wsize(m.Size()); return 0 }
func (m *memVnode) Type() vfs.FileType                             { return vfs.FtRegular }
func (m *memVnode) Inode() uint32                                  { return m.ino }
func (m *memVnode) Readdir(idx int) (vfs.DirEnt, defs.Err_t)       { return vfs.DirEnt{}, -defs.ENOENT }
func (m *memVnode) Lookup(name ustr.Ustr) (vfs.Vnode, defs.Err_t)  { return nil, -defs.ENOENT }
func (m *memVnode) Create(name ustr.Ustr, t vfs.FileType) (vfs.Vnode, defs.Err_t) {
	return nil, -defs.ENOTDIR
}
func (m *memVnode) Unlink(name ustr.Ustr) defs.Err_t { return -defs.ENOENT }
func (m *memVnode) Mkdir(name ustr.Ustr) (vfs.Vnode, defs.Err_t) {
	return nil, -defs.ENOTDIR
}

type memDir struct {
	memVnode
	children map[string]vfs.Vnode
}

func newMemDir(ino uint32) *memDir {
	return &memDir{memVnode: memVnode{ino: ino}, children: map[string]vfs.Vnode{}}
}
func (d *memDir) Type() vfs.FileType { return vfs.FtDirectory }
func (d *memDir) Lookup(name ustr.Ustr) (vfs.Vnode, defs.Err_t) {
	c, ok := d.children[name.String()]
	if !ok {
		return nil, -defs.ENOENT
	}
	return c, 0
}
func (d *memDir) Create(name ustr.Ustr, t vfs.FileType) (vfs.Vnode, defs.Err_t) {
	c := &memVnode{ino: d.ino*100 + uint32(len(d.children)+1)}
	d.children[name.String()] = c
	return c, 0
}

type memFS struct{ root *memDir }

func (f *memFS) Root() vfs.Vnode  { return f.root }
func (f *memFS) Sync() defs.Err_t { return 0 }
func (f *memFS) Name() string     { return "memfs" }

// buildExecImage assembles a minimal one-segment ET_EXEC/EM_386 image,
// matching elf_test.go's buildImage helper.
func buildExecImage() []byte {
	le := binary.LittleEndian
	phoff := uint32(elf.EhdrSize)
	text := make([]byte, 4096)

	buf := make([]byte, int(phoff)+elf.PhdrSize+len(text))
	buf[0], buf[1], buf[2], buf[3] = elf.EI_MAG0, 'E', 'L', 'F'
	buf[4] = 1
	le.PutUint16(buf[16:18], elf.ET_EXEC)
	le.PutUint16(buf[18:20], elf.EM_386)
	le.PutUint32(buf[20:24], 1)
	le.PutUint32(buf[24:28], vm.UserTextStart)
	le.PutUint32(buf[28:32], phoff)
	le.PutUint16(buf[42:44], elf.PhdrSize)
	le.PutUint16(buf[44:46], 1)

	p := buf[phoff:]
	le.PutUint32(p[0:4], elf.PT_LOAD)
	le.PutUint32(p[4:8], phoff+elf.PhdrSize)
	le.PutUint32(p[8:12], vm.UserTextStart)
	le.PutUint32(p[16:20], uint32(len(text)))
	le.PutUint32(p[20:24], uint32(len(text)))
	le.PutUint32(p[24:28], elf.PF_R|elf.PF_X)

	copy(buf[int(phoff)+elf.PhdrSize:], text)
	return buf
}

// putUserCString maps a page at va (if not already mapped) and writes a
// NUL-terminated copy of s there, returning va for use as a syscall
// argument pointer.
func putUserCString(t *testing.T, as *vm.Vm_t, va uint32, s string) uint32 {
	t.Helper()
	if _, _, ok := as.Lookup(va); !ok {
		if err := as.Vmadd_anon(va, uint32(mem.PGSIZE), mem.PTE_U|mem.PTE_W); err != 0 {
			t.Fatalf("vmadd_anon: %d", err)
		}
	}
	pa, _, _ := as.Lookup(va)
	n := copy(mem.Physmem.Bytes(pa), append([]byte(s), 0))
	if n != len(s)+1 {
		t.Fatal("string too long for one page")
	}
	return va
}

// TestExecSpawnsChildAndParentRecoversStatus exercises Scenario C: EXEC
// spawns a new child (the caller's own address space and pid are
// untouched), the child's GETSPAWNARG returns the argument string handed
// to EXEC, and the parent's WAIT on the child returns the exact status
// the child's EXIT produced.
func TestExecSpawnsChildAndParentRecoversStatus(t *testing.T) {
	frames, sched, table := setup(t)
	d := MkDispatcher(sched)
	now := func() int64 { return 0 }

	root := newMemDir(1)
	bin := newMemDir(2)
	root.children["bin"] = bin
	bin.children["cat"] = &memVnode{ino: 3, data: buildExecImage()}
	v := vfs.MkVFS(&memFS{root: root})

	d.Register(defs.SYS_EXEC, ExecHandler(v, frames, table, sched, now))
	d.Register(defs.SYS_EXIT, ExitHandler(table))
	d.Register(defs.SYS_WAIT, WaitHandler(table))
	d.Register(defs.SYS_GETSPAWNARG, GetspawnargHandler())

	as, _ := vm.Mkvm(frames)
	parent := table.Add("parent", 5, as, now())
	parent.Cwd = fd.MkRootCwd(nil)
	parentVmBefore := parent.Vm

	pathVA := putUserCString(t, as, 0x50000000, "/bin/cat")
	argVA := putUserCString(t, as, 0x50001000, "hello")

	childPidRv := d.Dispatch(parent, defs.SYS_EXEC, Args{A0: pathVA, A1: argVA})
	if childPidRv <= 0 {
		t.Fatalf("exec returned %d", childPidRv)
	}
	if parent.Pid != 1 {
		t.Fatalf("parent pid changed to %d, exec should not replace the caller", parent.Pid)
	}
	if parent.Vm != parentVmBefore {
		t.Fatal("exec replaced the caller's own address space instead of spawning a child")
	}

	child, ok := table.Get(defs.Pid_t(childPidRv))
	if !ok {
		t.Fatal("exec'd child missing from table")
	}
	if child.ParentPid != parent.Pid {
		t.Fatalf("child parent pid = %d, want %d", child.ParentPid, parent.Pid)
	}

	argBufVA := putUserCString(t, child.Vm, 0x50002000, "")
	if rv := d.Dispatch(child, defs.SYS_GETSPAWNARG, Args{A0: argBufVA, A1: 64}); rv <= 0 {
		t.Fatalf("getspawnarg returned %d", rv)
	}
	got, _ := copyInUserCString(child, argBufVA)
	if string(got) != "hello" {
		t.Fatalf("child spawnarg = %q, want %q", got, "hello")
	}

	d.Dispatch(child, defs.SYS_EXIT, Args{A0: 9})
	status := d.Dispatch(parent, defs.SYS_WAIT, Args{A0: uint32(int32(child.Pid))})
	if status != 9 {
		t.Fatalf("wait returned %d, want 9", status)
	}
}

func TestDispatchUnknownSyscall(t *testing.T) {
	_, sched, _ := setup(t)
	d := MkDispatcher(sched)
	as, _ := vm.Mkvm(mem.NewFrameTable())
	p := proc.Mkprocess(1, "p", 5, as, 0)

	rv := d.Dispatch(p, defs.Number(999), Args{})
	if rv != int32(-defs.ENOSYS) {
		t.Fatalf("dispatch of unknown syscall = %d, want %d", rv, -defs.ENOSYS)
	}
}

func TestSbrkGrowsHeap(t *testing.T) {
	_, sched, _ := setup(t)
	d := MkDispatcher(sched)
	d.Register(defs.SYS_SBRK, SbrkHandler())

	as, _ := vm.Mkvm(mem.NewFrameTable())
	p := proc.Mkprocess(1, "p", 5, as, 0)
	p.HeapStart = vm.UserHeapStart
	p.HeapEnd = vm.UserHeapStart

	old := d.Dispatch(p, defs.SYS_SBRK, Args{A0: uint32(mem.PGSIZE)})
	if old != int32(vm.UserHeapStart) {
		t.Fatalf("sbrk returned %d, want old break %d", old, vm.UserHeapStart)
	}
	if p.HeapEnd != vm.UserHeapStart+uint32(mem.PGSIZE) {
		t.Fatalf("heap end = %#x, want %#x", p.HeapEnd, vm.UserHeapStart+uint32(mem.PGSIZE))
	}
	if _, _, ok := as.Lookup(vm.UserHeapStart); !ok {
		t.Fatal("sbrk did not map the new heap page")
	}
}

func TestForkThenWaitReturnsExitStatus(t *testing.T) {
	frames, sched, table := setup(t)
	d := MkDispatcher(sched)
	d.Register(defs.SYS_FORK, ForkHandler(table, frames, func() int64 { return 0 }))
	d.Register(defs.SYS_EXIT, ExitHandler(table))
	d.Register(defs.SYS_WAIT, WaitHandler(table))

	as, _ := vm.Mkvm(frames)
	parent := table.Add("parent", 5, as, 0)
	parent.Cwd = fd.MkRootCwd(nil)

	childPid := d.Dispatch(parent, defs.SYS_FORK, Args{})
	if childPid <= 0 {
		t.Fatalf("fork returned %d", childPid)
	}
	child, ok := table.Get(defs.Pid_t(childPid))
	if !ok {
		t.Fatal("forked child missing from table")
	}

	rv := d.Dispatch(child, defs.SYS_EXIT, Args{A0: 42})
	if rv != 0 {
		t.Fatalf("exit returned %d", rv)
	}

	status := d.Dispatch(parent, defs.SYS_WAIT, Args{A0: uint32(int32(proc.WaitAnyChild))})
	if status != 42 {
		t.Fatalf("wait returned status %d, want 42", status)
	}
}
