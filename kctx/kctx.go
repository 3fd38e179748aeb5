// Package kctx assembles every subsystem into a single boot-constructed
// kernel context, matching the teacher's Design Notes: "a single
// boot-constructed kernel context handed to handlers by reference" (see
// SPEC_FULL.md AMBIENT STACK's Configuration entry).
package kctx

import (
	"pageos/defs"
	"pageos/elf"
	"pageos/fd"
	"pageos/hal"
	"pageos/irq"
	"pageos/mem"
	"pageos/proc"
	"pageos/scall"
	"pageos/ustr"
	"pageos/vfs"
	"pageos/vm"
)

// Kernel bundles every subsystem singleton the IRQ loop and syscall
// dispatcher need by reference.
type Kernel struct {
	Frames   *mem.FrameTable
	Table    *proc.Table
	Sched    *proc.Scheduler
	Console  *hal.Console
	Keyboard *hal.Keyboard
	Timer    *hal.Timer
	IRQ      *irq.Core
	Scall    *scall.Dispatcher
	VFS      *vfs.VFS
}

// Boot constructs a Kernel with npages of simulated physical RAM and
// root as the mounted root filesystem, and registers every syscall
// handler this module implements.
func Boot(npages int, root vfs.FileSystem) *Kernel {
	mem.Phys_init(npages)
	frames := mem.NewFrameTable()

	k := &Kernel{
		Frames:   frames,
		Table:    proc.MkTable(),
		Sched:    proc.MkScheduler(),
		Console:  hal.MkConsole(),
		Timer:    hal.MkTimer(),
		VFS:      vfs.MkVFS(root),
	}
	k.Keyboard = hal.MkKeyboard(k.Console, k.Sched)
	k.IRQ = irq.MkCore(k.Sched, k.Table, k.Console, k.Keyboard, k.Timer)
	k.Scall = scall.MkDispatcher(k.Sched)
	k.registerSyscalls()
	return k
}

func (k *Kernel) registerSyscalls() {
	now := func() int64 { return k.Timer.Now() }

	k.Scall.Register(defs.SYS_EXIT, scall.ExitHandler(k.Table))
	k.Scall.Register(defs.SYS_WRITE, scall.WriteHandler(k.Console))
	k.Scall.Register(defs.SYS_READ, scall.ReadHandler(k.Sched, k.Keyboard))
	k.Scall.Register(defs.SYS_YIELD, scall.YieldHandler())
	k.Scall.Register(defs.SYS_GETPID, scall.GetpidHandler())
	k.Scall.Register(defs.SYS_SLEEP, scall.SleepHandler(now))
	k.Scall.Register(defs.SYS_WRITE_COLORED, scall.WriteColoredHandler(k.Console))
	k.Scall.Register(defs.SYS_WRITE_PRINTF, scall.WritePrintfHandler(k.Console))

	k.Scall.Register(defs.SYS_TRYGETCH, scall.TryGetchHandler(k.Keyboard))
	k.Scall.Register(defs.SYS_GETCH, scall.GetchHandler(k.Sched, k.Keyboard))
	k.Scall.Register(defs.SYS_OPEN, scall.OpenHandler(k.VFS))
	k.Scall.Register(defs.SYS_CLOSE, scall.CloseHandler())
	k.Scall.Register(defs.SYS_READ_FILE, scall.ReadFileHandler())
	k.Scall.Register(defs.SYS_WRITE_FILE, scall.WriteFileHandler())
	k.Scall.Register(defs.SYS_READDIR, scall.ReaddirHandler())
	k.Scall.Register(defs.SYS_MKDIR, scall.MkdirHandler(k.VFS))
	k.Scall.Register(defs.SYS_RMDIR, scall.RmdirHandler(k.VFS))
	k.Scall.Register(defs.SYS_UNLINK, scall.UnlinkHandler(k.VFS))
	k.Scall.Register(defs.SYS_CHDIR, scall.ChdirHandler(k.VFS))
	k.Scall.Register(defs.SYS_GETCWD, scall.GetcwdHandler())
	k.Scall.Register(defs.SYS_GETCWD_PTR, scall.GetcwdPtrHandler())
	k.Scall.Register(defs.SYS_GETSPAWNARG, scall.GetspawnargHandler())
	k.Scall.Register(defs.SYS_EXEC, scall.ExecHandler(k.VFS, k.Frames, k.Table, k.Sched, now))
	k.Scall.Register(defs.SYS_FORK, scall.ForkHandler(k.Table, k.Frames, now))
	k.Scall.Register(defs.SYS_WAIT, scall.WaitHandler(k.Table))
	k.Scall.Register(defs.SYS_WAITID, scall.WaitHandler(k.Table))
	k.Scall.Register(defs.SYS_PS, scall.PsHandler(k.Table))
	k.Scall.Register(defs.SYS_KILL, scall.KillHandler(k.Table, k.Sched))
	k.Scall.Register(defs.SYS_SBRK, scall.SbrkHandler())
	k.Scall.Register(defs.SYS_BRK, scall.BrkHandler())
}

// Spawn creates a process with an empty address space, rooted at the VFS
// root, with the given priority; cmd/kernel uses it for the initial boot
// process. EXEC does not go through Spawn (scall.ExecHandler adds its
// child to the table itself).
func (k *Kernel) Spawn(name string, priority uint32) *proc.Process {
	as, _ := vm.Mkvm(k.Frames)
	p := k.Table.Add(name, priority, as, k.Timer.Now())
	p.Cwd = fd.MkRootCwd(nil)
	k.Sched.AddReady(p)
	return p
}

// LoadInit resolves path against the mounted root filesystem and loads
// it into p's address space via the ELF loader, the direct equivalent of
// SYS_EXEC's image-building half performed at boot time (before any
// process has trapped in to request an exec itself, so there is no user
// pointer to copy a path string in from).
func (k *Kernel) LoadInit(p *proc.Process, path ustr.Ustr) defs.Err_t {
	vn, rerr := k.VFS.Resolve(path)
	if rerr != 0 {
		return rerr
	}
	raw := make([]byte, vn.Size())
	if _, rerr := vn.Read(raw, 0); rerr != 0 {
		return rerr
	}
	loaded, lerr := elf.Load(p.Vm, raw)
	if lerr != 0 {
		return lerr
	}
	if serr := p.Vm.Vmadd_anon(vm.UserStackTop-vm.DefaultStackSz, vm.DefaultStackSz, mem.PTE_U|mem.PTE_W); serr != 0 {
		return serr
	}
	p.Lock()
	p.HeapStart = loaded.BrkBase
	p.HeapEnd = loaded.BrkBase
	p.Context.Eip = loaded.Entry
	p.Context.Esp = vm.UserStackTop
	p.Unlock()
	return 0
}
