package scall

import (
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

func allocFd(p *proc.Process) (int, defs.Err_t) {
	for i, f := range p.Fds {
		if f == nil {
			return i, 0
		}
	}
	return 0, -defs.EMFILE
}

func fdAt(p *proc.Process, n int) *fd.Fd_t {
	p.Lock()
	defer p.Unlock()
	if n < 0 || n >= proc.NOFILE {
		return nil
	}
	return p.Fds[n]
}

// OpenHandler implements SYS_OPEN: resolve a.A0 (a user path pointer)
// against the process cwd, creating the leaf if O_CREAT is set.
func OpenHandler(v *vfs.VFS) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		pathBuf, err := copyInUserCString(p, a.A0)
		if err != 0 {
			return int32(err)
		}
		flags := vfs.OpenFlags(a.A1)

		p.Lock()
		path := p.Cwd.Canonicalpath(ustr.MkUstrSlice(pathBuf))
		p.Unlock()

		vn, rerr := v.Resolve(path)
		if rerr != 0 {
			if rerr != -defs.ENOENT || flags&vfs.O_CREAT == 0 {
				return int32(rerr)
			}
			parent, leaf, perr := v.ResolveParentAndLeaf(path)
			if perr != 0 {
				return int32(perr)
			}
			vn, rerr = parent.Create(leaf, vfs.FtRegular)
			if rerr != 0 {
				return int32(rerr)
			}
		}

		fdnum, aerr := allocFd(p)
		if aerr != 0 {
			return int32(aerr)
		}
		p.Lock()
		p.Fds[fdnum] = &fd.Fd_t{File: vfs.MkOpenFile(vn, flags), Perms: fd.FD_READ | fd.FD_WRITE}
		p.Unlock()
		return int32(fdnum)
	}
}

// CloseHandler implements SYS_CLOSE.
func CloseHandler() Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		n := int(a.A0)
		p.Lock()
		defer p.Unlock()
		if n < 0 || n >= proc.NOFILE || p.Fds[n] == nil {
			return int32(-defs.EBADF)
		}
		p.Fds[n] = nil
		return 0
	}
}

// ReadFileHandler implements SYS_READ_FILE: read into a user buffer from
// an open file.
func ReadFileHandler() Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		f := fdAt(p, int(a.A0))
		if f == nil {
			return int32(-defs.EBADF)
		}
		buf := make([]byte, a.A2)
		n, err := f.File.Read(buf)
		if err != 0 {
			return int32(err)
		}
		if werr := copyOutUser(p, a.A1, buf[:n]); werr != 0 {
			return int32(werr)
		}
		return int32(n)
	}
}

// WriteFileHandler implements SYS_WRITE_FILE: write a.A2 bytes from a
// user buffer to an open file.
func WriteFileHandler() Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		f := fdAt(p, int(a.A0))
		if f == nil {
			return int32(-defs.EBADF)
		}
		buf, err := copyInUser(p, a.A1, int(a.A2))
		if err != 0 {
			return int32(err)
		}
		n, werr := f.File.Write(buf)
		if werr != 0 {
			return int32(werr)
		}
		return int32(n)
	}
}

// ReaddirHandler implements SYS_READDIR: return the idx'th entry of the
// open directory fd as a NUL-terminated name copied to the user buffer.
func ReaddirHandler() Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		f := fdAt(p, int(a.A0))
		if f == nil {
			return int32(-defs.EBADF)
		}
		ent, err := f.File.Vn.Readdir(int(a.A1))
		if err != 0 {
			return int32(err)
		}
		buf := append(append(ustr.Ustr{}, ent.Name...), 0)
		if werr := copyOutUser(p, a.A2, buf); werr != 0 {
			return int32(werr)
		}
		return 0
	}
}

// MkdirHandler implements SYS_MKDIR.
func MkdirHandler(v *vfs.VFS) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		pathBuf, err := copyInUserCString(p, a.A0)
		if err != 0 {
			return int32(err)
		}
		p.Lock()
		path := p.Cwd.Canonicalpath(ustr.MkUstrSlice(pathBuf))
		p.Unlock()
		parent, leaf, perr := v.ResolveParentAndLeaf(path)
		if perr != 0 {
			return int32(perr)
		}
		_, merr := parent.Mkdir(leaf)
		return int32(merr)
	}
}

// rmHandler backs both SYS_RMDIR and SYS_UNLINK: resolve the parent and
// leaf name and remove the entry, leaving directory-vs-regular-file
// enforcement to the concrete filesystem's Unlink implementation.
func rmHandler(v *vfs.VFS) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		pathBuf, err := copyInUserCString(p, a.A0)
		if err != 0 {
			return int32(err)
		}
		p.Lock()
		path := p.Cwd.Canonicalpath(ustr.MkUstrSlice(pathBuf))
		p.Unlock()
		parent, leaf, perr := v.ResolveParentAndLeaf(path)
		if perr != 0 {
			return int32(perr)
		}
		return int32(parent.Unlink(leaf))
	}
}

// RmdirHandler implements SYS_RMDIR.
func RmdirHandler(v *vfs.VFS) Handler { return rmHandler(v) }

// UnlinkHandler implements SYS_UNLINK.
func UnlinkHandler(v *vfs.VFS) Handler { return rmHandler(v) }

// ChdirHandler implements SYS_CHDIR.
func ChdirHandler(v *vfs.VFS) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		pathBuf, err := copyInUserCString(p, a.A0)
		if err != 0 {
			return int32(err)
		}
		p.Lock()
		path := p.Cwd.Canonicalpath(ustr.MkUstrSlice(pathBuf))
		p.Unlock()
		vn, rerr := v.Resolve(path)
		if rerr != 0 {
			return int32(rerr)
		}
		if vn.Type() != vfs.FtDirectory {
			return int32(-defs.ENOTDIR)
		}
		p.Lock()
		p.Cwd.Path = path
		p.Unlock()
		return 0
	}
}

// GetcwdHandler implements SYS_GETCWD.
func GetcwdHandler() Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		p.Lock()
		path := append(ustr.Ustr{}, p.Cwd.Path...)
		p.Unlock()
		if werr := copyOutUser(p, a.A0, append(path, 0)); werr != 0 {
			return int32(werr)
		}
		return int32(len(path))
	}
}

// GetcwdPtrHandler implements SYS_GETCWD_PTR: original_source returns the
// raw kernel address of currentWorkingDirectory for the caller to read
// directly; this kernel has no address meaningful to a user register, so
// it copies the same bytes GETCWD does.
func GetcwdPtrHandler() Handler { return GetcwdHandler() }

// GetspawnargHandler implements SYS_GETSPAWNARG.
func GetspawnargHandler() Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		p.Lock()
		arg := append(ustr.Ustr{}, p.SpawnArg...)
		p.Unlock()
		if werr := copyOutUser(p, a.A0, append(arg, 0)); werr != 0 {
			return int32(werr)
		}
		return int32(len(arg))
	}
}

// ExecHandler implements SYS_EXEC: build a brand-new address space from
// the ELF image found at the resolved path and spawn it as a new child
// process, matching spec §4.5's "EXEC(path,arg): ... create new user
// process; return child pid" and original_source/kernel/core/syscalls.cpp's
// create_user_process_from_elf (the child inherits the caller's cwd, the
// optional a.A1 argument string becomes the child's spawnArg, and the
// caller's own address space and control flow are untouched: it returns to
// the instruction after the trap with the new child's pid rather than
// becoming the exec'd program itself).
func ExecHandler(v *vfs.VFS, frames *mem.FrameTable, table *proc.Table, sched *proc.Scheduler, now func() int64) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		pathBuf, err := copyInUserCString(p, a.A0)
		if err != 0 {
			return int32(err)
		}
		var argBuf []byte
		if a.A1 != 0 {
			argBuf, err = copyInUserCString(p, a.A1)
			if err != 0 {
				return int32(err)
			}
		}

		p.Lock()
		path := p.Cwd.Canonicalpath(ustr.MkUstrSlice(pathBuf))
		parentCwd := append(ustr.Ustr{}, p.Cwd.Path...)
		p.Unlock()

		vn, rerr := v.Resolve(path)
		if rerr != 0 {
			return int32(rerr)
		}
		raw := make([]byte, vn.Size())
		if _, rerr := vn.Read(raw, 0); rerr != 0 {
			return int32(rerr)
		}

		childVm, merr := vm.Mkvm(frames)
		if merr != 0 {
			return int32(merr)
		}
		loaded, lerr := elf.Load(childVm, raw)
		if lerr != 0 {
			return int32(lerr)
		}
		if serr := childVm.Vmadd_anon(vm.UserStackTop-vm.DefaultStackSz, vm.DefaultStackSz, mem.PTE_U|mem.PTE_W); serr != 0 {
			return int32(serr)
		}

		child := table.Add("elf", 5, childVm, now())
		child.Lock()
		child.ParentPid = p.Pid
		child.Cwd = &fd.Cwd_t{Path: parentCwd}
		child.SpawnArg = ustr.Ustr(argBuf)
		child.HeapStart = loaded.BrkBase
		child.HeapEnd = loaded.BrkBase
		child.Context.Eip = loaded.Entry
		child.Context.Esp = vm.UserStackTop
		child.Unlock()

		p.Lock()
		p.Children = append(p.Children, child.Pid)
		p.Unlock()

		sched.AddReady(child)
		return int32(child.Pid)
	}
}

// PsHandler implements SYS_PS: write a summary of the process table's
// size to the caller's buffer.
func PsHandler(table *proc.Table) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		var st stat.Stat_t
		st.Wsize(uint32(table.Len()))
		if werr := copyOutUser(p, a.A0, st.Bytes()); werr != 0 {
			return int32(werr)
		}
		return 0
	}
}

func copyOutUser(p *proc.Process, uva uint32, src []byte) defs.Err_t {
	off := 0
	for off < len(src) {
		va := uva + uint32(off)
		pa, _, ok := p.Vm.Lookup(va)
		if !ok {
			return -defs.EFAULT
		}
		base := int(va) & (mem.PGSIZE - 1)
		dst := mem.Physmem.Bytes(pa)[base:]
		c := copy(dst, src[off:])
		off += c
		if c == 0 {
			break
		}
	}
	return 0
}
