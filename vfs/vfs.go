// Package vfs implements the virtual filesystem switch: a Vnode interface
// any concrete filesystem (clusterfs) implements, path resolution, and the
// shared OpenFile object (the 256-slot per-process descriptor table itself
// is proc.Process.Fds). Grounded on
// original_source/include/fs/vfs.hpp's VNode/FileDescriptor/FileSystem/VFS
// API, adapted from C++ abstract classes to Go interfaces, and on the
// teacher's fd-table-owns-position idiom from fd/fd.go and fs/blk.go.
package vfs

import (
	"sync"

	"pageos/defs"
	"pageos/stat"
	"pageos/ustr"
)

// FileType mirrors original_source's FileType enum.
type FileType uint8

const (
	FtRegular FileType = iota
	FtDirectory
	FtDevice
	FtSymlink
)

// DirEnt is one entry returned by Vnode.Readdir.
type DirEnt struct {
	Name ustr.Ustr
	Ino  uint32
	Type FileType
}

// Vnode is the interface every concrete filesystem's inode implements.
// It replaces original_source's abstract VNode class.
type Vnode interface {
	Read(dst []byte, off uint32) (int, defs.Err_t)
	Write(src []byte, off uint32) (int, defs.Err_t)
	Size() uint32
	Stat(st *stat.Stat_t) defs.Err_t
	Type() FileType
	Inode() uint32

	Readdir(idx int) (DirEnt, defs.Err_t)
	Lookup(name ustr.Ustr) (Vnode, defs.Err_t)
	Create(name ustr.Ustr, t FileType) (Vnode, defs.Err_t)
	Unlink(name ustr.Ustr) defs.Err_t
	Mkdir(name ustr.Ustr) (Vnode, defs.Err_t)
}

// FileSystem is the interface a mountable filesystem implements, matching
// original_source's FileSystem abstract class (mount/root/sync).
type FileSystem interface {
	Root() Vnode
	Sync() defs.Err_t
	Name() string
}

// OpenFlags mirrors original_source's OpenFlags bitset.
type OpenFlags uint32

const (
	O_RDONLY OpenFlags = 0
	O_WRONLY OpenFlags = 0x1
	O_RDWR   OpenFlags = 0x2
	O_CREAT  OpenFlags = 0x40
	O_TRUNC  OpenFlags = 0x200
	O_APPEND OpenFlags = 0x400
)

// OpenFile is an open-file object: a vnode plus a seek position, matching
// original_source's FileDescriptor and fd/fd.go's split between the
// fd-table entry and the underlying file state. Several fd.Fd_t can share
// one OpenFile (dup, fork) since the position lives here, not in the fd
// table slot.
type OpenFile struct {
	sync.Mutex
	Vn    Vnode
	Flags OpenFlags
	pos   uint32
}

func MkOpenFile(vn Vnode, flags OpenFlags) *OpenFile {
	return &OpenFile{Vn: vn, Flags: flags}
}

func (f *OpenFile) Read(dst []byte) (int, defs.Err_t) {
	f.Lock()
	defer f.Unlock()
	n, err := f.Vn.Read(dst, f.pos)
	if err != 0 {
		return 0, err
	}
	f.pos += uint32(n)
	return n, 0
}

func (f *OpenFile) Write(src []byte) (int, defs.Err_t) {
	f.Lock()
	defer f.Unlock()
	if f.Flags&O_APPEND != 0 {
		f.pos = f.Vn.Size()
	}
	n, err := f.Vn.Write(src, f.pos)
	if err != 0 {
		return 0, err
	}
	f.pos += uint32(n)
	return n, 0
}

func (f *OpenFile) Seek(off uint32) {
	f.Lock()
	f.pos = off
	f.Unlock()
}

func (f *OpenFile) Tell() uint32 {
	f.Lock()
	defer f.Unlock()
	return f.pos
}

// VFS is the central mount-point/path-resolution coordinator, matching
// original_source's VFS singleton, generalized to a value any number of
// kernels (tests included) can construct independently instead of a
// process-wide singleton.
type VFS struct {
	sync.RWMutex
	root FileSystem
}

func MkVFS(root FileSystem) *VFS {
	return &VFS{root: root}
}

// Resolve walks path from the filesystem root, following each non-dot,
// non-dotdot component through Lookup.
func (v *VFS) Resolve(path ustr.Ustr) (Vnode, defs.Err_t) {
	v.RLock()
	defer v.RUnlock()
	cur := v.root.Root()
	for _, comp := range path.Fields() {
		if comp.Isdot() {
			continue
		}
		if comp.Isdotdot() {
			// no parent pointers yet; "cd .." above root is a Non-goal.
			continue
		}
		next, err := cur.Lookup(comp)
		if err != 0 {
			return nil, err
		}
		cur = next
	}
	return cur, 0
}

// ResolveParentAndLeaf resolves all but the last path component, returning
// the parent directory vnode and the leaf name, for create/unlink/mkdir.
func (v *VFS) ResolveParentAndLeaf(path ustr.Ustr) (Vnode, ustr.Ustr, defs.Err_t) {
	comps := path.Fields()
	if len(comps) == 0 {
		return nil, ustr.Ustr{}, -defs.EINVAL
	}
	v.RLock()
	cur := v.root.Root()
	v.RUnlock()
	for _, comp := range comps[:len(comps)-1] {
		if comp.Isdot() || comp.Isdotdot() {
			continue
		}
		next, err := cur.Lookup(comp)
		if err != 0 {
			return nil, ustr.Ustr{}, err
		}
		cur = next
	}
	return cur, comps[len(comps)-1], 0
}

func (v *VFS) Sync() defs.Err_t {
	v.RLock()
	defer v.RUnlock()
	return v.root.Sync()
}
