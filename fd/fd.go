// Package fd implements the per-process file descriptor table entry and
// current-working-directory tracking. Grounded on the teacher's fd.Fd_t/
// Cwd_t split between descriptor permissions and underlying file state,
// retargeted at vfs.OpenFile instead of biscuit's own fdops.Fdops_i/fs.Fs_t.
package fd

import (
	"sync"

	"pageos/defs"
	"pageos/ustr"
	"pageos/vfs"
)

// File descriptor permission bits.
const (
	FD_READ    = 0x1
	FD_WRITE   = 0x2
	FD_CLOEXEC = 0x4
)

// Fd_t is one process's file descriptor table slot. Several Fd_t values
// (e.g. after fork) can point at the same *vfs.OpenFile, sharing its seek
// position — the Open Question on fork fd sharing resolves to "duplicate,
// shared position" (SPEC_FULL.md).
type Fd_t struct {
	File  *vfs.OpenFile
	Perms int
}

// Copyfd duplicates a descriptor, sharing the underlying open file (and
// thus its seek position) rather than reopening it.
func Copyfd(f *Fd_t) (*Fd_t, defs.Err_t) {
	nfd := &Fd_t{}
	*nfd = *f
	return nfd, 0
}

// Close_panic closes the descriptor, panicking if the table entry is
// already invalid — used on paths where close is known to succeed.
func Close_panic(f *Fd_t) {
	if f.File == nil {
		panic("double close")
	}
	f.File = nil
}

// Cwd_t tracks a process's current working directory.
type Cwd_t struct {
	sync.Mutex
	Fd   *Fd_t
	Path ustr.Ustr
}

// Fullpath joins cwd with p if p is not already absolute.
func (cwd *Cwd_t) Fullpath(p ustr.Ustr) ustr.Ustr {
	if p.IsAbsolute() {
		return p
	}
	return cwd.Path.Extend(p)
}

// Canonicalpath resolves p relative to cwd, collapsing "." and ".."
// components, matching the teacher's bpath.Canonicalize contract.
func (cwd *Cwd_t) Canonicalpath(p ustr.Ustr) ustr.Ustr {
	full := cwd.Fullpath(p)
	var stack []ustr.Ustr
	for _, comp := range full.Fields() {
		switch {
		case comp.Isdot():
			continue
		case comp.Isdotdot():
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, comp)
		}
	}
	if len(stack) == 0 {
		return ustr.MkUstrRoot()
	}
	out := append(ustr.Ustr{}, stack[0]...)
	for _, comp := range stack[1:] {
		out = out.Extend(comp)
	}
	return append(ustr.Ustr("/"), out...)
}

// MkRootCwd constructs a Cwd_t rooted at "/".
func MkRootCwd(f *Fd_t) *Cwd_t {
	return &Cwd_t{Fd: f, Path: ustr.MkUstrRoot()}
}
