package proc

import (
	"pageos/defs"
	"pageos/fd"
	"pageos/mem"
	"pageos/ustr"
	"pageos/vm"
)

// Fork creates a child of parent: a copy-on-write address space (via
// vm.Fork_copy), a duplicated (shared-position) file descriptor table, and
// a fresh PCB added to the table (queueing it on the scheduler is left to
// the caller, as scall's fork handler does), matching
// ProcessManager::fork_current_process generalized from "share address
// space, refcount TBD" to the spec's full CoW contract.
func (t *Table) Fork(parent *Process, frames *mem.FrameTable, now int64) (*Process, defs.Err_t) {
	childVm, err := vm.Mkvm(frames)
	if err != 0 {
		return nil, err
	}

	parent.Lock()
	if err := parent.Vm.Fork_copy(childVm); err != 0 {
		parent.Unlock()
		return nil, err
	}
	name := parent.Name
	priority := parent.Priority
	heapStart, heapEnd := parent.HeapStart, parent.HeapEnd
	cwdPath := append(ustr.Ustr{}, parent.Cwd.Path...)
	var fds [NOFILE]*fd.Fd_t
	for i, f := range parent.Fds {
		if f == nil {
			continue
		}
		nf, _ := fd.Copyfd(f)
		fds[i] = nf
	}
	parent.Unlock()

	t.Lock()
	pid := t.nextPid
	t.nextPid++
	t.Unlock()

	child := Mkprocess(pid, name, priority, childVm, now)
	child.HeapStart, child.HeapEnd = heapStart, heapEnd
	child.Fds = fds
	child.Cwd = &fd.Cwd_t{Path: cwdPath}
	child.ParentPid = parent.Pid

	t.Lock()
	t.procs[pid] = child
	t.Unlock()

	parent.Lock()
	parent.Children = append(parent.Children, pid)
	parent.Unlock()

	return child, 0
}
