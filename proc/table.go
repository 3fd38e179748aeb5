package proc

import (
	"sync"

	"pageos/defs"
	"pageos/vm"
)

// Table is the system-wide process table, matching ProcessManager's
// processes[MAX_PROCESSES] array generalized to an unbounded map. No
// process-count limit is checked on creation, neither here nor by its
// callers.
type Table struct {
	sync.RWMutex
	procs  map[defs.Pid_t]*Process
	nextPid defs.Pid_t
}

// MkTable constructs an empty process table. PID 1 is reserved for the
// first process the kernel starts, matching Unix init convention.
func MkTable() *Table {
	return &Table{procs: map[defs.Pid_t]*Process{}, nextPid: 1}
}

// Add inserts a freshly created process and assigns it the next PID.
func (t *Table) Add(name string, priority uint32, as *vm.Vm_t, now int64) *Process {
	t.Lock()
	defer t.Unlock()
	pid := t.nextPid
	t.nextPid++
	p := Mkprocess(pid, name, priority, as, now)
	t.procs[pid] = p
	return p
}

// Get looks up a process by PID.
func (t *Table) Get(pid defs.Pid_t) (*Process, bool) {
	t.RLock()
	defer t.RUnlock()
	p, ok := t.procs[pid]
	return p, ok
}

// Remove deletes a process from the table, used once a parent has reaped
// a TERMINATED child (ProcessManager::reap_child).
func (t *Table) Remove(pid defs.Pid_t) {
	t.Lock()
	defer t.Unlock()
	delete(t.procs, pid)
}

// Len reports the number of live table entries (reported by the PS
// syscall).
func (t *Table) Len() int {
	t.RLock()
	defer t.RUnlock()
	return len(t.procs)
}

// childrenOf returns pid's children still present in the table, in map
// iteration order (no particular order).
func (t *Table) childrenOf(pid defs.Pid_t) []*Process {
	t.RLock()
	defer t.RUnlock()
	var kids []*Process
	for _, c := range t.procs {
		if c.ParentPid == pid {
			kids = append(kids, c)
		}
	}
	return kids
}

// FindTerminatedChild returns a ZOMBIE, not-yet-reaped child of parentPid
// (preferring waitPid if it is a specific PID, matching
// ProcessManager::find_terminated_child / has_child). A child only becomes
// TERMINATED once Reap has collected it.
func (t *Table) FindTerminatedChild(parentPid, waitPid defs.Pid_t) *Process {
	for _, c := range t.childrenOf(parentPid) {
		c.Lock()
		match := !c.HasBeenWaited && c.State == ZOMBIE &&
			(waitPid == WaitAnyChild || waitPid == c.Pid)
		c.Unlock()
		if match {
			return c
		}
	}
	return nil
}

// HasChild reports whether parentPid currently has any live or
// not-yet-reaped children.
func (t *Table) HasChild(parentPid defs.Pid_t) bool {
	return len(t.childrenOf(parentPid)) > 0
}

// Exit transitions a process to ZOMBIE, recording its exit status and
// waking its parent if the parent is blocked in wait/waitid, matching the
// wait/exit protocol's "on termination the PCB transitions to ZOMBIE...
// the child transitions to TERMINATED upon being reaped". Any of p's own
// children are orphaned: a ZOMBIE orphan is reaped immediately by this
// trivial kernel reaper (its unwaited status is discarded), a live orphan
// just has its parentPid cleared to 0.
func (t *Table) Exit(p *Process, status int32) {
	p.Lock()
	p.State = ZOMBIE
	p.ExitStatus = status
	p.Unlock()

	if parent, ok := t.Get(p.ParentPid); ok {
		parent.Lock()
		waiting := parent.State == WAITING &&
			(parent.WaitingOnPid == WaitAnyChild || parent.WaitingOnPid == p.Pid)
		if waiting {
			parent.PendingChildPid = p.Pid
			parent.PendingChildStatus = status
		}
		parent.Unlock()
		if waiting {
			parent.Wake()
		}
	}

	for _, c := range t.childrenOf(p.Pid) {
		c.Lock()
		c.ParentPid = 0
		orphanZombie := c.State == ZOMBIE
		c.Unlock()
		if orphanZombie {
			t.Reap(c)
		}
	}
}

// Reap transitions an already-ZOMBIE child to TERMINATED and removes it
// from the table, matching ProcessManager::reap_child.
func (t *Table) Reap(child *Process) {
	child.Lock()
	child.HasBeenWaited = true
	child.State = TERMINATED
	child.Unlock()
	t.Remove(child.Pid)
}
