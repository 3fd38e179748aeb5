package scall

import (
	"pageos/defs"
	"pageos/mem"
	"pageos/proc"
)

// ExitHandler implements SYS_EXIT: record the exit status and transition
// to ZOMBIE, waking a waiting parent (ProcessManager::
// terminate_current_process_with_status).
func ExitHandler(table *proc.Table) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		table.Exit(p, int32(a.A0))
		return 0
	}
}

// GetpidHandler implements SYS_GETPID.
func GetpidHandler() Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		return int32(p.Pid)
	}
}

// YieldHandler implements SYS_YIELD: re-queue the caller and let the
// scheduler pick someone else on the next tick.
func YieldHandler() Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		d.sched.AddReady(p)
		return 0
	}
}

// SleepHandler implements SYS_SLEEP: park the caller on the sleep queue
// for a.A0 ticks.
func SleepHandler(timerNow func() int64) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		wake := timerNow() + int64(a.A0)
		d.sched.Sleep(p, wake)
		<-p.Resume
		return 0
	}
}

// ForkHandler implements SYS_FORK, sharing the CoW address space and
// duplicating the fd table, matching ProcessManager::fork_current_process.
func ForkHandler(table *proc.Table, frames *mem.FrameTable, now func() int64) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		child, err := table.Fork(p, frames, now())
		if err != 0 {
			return int32(err)
		}
		d.sched.AddReady(child)
		return int32(child.Pid)
	}
}

// WaitHandler implements SYS_WAIT/SYS_WAITID: block until a matching
// child reaches ZOMBIE, then reap it (transitioning it to TERMINATED) and
// return its exit status, matching spec law L5. A pid of 0 waits for any
// child, like proc.WaitAnyChild.
func WaitHandler(table *proc.Table) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		waitPid := defs.Pid_t(int32(a.A0))
		if waitPid == 0 {
			waitPid = proc.WaitAnyChild
		}

		if child := table.FindTerminatedChild(p.Pid, waitPid); child != nil {
			status := child.ExitStatus
			table.Reap(child)
			return status
		}
		if !table.HasChild(p.Pid) {
			return int32(-defs.ECHILD)
		}

		d.Park(p, waitPid)

		p.Lock()
		status := p.PendingChildStatus
		childPid := p.PendingChildPid
		p.Unlock()
		if child, ok := table.Get(childPid); ok {
			table.Reap(child)
		}
		return status
	}
}

// KillHandler implements SYS_KILL: force the target into ZOMBIE via
// Table.Exit with status -1. It is reaped into TERMINATED once its parent
// waits for it; a target whose parentPid is 0 is not reaped and stays
// ZOMBIE in the table.
func KillHandler(table *proc.Table, sched *proc.Scheduler) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		target, ok := table.Get(defs.Pid_t(int32(a.A0)))
		if !ok {
			return int32(-defs.ESRCH)
		}
		target.Lock()
		target.Killed = true
		wasReady := target.State == proc.READY
		target.Unlock()
		if wasReady {
			sched.Remove(target)
		}
		table.Exit(target, -1)
		target.Wake()
		return 0
	}
}

// SbrkHandler implements SYS_SBRK: grow or shrink the heap by a.A0 bytes
// (interpreted as signed), returning the previous break, matching the
// teacher's sbrk-then-brk pair.
func SbrkHandler() Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		delta := int32(a.A0)
		p.Lock()
		defer p.Unlock()
		old := p.HeapEnd
		newEnd := uint32(int64(p.HeapEnd) + int64(delta))
		if delta > 0 {
			if err := p.Vm.Vmadd_anon(old, uint32(delta), mem.PTE_U|mem.PTE_W); err != 0 {
				return int32(err)
			}
		}
		p.HeapEnd = newEnd
		return int32(old)
	}
}

// BrkHandler implements SYS_BRK: set the heap break to an absolute
// address.
func BrkHandler() Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		target := a.A0
		p.Lock()
		defer p.Unlock()
		if target < p.HeapStart {
			return int32(-defs.EINVAL)
		}
		if target > p.HeapEnd {
			if err := p.Vm.Vmadd_anon(p.HeapEnd, target-p.HeapEnd, mem.PTE_U|mem.PTE_W); err != 0 {
				return int32(err)
			}
		}
		p.HeapEnd = target
		return 0
	}
}
