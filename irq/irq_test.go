package irq

import (
	"testing"

	"pageos/defs"
	"pageos/hal"
	"pageos/mem"
	"pageos/proc"
	"pageos/vm"
)

func setup(t *testing.T) (*proc.Table, *proc.Scheduler, *Core) {
	t.Helper()
	mem.Phys_init(256)
	table := proc.MkTable()
	sched := proc.MkScheduler()
	console := hal.MkConsole()
	core := MkCore(sched, table, console, hal.MkKeyboard(console, sched), hal.MkTimer())
	return table, sched, core
}

// TestFaultTerminateWakesWaitingParent exercises a fault-killed child's
// parent, blocked in WAIT, being resumed with the child's fault status
// instead of hanging forever (the fault path must route through the same
// exit/wake protocol SYS_EXIT and SYS_KILL use).
func TestFaultTerminateWakesWaitingParent(t *testing.T) {
	frames := mem.NewFrameTable()
	table, _, core := setup(t)

	pas, _ := vm.Mkvm(frames)
	parent := table.Add("parent", 5, pas, 0)
	cas, _ := vm.Mkvm(frames)
	child := table.Add("child", 5, cas, 0)
	child.ParentPid = parent.Pid

	parent.Lock()
	parent.State = proc.WAITING
	parent.WaitingOnPid = proc.WaitAnyChild
	parent.Unlock()

	f := &Frame{Vector: VecGPFault, KernelMode: false}
	if err := core.Dispatch(f, child); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	select {
	case <-parent.Resume:
	default:
		t.Fatal("parent was not woken when its child was fault-killed")
	}
	parent.Lock()
	pid, status := parent.PendingChildPid, parent.PendingChildStatus
	parent.Unlock()
	if pid != child.Pid || status != -int32(defs.EFAULT) {
		t.Fatalf("pending child info = (%d, %d), want (%d, %d)", pid, status, child.Pid, -int32(defs.EFAULT))
	}

	found, ok := table.Get(child.Pid)
	if !ok || found.State != proc.ZOMBIE {
		t.Fatal("fault-killed child should be ZOMBIE, not removed or left RUNNING")
	}
}
