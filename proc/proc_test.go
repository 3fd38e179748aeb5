package proc

import (
	"testing"

	"pageos/defs"
	"pageos/fd"
	"pageos/mem"
	"pageos/vm"
)

func setup(t *testing.T) *mem.FrameTable {
	t.Helper()
	mem.Phys_init(256)
	return mem.NewFrameTable()
}

func TestTableAddAndGet(t *testing.T) {
	frames := setup(t)
	as, _ := vm.Mkvm(frames)
	tbl := MkTable()
	p := tbl.Add("init", 5, as, 0)
	if p.Pid != 1 {
		t.Fatalf("first pid = %d, want 1", p.Pid)
	}
	got, ok := tbl.Get(p.Pid)
	if !ok || got != p {
		t.Fatal("Get did not return the added process")
	}
}

func TestSchedulerFIFOWithinPriority(t *testing.T) {
	frames := setup(t)
	s := MkScheduler()
	var got []defs.Pid_t
	for i := defs.Pid_t(1); i <= 3; i++ {
		as, _ := vm.Mkvm(frames)
		p := Mkprocess(i, "p", 5, as, 0)
		s.AddReady(p)
	}
	for i := 0; i < 3; i++ {
		p := s.Next()
		if p == nil {
			t.Fatal("expected a ready process")
		}
		got = append(got, p.Pid)
	}
	want := []defs.Pid_t{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dequeue order = %v, want %v", got, want)
		}
	}
}

func TestSchedulerHigherPriorityFirst(t *testing.T) {
	frames := setup(t)
	s := MkScheduler()
	as1, _ := vm.Mkvm(frames)
	low := Mkprocess(1, "low", 8, as1, 0)
	as2, _ := vm.Mkvm(frames)
	high := Mkprocess(2, "high", 1, as2, 0)
	s.AddReady(low)
	s.AddReady(high)

	p := s.Next()
	if p.Pid != high.Pid {
		t.Fatalf("expected high-priority process first, got pid %d", p.Pid)
	}
}

func TestForkSharesCOWAddressSpace(t *testing.T) {
	frames := setup(t)
	as, _ := vm.Mkvm(frames)
	if err := as.Vmadd_anon(vm.UserHeapStart, uint32(mem.PGSIZE), mem.PTE_U|mem.PTE_W); err != 0 {
		t.Fatalf("vmadd_anon: %d", err)
	}
	pa, _, _ := as.Lookup(vm.UserHeapStart)
	mem.Physmem.Bytes(pa)[0] = 0x42

	tbl := MkTable()
	parent := tbl.Add("parent", 5, as, 0)
	parent.Cwd = fd.MkRootCwd(nil)

	child, err := tbl.Fork(parent, frames, 0)
	if err != 0 {
		t.Fatalf("fork: %d", err)
	}
	if child.ParentPid != parent.Pid {
		t.Fatalf("child parent pid = %d, want %d", child.ParentPid, parent.Pid)
	}
	cpa, _, ok := child.Vm.Lookup(vm.UserHeapStart)
	if !ok {
		t.Fatal("child does not have heap page mapped")
	}
	if mem.Physmem.Bytes(cpa)[0] != 0x42 {
		t.Fatal("child's copy-on-write page lost parent contents")
	}
	if mem.Physmem.Refcnt(pa) < 2 {
		t.Fatalf("expected shared refcount >= 2, got %d", mem.Physmem.Refcnt(pa))
	}
}

func TestExitOrphansChildrenAndReapsZombies(t *testing.T) {
	frames := setup(t)
	tbl := MkTable()
	pas, _ := vm.Mkvm(frames)
	parent := tbl.Add("parent", 5, pas, 0)

	as1, _ := vm.Mkvm(frames)
	liveChild := tbl.Add("live", 5, as1, 0)
	liveChild.ParentPid = parent.Pid

	as2, _ := vm.Mkvm(frames)
	zombieChild := tbl.Add("zombie", 5, as2, 0)
	zombieChild.ParentPid = parent.Pid
	tbl.Exit(zombieChild, 3)
	if zombieChild.State != ZOMBIE {
		t.Fatalf("state = %v, want ZOMBIE before parent exits", zombieChild.State)
	}

	tbl.Exit(parent, 0)

	if liveChild.ParentPid != 0 {
		t.Fatalf("live child's parentPid = %d, want 0 (orphaned)", liveChild.ParentPid)
	}
	if _, ok := tbl.Get(zombieChild.Pid); ok {
		t.Fatal("zombie orphan should have been reaped immediately")
	}
	if parent.State != ZOMBIE {
		t.Fatalf("parent state = %v, want ZOMBIE (not yet reaped)", parent.State)
	}
}

func TestExitWakesWaitingParent(t *testing.T) {
	frames := setup(t)
	tbl := MkTable()
	as1, _ := vm.Mkvm(frames)
	parent := tbl.Add("parent", 5, as1, 0)
	as2, _ := vm.Mkvm(frames)
	child := tbl.Add("child", 5, as2, 0)
	child.ParentPid = parent.Pid

	parent.Lock()
	parent.State = WAITING
	parent.WaitingOnPid = WaitAnyChild
	parent.Unlock()

	tbl.Exit(child, 7)

	select {
	case <-parent.Resume:
	default:
		t.Fatal("parent was not woken on child exit")
	}
	parent.Lock()
	defer parent.Unlock()
	if parent.PendingChildPid != child.Pid || parent.PendingChildStatus != 7 {
		t.Fatalf("pending child info = (%d, %d), want (%d, 7)", parent.PendingChildPid, parent.PendingChildStatus, child.Pid)
	}
}
