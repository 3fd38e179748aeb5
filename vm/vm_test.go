package vm

import (
	"testing"

	"pageos/mem"
)

func setup(t *testing.T) {
	mem.Phys_init(256)
}

func TestAnonMapAndCopy(t *testing.T) {
	setup(t)
	as, err := Mkvm(mem.NewFrameTable())
	if err != 0 {
		t.Fatalf("Mkvm: %d", err)
	}
	if err := as.Vmadd_anon(UserHeapStart, uint32(mem.PGSIZE), mem.PTE_W); err != 0 {
		t.Fatalf("Vmadd_anon: %d", err)
	}
	pa, perm, ok := as.Lookup(UserHeapStart)
	if !ok {
		t.Fatal("mapping missing")
	}
	if perm&mem.PTE_W == 0 {
		t.Fatal("expected writable mapping")
	}
	mem.Physmem.Bytes(pa)[0] = 42
}

func TestForkCOWResolution(t *testing.T) {
	setup(t)
	ft := mem.NewFrameTable()
	parent, _ := Mkvm(ft)
	child, _ := Mkvm(ft)
	parent.Vmadd_anon(UserHeapStart, uint32(mem.PGSIZE), mem.PTE_W)
	pa, _, _ := parent.Lookup(UserHeapStart)
	mem.Physmem.Bytes(pa)[0] = 7

	if err := parent.Fork_copy(child); err != 0 {
		t.Fatalf("Fork_copy: %d", err)
	}

	_, pperm, _ := parent.Lookup(UserHeapStart)
	if pperm&PTE_COW == 0 {
		t.Fatal("parent mapping should be marked COW after fork")
	}
	if mem.Physmem.Refcnt(pa) != 2 {
		t.Fatalf("refcnt = %d, want 2", mem.Physmem.Refcnt(pa))
	}

	// child write fault should copy since refcnt is 2
	if err := child.Sys_pgfault(UserHeapStart, true); err != 0 {
		t.Fatalf("Sys_pgfault: %d", err)
	}
	cpa, cperm, _ := child.Lookup(UserHeapStart)
	if cpa == pa {
		t.Fatal("child should now have its own frame")
	}
	if cperm&mem.PTE_W == 0 {
		t.Fatal("child mapping should be writable after COW resolution")
	}
	if mem.Physmem.Bytes(cpa)[0] != 7 {
		t.Fatal("copied page should retain original contents")
	}

	// parent is now the sole owner of pa; its own write fault should reuse it.
	if err := parent.Sys_pgfault(UserHeapStart, true); err != 0 {
		t.Fatalf("Sys_pgfault (parent): %d", err)
	}
	ppa, pperm2, _ := parent.Lookup(UserHeapStart)
	if ppa != pa {
		t.Fatal("parent should reuse its own frame when refcnt drops to 1")
	}
	if pperm2&mem.PTE_W == 0 {
		t.Fatal("parent mapping should be writable after COW resolution")
	}
}
