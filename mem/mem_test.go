package mem

import "testing"

func TestRefpgAllocFree(t *testing.T) {
	Phys_init(16)
	p, b, ok := Physmem.Refpg_new()
	if !ok {
		t.Fatal("alloc failed")
	}
	b[0] = 0xaa
	if Physmem.Refcnt(p) != 1 {
		t.Fatalf("refcnt = %d, want 1", Physmem.Refcnt(p))
	}
	Physmem.Refup(p)
	if Physmem.Refcnt(p) != 2 {
		t.Fatalf("refcnt = %d, want 2", Physmem.Refcnt(p))
	}
	if Physmem.Refdown(p) {
		t.Fatal("refdown freed frame still at refcnt 1")
	}
	if !Physmem.Refdown(p) {
		t.Fatal("refdown should have freed the frame")
	}
}

func TestFrameTableOverflow(t *testing.T) {
	ft := NewFrameTable()
	for i := 0; i < MaxRefEntries; i++ {
		ft.MarkShared(Pa_t(i * PGSIZE))
	}
	if ft.Overflowed() {
		t.Fatal("should not be overflowed at exactly capacity")
	}
	ft.MarkShared(Pa_t(MaxRefEntries * PGSIZE))
	if !ft.Overflowed() {
		t.Fatal("expected overflow after exceeding capacity")
	}
}
