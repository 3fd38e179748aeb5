// Package vm implements a process address space over the 32-bit two-level
// x86 page table layout (a 1024-entry page directory pointing at
// 1024-entry page tables), user/kernel copy primitives, and copy-on-write
// page-fault resolution. The core algorithm is grounded on the teacher's
// Sys_pgfault (biscuit's vm/as.go) and userbuf copy primitives, adapted from
// biscuit's native 4-level x86-64 paging down to the 2-level 32-bit layout
// original_source's VirtualMemoryManager actually uses.
package vm

import (
	"pageos/defs"
	"pageos/mem"
)

// Software-only PTE bit (x86 lets the OS use bits 9-11 freely): marks a
// present, read-only page that is copy-on-write and must be duplicated on
// the next write fault rather than simply rejected.
const PTE_COW mem.Pa_t = 1 << 9

// Virtual memory layout constants, taken from
// original_source/include/memory/virtual_memory.hpp (spec §4.2 describes
// the split qualitatively; the original supplies these exact values).
const (
	UserSpaceEnd   uint32 = 0xBFFFFFFF
	KernelSpace    uint32 = 0xC0000000
	UserStackTop   uint32 = 0xC0000000
	UserHeapStart  uint32 = 0x40000000
	UserTextStart  uint32 = 0x08048000
	DefaultStackSz uint32 = 64 * 1024
)

// Vm_t is one process's address space: a page directory frame (Uvmfree and
// Fork_copy find the mapped frames by walking its page tables), the heap
// bounds, and the shared CoW frame table.
type Vm_t struct {
	PDir   mem.Pa_t
	HeapLo uint32
	HeapHi uint32
	frames *mem.FrameTable
}

// Mkvm allocates a fresh, empty address space.
func Mkvm(frames *mem.FrameTable) (*Vm_t, defs.Err_t) {
	pdpa, _, ok := mem.Physmem.Refpg_new()
	if !ok {
		return nil, -defs.ENOMEM
	}
	return &Vm_t{PDir: pdpa, HeapLo: UserHeapStart, HeapHi: UserHeapStart, frames: frames}, 0
}

func pdeIndex(va uint32) int { return int(va >> 22) }
func pteIndex(va uint32) int { return int((va >> 12) & 0x3ff) }

// walk returns the PTE slot for va within this address space's page
// directory, allocating an intermediate page table when create is true.
func (vm *Vm_t) walk(va uint32, create bool) (*mem.Pa_t, defs.Err_t) {
	pd := mem.Physmem.Pmap(vm.PDir)
	pde := &pd[pdeIndex(va)]
	if *pde&mem.PTE_P == 0 {
		if !create {
			return nil, 0
		}
		ptpa, _, ok := mem.Physmem.Refpg_new()
		if !ok {
			return nil, -defs.ENOMEM
		}
		*pde = ptpa | mem.PTE_P | mem.PTE_W | mem.PTE_U
	}
	pt := mem.Physmem.Pmap(*pde & mem.PTE_ADDR)
	return &pt[pteIndex(va)], 0
}

// Lookup translates a user virtual address to its backing physical address
// and permission bits, if mapped.
func (vm *Vm_t) Lookup(va uint32) (mem.Pa_t, mem.Pa_t, bool) {
	pte, _ := vm.walk(va, false)
	if pte == nil || *pte&mem.PTE_P == 0 {
		return 0, 0, false
	}
	return *pte & mem.PTE_ADDR, *pte &^ mem.PTE_ADDR, true
}

// Page_insert maps va to the physical frame pa with the given permission
// bits, replacing any previous mapping (dropping its reference).
func (vm *Vm_t) Page_insert(va uint32, pa mem.Pa_t, perm mem.Pa_t) defs.Err_t {
	pte, err := vm.walk(va, true)
	if err != 0 {
		return err
	}
	if *pte&mem.PTE_P != 0 {
		mem.Physmem.Refdown(*pte & mem.PTE_ADDR)
	}
	*pte = (pa & mem.PTE_ADDR) | perm | mem.PTE_P
	return 0
}

// Page_remove unmaps va, dropping the reference to its backing frame.
func (vm *Vm_t) Page_remove(va uint32) {
	pte, _ := vm.walk(va, false)
	if pte == nil || *pte&mem.PTE_P == 0 {
		return
	}
	mem.Physmem.Refdown(*pte & mem.PTE_ADDR)
	*pte = 0
}

// Vmadd_anon maps [va, va+len) to freshly allocated zero-filled anonymous
// frames, matching the teacher's Vmadd_anon for heap/stack growth.
func (vm *Vm_t) Vmadd_anon(va uint32, length uint32, perm mem.Pa_t) defs.Err_t {
	start := va &^ uint32(mem.PGOFFSET)
	end := (va + length + uint32(mem.PGOFFSET)) &^ uint32(mem.PGOFFSET)
	for a := start; a < end; a += uint32(mem.PGSIZE) {
		pa, _, ok := mem.Physmem.Refpg_new()
		if !ok {
			return -defs.ENOMEM
		}
		if err := vm.Page_insert(a, pa, perm|mem.PTE_U); err != 0 {
			return err
		}
	}
	return 0
}

// Uvmfree tears down every user mapping in the address space and releases
// the page directory and page table frames themselves.
func (vm *Vm_t) Uvmfree() {
	pd := mem.Physmem.Pmap(vm.PDir)
	for i, pde := range pd {
		if pde&mem.PTE_P == 0 {
			continue
		}
		pt := mem.Physmem.Pmap(pde & mem.PTE_ADDR)
		for j, pte := range pt {
			if pte&mem.PTE_P != 0 {
				vm.Page_remove(uint32(i)<<22 | uint32(j)<<12)
			}
		}
		mem.Physmem.Refdown(pde & mem.PTE_ADDR)
		pd[i] = 0
	}
	mem.Physmem.Refdown(vm.PDir)
}

// Fork_copy gives child the same user mappings as vm, read-only and marked
// copy-on-write wherever vm's mapping was writable, bumping each shared
// frame's refcount by one and recording it in the shared-frame table. This
// is the allocation half of fork's CoW contract (spec §4.6); resolving a
// subsequent write fault is Sys_pgfault below.
func (vm *Vm_t) Fork_copy(child *Vm_t) defs.Err_t {
	pd := mem.Physmem.Pmap(vm.PDir)
	for i, pde := range pd {
		if pde&mem.PTE_P == 0 {
			continue
		}
		pt := mem.Physmem.Pmap(pde & mem.PTE_ADDR)
		for j, pte := range pt {
			if pte&mem.PTE_P == 0 {
				continue
			}
			va := uint32(i)<<22 | uint32(j)<<12
			pa := pte & mem.PTE_ADDR
			perm := pte &^ mem.PTE_ADDR
			if perm&mem.PTE_W != 0 {
				perm = perm &^ mem.PTE_W | PTE_COW
				pt[j] = pa | perm | mem.PTE_P
			}
			mem.Physmem.Refup(pa)
			if vm.frames != nil {
				vm.frames.MarkShared(pa)
			}
			if err := child.Page_insert(va, pa, perm); err != 0 {
				return err
			}
		}
	}
	child.HeapLo, child.HeapHi = vm.HeapLo, vm.HeapHi
	return 0
}

// Sys_pgfault resolves a page fault at va. A write fault on a present,
// PTE_COW page either reclaims the frame in place (refcount==1, the fast
// path: nothing else shares it any more) or copies it (refcount>1,
// preserving the other sharer's view), matching original_source's
// MemoryManager CoW handler and the teacher's Sys_pgfault shape.
func (vm *Vm_t) Sys_pgfault(va uint32, writeFault bool) defs.Err_t {
	pte, _ := vm.walk(va, false)
	if pte == nil || *pte&mem.PTE_P == 0 {
		return -defs.EFAULT
	}
	if !writeFault || *pte&PTE_COW == 0 {
		if writeFault && *pte&mem.PTE_W == 0 {
			return -defs.EFAULT
		}
		return 0
	}
	pa := *pte & mem.PTE_ADDR
	perm := (*pte &^ mem.PTE_ADDR) &^ PTE_COW | mem.PTE_W

	if mem.Physmem.Refcnt(pa) == 1 {
		*pte = pa | perm | mem.PTE_P
		if vm.frames != nil {
			vm.frames.ClearShared(pa)
		}
		return 0
	}

	npa, nb, ok := mem.Physmem.Refpg_new()
	if !ok {
		return -defs.ENOMEM
	}
	copy(nb, mem.Physmem.Bytes(pa))
	mem.Physmem.Refdown(pa)
	*pte = npa | perm | mem.PTE_P
	return 0
}
