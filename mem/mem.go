// Package mem implements the physical frame allocator: a fixed pool of
// simulated RAM carved into PGSIZE frames, a per-frame reference count for
// copy-on-write sharing, and a bounded "conservative sharing" table that
// mirrors original_source's fixed-capacity CoW ref-count table. There is no
// hardware to map against — RAM is a plain byte arena addressed by Pa_t —
// because this module cannot depend on biscuit's forked-runtime primitives
// (runtime.Get_phys/Cpuid/Vtop) that exist only in its custom Go toolchain.
package mem

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"pageos/oommsg"
	"pageos/util"
)

// PGSHIFT is the base-2 exponent of the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single page/frame in bytes.
const PGSIZE int = 1 << PGSHIFT

// PGOFFSET masks the in-page offset of an address.
const PGOFFSET Pa_t = 0xfff

// PGMASK masks the frame number of an address.
const PGMASK Pa_t = ^(PGOFFSET)

// Page table entry bits, x86 32-bit non-PAE layout.
const (
	PTE_P  Pa_t = 1 << 0 // present
	PTE_W  Pa_t = 1 << 1 // writable
	PTE_U  Pa_t = 1 << 2 // user accessible
	PTE_PS Pa_t = 1 << 7 // large page (unused, Non-goal)
	PTE_ADDR Pa_t = PGMASK
)

// Pa_t is a physical address (really an offset into the simulated RAM
// arena; there is no real physical bus behind it).
type Pa_t uint32

// Bytepg_t is a page viewed as raw bytes.
type Bytepg_t [PGSIZE]uint8

// Pmap_t is a 32-bit two-level page table page: 1024 four-byte entries,
// matching original_source's VirtualMemoryManager layout (1024 page
// directory entries x 1024 page table entries), not biscuit's native
// 4-level scheme.
type Pmap_t [1024]Pa_t

// Physpg_t tracks one physical frame's sharing state.
type Physpg_t struct {
	Refcnt int32
	nexti  uint32
}

const freeEnd = ^uint32(0)

// Physmem_t is the system-wide frame allocator. Unlike the teacher's
// multi-CPU free lists (per-CPU caches feeding a global list), this kernel
// targets the spec's single-CPU model, so one mutex-guarded free list is
// sufficient and matches the teacher's fallback path exactly.
type Physmem_t struct {
	sync.Mutex
	RAM     []byte
	Pgs     []Physpg_t
	startn  uint32
	freei   uint32
	freelen int32
}

func pg2pgn(p Pa_t) uint32 { return uint32(p) >> PGSHIFT }

// Physmem is the global frame allocator, matching the teacher's singleton
// idiom (mem.Physmem).
var Physmem = &Physmem_t{}

// Phys_init carves npages frames out of a freshly allocated RAM arena and
// seeds the free list. It replaces the teacher's Get_phys()-driven E820
// walk, which relies on runtime hooks this module does not have.
func Phys_init(npages int) *Physmem_t {
	phys := Physmem
	phys.RAM = make([]byte, npages*PGSIZE)
	phys.Pgs = make([]Physpg_t, npages)
	phys.startn = 0
	phys.freei = 0
	phys.freelen = int32(npages)
	for i := range phys.Pgs {
		next := uint32(i + 1)
		if i == npages-1 {
			next = freeEnd
		}
		phys.Pgs[i] = Physpg_t{Refcnt: 0, nexti: next}
	}
	fmt.Printf("mem: reserved %v pages (%vKB)\n", npages, npages*PGSIZE/1024)
	return phys
}

func (phys *Physmem_t) idx(p Pa_t) uint32 {
	return pg2pgn(p) - phys.startn
}

// Refcnt returns a frame's current reference count.
func (phys *Physmem_t) Refcnt(p Pa_t) int {
	return int(atomic.LoadInt32(&phys.Pgs[phys.idx(p)].Refcnt))
}

// Refup increments a frame's reference count, e.g. when a fork shares a
// user page copy-on-write.
func (phys *Physmem_t) Refup(p Pa_t) {
	c := atomic.AddInt32(&phys.Pgs[phys.idx(p)].Refcnt, 1)
	if c <= 0 {
		panic("refup: bad refcount")
	}
}

// Refdown decrements a frame's reference count, returning the frame to the
// free list and reporting true when it reaches zero.
func (phys *Physmem_t) Refdown(p Pa_t) bool {
	phys.Lock()
	defer phys.Unlock()
	idx := phys.idx(p)
	c := atomic.AddInt32(&phys.Pgs[idx].Refcnt, -1)
	if c < 0 {
		panic("refdown: bad refcount")
	}
	if c == 0 {
		phys.Pgs[idx].nexti = phys.freei
		phys.freei = idx
		phys.freelen++
		return true
	}
	return false
}

// Refpg_new allocates a zeroed frame with refcount 1. It returns !ok when
// the pool is exhausted, after notifying any out-of-memory waiter on
// oommsg.OomCh (mirroring the teacher's own OOM signaling protocol).
func (phys *Physmem_t) Refpg_new() (Pa_t, []byte, bool) {
	phys.Lock()
	if phys.freei == freeEnd {
		phys.Unlock()
		phys.notifyOOM()
		return 0, nil, false
	}
	idx := phys.freei
	phys.freei = phys.Pgs[idx].nexti
	phys.freelen--
	phys.Pgs[idx].Refcnt = 1
	phys.Unlock()

	p := Pa_t(idx+phys.startn) << PGSHIFT
	b := phys.Bytes(p)
	for i := range b {
		b[i] = 0
	}
	return p, b, true
}

func (phys *Physmem_t) notifyOOM() {
	select {
	case oommsg.OomCh <- oommsg.Oommsg_t{Need: PGSIZE, Resume: make(chan bool, 1)}:
	default:
	}
}

// Bytes returns the byte slice backing frame p.
func (phys *Physmem_t) Bytes(p Pa_t) []byte {
	off := int(util.Rounddown(int(p), PGSIZE))
	return phys.RAM[off : off+PGSIZE]
}

// Pmap returns frame p reinterpreted as a page-table page.
func (phys *Physmem_t) Pmap(p Pa_t) *Pmap_t {
	b := phys.Bytes(p)
	return (*Pmap_t)(unsafe.Pointer(&b[0]))
}

// Free returns the number of free frames, for /dev/stat and diagnostics.
func (phys *Physmem_t) Free() int {
	phys.Lock()
	defer phys.Unlock()
	return int(phys.freelen)
}
