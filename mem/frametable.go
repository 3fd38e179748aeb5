package mem

import "sync"

// MaxRefEntries bounds the conservative-sharing table, matching
// original_source's MemoryManager::MAX_REF_ENTRIES. The dense per-frame
// Physpg_t.Refcnt array above already tracks every frame's exact refcount
// for freeing purposes; FrameTable additionally tracks which frames are
// *currently shared by a live fork* so copy-on-write resolution (vm's
// Sys_pgfault) can decide, once the bookkeeping table is full, to fall back
// to always-copy instead of extending sharing further (I1's conservative
// mode, spec §4.1).
type FrameTable struct {
	sync.Mutex
	shared   map[Pa_t]struct{}
	overflow bool
}

// NewFrameTable constructs an empty conservative-sharing table.
func NewFrameTable() *FrameTable {
	return &FrameTable{shared: make(map[Pa_t]struct{}, MaxRefEntries)}
}

const MaxRefEntries = 4096

// MarkShared records that p is now shared copy-on-write between two or more
// address spaces. Once the table is full it stops tracking new entries and
// sets Overflowed, which callers must treat as "assume worst case, copy
// eagerly" rather than trust the (now incomplete) shared set.
func (ft *FrameTable) MarkShared(p Pa_t) {
	ft.Lock()
	defer ft.Unlock()
	if _, ok := ft.shared[p]; ok {
		return
	}
	if len(ft.shared) >= MaxRefEntries {
		ft.overflow = true
		return
	}
	ft.shared[p] = struct{}{}
}

// ClearShared forgets that p is shared, called once its refcount drops to 1.
func (ft *FrameTable) ClearShared(p Pa_t) {
	ft.Lock()
	defer ft.Unlock()
	delete(ft.shared, p)
}

// Overflowed reports whether the bounded table ran out of capacity; callers
// resolving a page fault on a frame not present in the table must assume it
// could be shared when this is true.
func (ft *FrameTable) Overflowed() bool {
	ft.Lock()
	defer ft.Unlock()
	return ft.overflow
}

// IsShared reports whether p is known-shared. When Overflowed is true and p
// is absent, the caller cannot conclude p is unshared.
func (ft *FrameTable) IsShared(p Pa_t) bool {
	ft.Lock()
	defer ft.Unlock()
	_, ok := ft.shared[p]
	return ok
}
