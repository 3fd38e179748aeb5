package vm

import (
	"pageos/defs"
	"pageos/mem"
)

// Userio_i abstracts a source/sink for a syscall argument buffer, so the
// same read/write path serves real user-space addresses (Userbuf_t) and
// plain in-kernel byte slices (Fakeubuf_t), matching the teacher's Userbuf_t/
// Fakeubuf_t split in vm/userbuf.go.
type Userio_i interface {
	Uioread(dst []uint8) (int, defs.Err_t)
	Uiowrite(src []uint8) (int, defs.Err_t)
	Remain() int
	Totalsz() int
}

// Userbuf_t reads/writes a run of a process's user virtual address space,
// crossing page boundaries and resolving each page through the address
// space's page table, copying against the simulated RAM arena.
type Userbuf_t struct {
	vm     *Vm_t
	userva uint32
	len    int
	off    int
}

// Uinit points a Userbuf_t at [va, va+length) in vm.
func (ub *Userbuf_t) Uinit(vm *Vm_t, va uint32, length int) {
	ub.vm = vm
	ub.userva = va
	ub.len = length
	ub.off = 0
}

func (ub *Userbuf_t) Remain() int  { return ub.len - ub.off }
func (ub *Userbuf_t) Totalsz() int { return ub.len }

// tx copies min(len(buf), Remain()) bytes between buf and user memory,
// crossing page boundaries one frame at a time. On a fault mid-transfer it
// returns the partial count so the caller can decide whether to retry.
func (ub *Userbuf_t) tx(buf []uint8, towrite bool) (int, defs.Err_t) {
	did := 0
	for len(buf) > 0 && ub.off != ub.len {
		va := ub.userva + uint32(ub.off)
		pa, _, ok := ub.vm.Lookup(va)
		if !ok {
			return did, -defs.EFAULT
		}
		base := int(va) & (mem.PGSIZE - 1)
		seg := mem.Physmem.Bytes(pa)[base:]
		left := ub.len - ub.off
		if len(seg) > left {
			seg = seg[:left]
		}
		var c int
		if towrite {
			c = copy(seg, buf)
		} else {
			c = copy(buf, seg)
		}
		buf = buf[c:]
		ub.off += c
		did += c
		if c == 0 {
			break
		}
	}
	return did, 0
}

// Uioread copies from user memory into dst.
func (ub *Userbuf_t) Uioread(dst []uint8) (int, defs.Err_t) { return ub.tx(dst, false) }

// Uiowrite copies src into user memory.
func (ub *Userbuf_t) Uiowrite(src []uint8) (int, defs.Err_t) { return ub.tx(src, true) }

// Fakeubuf_t implements Userio_i directly over an in-kernel byte slice, for
// callers that have no user address space to translate through.
type Fakeubuf_t struct {
	data []uint8
	off  int
}

// Fake_init points a Fakeubuf_t at data.
func (fb *Fakeubuf_t) Fake_init(data []uint8) {
	fb.data = data
	fb.off = 0
}

func (fb *Fakeubuf_t) Remain() int  { return len(fb.data) - fb.off }
func (fb *Fakeubuf_t) Totalsz() int { return len(fb.data) }

func (fb *Fakeubuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, fb.data[fb.off:])
	fb.off += n
	return n, 0
}

func (fb *Fakeubuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(fb.data[fb.off:], src)
	fb.off += n
	return n, 0
}
