package elf

import (
	"pageos/defs"
	"pageos/mem"
	"pageos/vm"
)

// Loaded describes the result of mapping an executable image: its entry
// point and the highest address any PT_LOAD segment touched, which seeds
// the process's initial heap break (spec §4.7's "brk starts just past the
// last loaded segment").
type Loaded struct {
	Entry   uint32
	BrkBase uint32
}

// Load validates raw as an ELF32 executable and maps each PT_LOAD segment
// into as, zero-extending Memsz beyond Filesz (bss), per original_source's
// ElfLoader contract and spec §4.7.
func Load(as *vm.Vm_t, raw []byte) (*Loaded, defs.Err_t) {
	h, err := ParseEhdr(raw)
	if err != 0 {
		return nil, err
	}
	if err := Validate(h); err != 0 {
		return nil, err
	}
	phdrs, err := ParsePhdrs(raw, h)
	if err != 0 {
		return nil, err
	}

	var brk uint32
	for _, p := range phdrs {
		if p.Type != PT_LOAD {
			continue
		}
		if p.Flags&(PF_R|PF_W|PF_X) == 0 {
			return nil, -defs.ENOEXEC
		}
		perm := mem.PTE_U
		if p.Flags&PF_W != 0 {
			perm |= mem.PTE_W
		}
		if err := as.Vmadd_anon(p.Vaddr, p.Memsz, perm); err != 0 {
			return nil, err
		}
		if p.Offset+p.Filesz > uint32(len(raw)) {
			return nil, -defs.EINVAL
		}
		if err := copySegment(as, p.Vaddr, raw[p.Offset:p.Offset+p.Filesz]); err != 0 {
			return nil, err
		}
		if top := p.Vaddr + p.Memsz; top > brk {
			brk = top
		}
	}

	brk = (brk + uint32(mem.PGOFFSET)) &^ uint32(mem.PGOFFSET)
	return &Loaded{Entry: h.Entry, BrkBase: brk}, 0
}

func copySegment(as *vm.Vm_t, vaddr uint32, data []byte) defs.Err_t {
	off := 0
	for off < len(data) {
		va := vaddr + uint32(off)
		pa, _, ok := as.Lookup(va)
		if !ok {
			return -defs.EFAULT
		}
		base := int(va) & (mem.PGSIZE - 1)
		dst := mem.Physmem.Bytes(pa)[base:]
		n := copy(dst, data[off:])
		off += n
		if n == 0 {
			break
		}
	}
	return 0
}
