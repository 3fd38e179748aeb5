package scall

import (
	"pageos/defs"
	"pageos/hal"
	"pageos/mem"
	"pageos/proc"
)

// WriteHandler implements SYS_WRITE: copy a.A1 bytes from the user
// pointer a.A0 to the console.
func WriteHandler(console *hal.Console) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		buf, err := copyInUser(p, a.A0, int(a.A1))
		if err != 0 {
			return int32(err)
		}
		console.Write(buf)
		return int32(len(buf))
	}
}

// WriteColoredHandler implements SYS_WRITE_COLORED: same as WRITE, but
// a.A2 names the palette color. The simulated console has no per-byte
// color attribute plane; the color argument is not used, and the text is
// written exactly as WRITE writes it.
func WriteColoredHandler(console *hal.Console) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		buf, err := copyInUser(p, a.A0, int(a.A1))
		if err != 0 {
			return int32(err)
		}
		console.Write(buf)
		_ = defs.Color(a.A2)
		return int32(len(buf))
	}
}

// WritePrintfHandler implements SYS_WRITE_PRINTF: a.A0 is a NUL-
// terminated user format string with no further interpolation performed
// in the kernel (the userspace library expands arguments before trapping
// in, matching the teacher's sys_write_printf).
func WritePrintfHandler(console *hal.Console) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		buf, err := copyInUserCString(p, a.A0)
		if err != 0 {
			return int32(err)
		}
		console.Write(buf)
		return int32(len(buf))
	}
}

// ReadHandler implements the legacy SYS_READ ("read from keyboard"):
// block until one character is available and return it, matching
// original_source's SystemCall::READ.
func ReadHandler(sched *proc.Scheduler, kb *hal.Keyboard) Handler {
	return GetchHandler(sched, kb)
}

// TryGetchHandler implements SYS_TRYGETCH: return the next buffered
// character or -EAGAIN if none is available.
func TryGetchHandler(kb *hal.Keyboard) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		ch, ok := kb.TryGetch()
		if !ok {
			return int32(-defs.EAGAIN)
		}
		return int32(ch)
	}
}

// GetchHandler implements SYS_GETCH: block until a character is
// available, matching spec §6.5's "wake exactly one (FIFO)" delivery via
// the scheduler's input-wait queue.
func GetchHandler(sched *proc.Scheduler, kb *hal.Keyboard) Handler {
	return func(d *Dispatcher, p *proc.Process, a Args) int32 {
		if ch, ok := kb.TryGetch(); ok {
			return int32(ch)
		}
		sched.BlockForInput(p)
		<-p.Resume
		p.Lock()
		ch := p.PendingSyscallReturn
		p.Unlock()
		return int32(ch)
	}
}

func copyInUser(p *proc.Process, uva uint32, n int) ([]byte, defs.Err_t) {
	buf := make([]byte, n)
	off := 0
	for off < n {
		va := uva + uint32(off)
		pa, _, ok := p.Vm.Lookup(va)
		if !ok {
			return nil, -defs.EFAULT
		}
		base := int(va) & (mem.PGSIZE - 1)
		src := mem.Physmem.Bytes(pa)[base:]
		c := copy(buf[off:], src)
		off += c
		if c == 0 {
			break
		}
	}
	return buf[:off], 0
}

func copyInUserCString(p *proc.Process, uva uint32) ([]byte, defs.Err_t) {
	var out []byte
	for i := 0; i < 4096; i++ {
		b, err := copyInUser(p, uva+uint32(i), 1)
		if err != 0 {
			return nil, err
		}
		if len(b) == 0 || b[0] == 0 {
			break
		}
		out = append(out, b[0])
	}
	return out, 0
}
