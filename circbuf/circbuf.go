// Package circbuf implements a fixed-size circular byte buffer backing the
// console's keyboard-input ring (spec §4.9).
// Grounded on the teacher's circbuf.Circbuf_t and cross-checked against
// gopher-os's kfmt.ringBuffer, which converges on the same head/tail
// wraparound shape.
package circbuf

import (
	"pageos/defs"
	"pageos/vm"
)

// Circbuf_t is a byte ring buffer. It is not safe for concurrent use by
// design, matching the teacher: callers serialize access themselves (the
// single-goroutine IRQ dispatch loop does so here).
type Circbuf_t struct {
	buf  []uint8
	head int
	tail int
}

// Init allocates a buffer of sz bytes.
func (cb *Circbuf_t) Init(sz int) {
	cb.buf = make([]uint8, sz)
	cb.head, cb.tail = 0, 0
}

func (cb *Circbuf_t) Bufsz() int { return len(cb.buf) }
func (cb *Circbuf_t) Full() bool { return cb.head-cb.tail == len(cb.buf) }
func (cb *Circbuf_t) Empty() bool { return cb.head == cb.tail }
func (cb *Circbuf_t) Used() int  { return cb.head - cb.tail }
func (cb *Circbuf_t) Left() int  { return len(cb.buf) - cb.Used() }

// WriteByte appends a single byte, dropping the oldest byte if full (the
// keyboard ring's overwrite-on-overflow policy).
func (cb *Circbuf_t) WriteByte(b uint8) {
	if cb.Full() {
		cb.tail++
	}
	cb.buf[cb.head%len(cb.buf)] = b
	cb.head++
}

// TryPop removes and returns the oldest byte, for kernel-side (not
// user-copy) consumers like the keyboard IRQ handler.
func (cb *Circbuf_t) TryPop() (uint8, bool) {
	if cb.Empty() {
		return 0, false
	}
	b := cb.buf[cb.tail%len(cb.buf)]
	cb.tail++
	return b, true
}

// Copyin reads from src into the circular buffer, stopping when full.
func (cb *Circbuf_t) Copyin(src vm.Userio_i) (int, defs.Err_t) {
	if cb.Full() {
		return 0, 0
	}
	hi := cb.head % len(cb.buf)
	ti := cb.tail % len(cb.buf)
	c := 0
	if ti <= hi {
		dst := cb.buf[hi:]
		n, err := src.Uioread(dst)
		c += n
		cb.head += n
		if err != 0 || n != len(dst) {
			return c, err
		}
		hi = cb.head % len(cb.buf)
	}
	if hi >= ti {
		return c, 0
	}
	dst := cb.buf[hi:ti]
	n, err := src.Uioread(dst)
	c += n
	cb.head += n
	return c, err
}

// Copyout writes up to max bytes (0 = unbounded) of buffered data to dst.
func (cb *Circbuf_t) Copyout(dst vm.Userio_i, max int) (int, defs.Err_t) {
	if cb.Empty() {
		return 0, 0
	}
	hi := cb.head % len(cb.buf)
	ti := cb.tail % len(cb.buf)
	c := 0
	if hi <= ti {
		src := cb.buf[ti:]
		if max != 0 && max < len(src) {
			src = src[:max]
		}
		n, err := dst.Uiowrite(src)
		c += n
		cb.tail += n
		if err != 0 || n != len(src) {
			return c, err
		}
		if max != 0 {
			max -= n
		}
		ti = cb.tail % len(cb.buf)
	}
	if ti >= hi {
		return c, 0
	}
	src := cb.buf[ti:hi]
	if max != 0 && max < len(src) {
		src = src[:max]
	}
	n, err := dst.Uiowrite(src)
	c += n
	cb.tail += n
	return c, err
}
