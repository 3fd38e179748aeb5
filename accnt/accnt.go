// Package accnt accumulates per-process CPU accounting, wired into
// proc.Process for the PCB's totalCpuTime/lastRunTime fields. Grounded on
// the teacher's accnt.Accnt_t, unchanged beyond its import path.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"

	"pageos/util"
)

// Accnt_t accumulates per-process accounting information. Both Userns and
// Sysns store runtime in nanoseconds.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	sync.Mutex
}

// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int) { atomic.AddInt64(&a.Userns, int64(delta)) }

// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int) { atomic.AddInt64(&a.Sysns, int64(delta)) }

// Now returns the current time in nanoseconds.
func (a *Accnt_t) Now() int64 { return time.Now().UnixNano() }

// Finish finalizes accounting by adding the time since inttime.
func (a *Accnt_t) Finish(inttime int64) { a.Systadd(int(a.Now() - inttime)) }

// Add merges another accounting record into this one.
func (a *Accnt_t) Add(n *Accnt_t) {
	a.Lock()
	a.Userns += n.Userns
	a.Sysns += n.Sysns
	a.Unlock()
}

// Total returns the combined user+system nanoseconds, the PCB's
// totalCpuTime field.
func (a *Accnt_t) Total() int64 {
	return atomic.LoadInt64(&a.Userns) + atomic.LoadInt64(&a.Sysns)
}

// To_rusage converts the accounting data into a wait4-style rusage byte
// buffer: two timeval pairs (user, then system), seconds then
// microseconds, matching the layout original_source callers expect.
func (a *Accnt_t) To_rusage() []uint8 {
	ret := make([]uint8, 4*8)
	totv := func(nano int64) (int, int) {
		return int(nano / 1e9), int((nano % 1e9) / 1000)
	}
	off := 0
	a.Lock()
	s, us := totv(a.Userns)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	off += 8
	s, us = totv(a.Sysns)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	a.Unlock()
	return ret
}
