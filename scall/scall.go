// Package scall implements the synchronous system-call dispatcher: a
// table from syscall number to handler, argument copying through the
// copyInUser/copyOutUser helpers, and the block/resume primitive a handler
// uses to park its calling goroutine until the event it is waiting for
// occurs. Grounded on the teacher's syscall.go dispatch-by-switch idiom
// (sys_* handler functions taking a *Proc_t and raw register arguments),
// adapted from a single giant switch to a registered handler table, with
// the handlers grouped by area in handlers_fs.go, handlers_io.go and
// handlers_proc.go.
package scall

import (
	"pageos/defs"
	"pageos/proc"
)

// Args holds the three general-purpose argument slots spec §6.1
// describes ("call number in the accumulator; three argument slots in
// other general-purpose registers").
type Args struct {
	A0, A1, A2 uint32
}

// Handler implements one syscall. It runs on the calling process's
// goroutine and may block by calling Dispatcher.Park.
type Handler func(d *Dispatcher, p *proc.Process, a Args) int32

// Dispatcher is the syscall number -> Handler table plus the scheduler
// handle handlers need to park/wake a process.
type Dispatcher struct {
	table map[defs.Number]Handler
	sched *proc.Scheduler
}

func MkDispatcher(sched *proc.Scheduler) *Dispatcher {
	return &Dispatcher{table: map[defs.Number]Handler{}, sched: sched}
}

// Register installs the handler for syscall number n, panicking on a
// duplicate registration (a wiring bug, not a runtime condition).
func (d *Dispatcher) Register(n defs.Number, h Handler) {
	if _, ok := d.table[n]; ok {
		panic("scall: duplicate handler registration")
	}
	d.table[n] = h
}

// Dispatch invokes the handler for num, returning -ENOSYS if none is
// registered, matching spec §6.1's INVALID_SYSCALL result.
func (d *Dispatcher) Dispatch(p *proc.Process, num defs.Number, a Args) int32 {
	h, ok := d.table[num]
	if !ok {
		return int32(-defs.ENOSYS)
	}
	return h(d, p, a)
}

// Park blocks the calling goroutine until p.Resume fires, setting p's
// state to WAITING for the duration and returning it to READY (queued via
// sched) on wake, matching spec §5's "a syscall that blocks observes no
// scheduling between setting blocked and the scheduler picking another
// process" by doing the state transition and the channel receive without
// releasing control in between.
func (d *Dispatcher) Park(p *proc.Process, waitingOnPid defs.Pid_t) {
	p.Lock()
	p.State = proc.WAITING
	p.WaitingOnPid = waitingOnPid
	p.Unlock()

	<-p.Resume

	d.sched.AddReady(p)
}
