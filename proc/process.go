// Package proc implements the process control block, process table, and
// priority scheduler. Grounded on original_source/include/core/process.hpp's
// Process/ProcessContext/ProcessManager layout, adapted from a static
// MAX_PROCESSES array of PCBs with manual context-switch assembly to Go's
// natural model: one goroutine per process, a PCB holding scheduling and
// syscall-resume state instead of saved registers, and resume/blocking done
// with channels instead of a hand-rolled stack swap.
package proc

import (
	"sync"

	"pageos/accnt"
	"pageos/defs"
	"pageos/fd"
	"pageos/ustr"
	"pageos/vm"
)

// NOFILE is the size of a process's file descriptor table, matching
// limits.Syslimit's per-process fd budget referenced in SPEC_FULL.md.
const NOFILE = 256

// State mirrors original_source's ProcessState enum.
type State uint8

const (
	READY State = iota
	RUNNING
	BLOCKED
	SLEEPING
	ZOMBIE
	TERMINATED
	WAITING
)

// DefaultTimeSlice is the scheduling quantum in timer ticks, matching
// ProcessManager::DEFAULT_TIME_SLICE.
const DefaultTimeSlice = 10

// MaxPriority is the lowest-priority level (0 is highest).
const MaxPriority = 10

// AgingInterval is the number of scheduler ticks between starvation-
// prevention aging passes, matching ProcessManager::AGING_INTERVAL.
const AgingInterval = 100

// WaitAnyChild is the PID sentinel meaning "any child", matching
// original_source's WAIT_ANY_CHILD.
const WaitAnyChild defs.Pid_t = -1

// ProcessContext is the saved CPU register snapshot taken when a process
// traps into the kernel via a syscall or fault, matching
// original_source's packed ProcessContext. Nothing in this kernel performs
// a manual assembly context switch (Go's scheduler owns that), but the
// fields are threaded through fork/exec so a debugger dump (PS syscall,
// /dev/prof) sees a plausible register snapshot.
type ProcessContext struct {
	Eax, Ebx, Ecx, Edx uint32
	Esi, Edi, Esp, Ebp uint32
	Eip, Eflags        uint32
}

// Process is the process control block.
type Process struct {
	sync.Mutex

	Pid      defs.Pid_t
	Name     string
	State    State
	Priority uint32
	TimeUsed uint32

	Context ProcessContext
	Vm      *vm.Vm_t

	HeapStart uint32
	HeapEnd   uint32

	Fds [NOFILE]*fd.Fd_t
	Cwd *fd.Cwd_t

	SpawnArg ustr.Ustr

	// Saved kernel-stack position a blocked syscall resumes from. In this
	// goroutine-per-process model that position is simply "receive from
	// Resume", but the field is kept to mirror savedSyscallEsp/
	// pendingSyscallReturn's role in SPEC_FULL.md's scall dispatcher.
	PendingSyscallReturn int

	WaitingOnPid      defs.Pid_t
	WaitStatusUserPtr uint32
	ParentPid         defs.Pid_t
	Children          []defs.Pid_t

	PendingChildPid    defs.Pid_t
	PendingChildStatus int32

	ExitStatus   int32
	HasBeenWaited bool

	CreationTime int64
	Age          uint32
	LastRunTime  int64

	Accnt accnt.Accnt_t

	// Killed folds the teacher's separate per-goroutine tinfo kill-state
	// directly into the PCB: a process asked to die finishes its current
	// syscall, then exits instead of returning to user mode.
	Killed bool

	// Resume wakes a goroutine parked mid-syscall (e.g. in wait4 or a
	// blocking read) once the event it is waiting for occurs.
	Resume chan struct{}

	// qnext/qprev thread this PCB through whichever intrusive queue
	// (a ready queue or the input-wait queue; the sleep queue is a plain
	// slice) currently owns it, matching the teacher's next/prev
	// queue pointers instead of allocating a separate queue node.
	qnext, qprev *Process
	sleepUntil   int64
}

// Mkprocess allocates a PCB in the READY state.
func Mkprocess(pid defs.Pid_t, name string, priority uint32, as *vm.Vm_t, now int64) *Process {
	return &Process{
		Pid:          pid,
		Name:         name,
		State:        READY,
		Priority:     priority,
		Vm:           as,
		ParentPid:    0,
		CreationTime: now,
		LastRunTime:  now,
		Resume:       make(chan struct{}, 1),
	}
}

// Wake signals a parked goroutine to resume, matching
// ProcessManager::wake_up_process.
func (p *Process) Wake() {
	select {
	case p.Resume <- struct{}{}:
	default:
	}
}
