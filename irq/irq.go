// Package irq implements the interrupt/exception dispatch core: the
// vector table, the CoW/fault routing that calls into vm.Sys_pgfault, and
// the halt-vs-terminate policy from spec §7's error-handling design.
// Grounded on the trap-dispatch idiom surveyed in
// other_examples/justanotherdot-biscuit's kernel/main.go (trapstub,
// runtime.IRQwake/IRQsched: decode trap number, wake or reschedule),
// adapted away from the runtime-injected-trapstub mechanism (unavailable
// in stock Go) to an explicit Core.Dispatch call driven by a single
// goroutine, matching the Non-goals' single-CPU constraint.
package irq

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"pageos/defs"
	"pageos/hal"
	"pageos/proc"
	"pageos/vm"
)

// Vector numbers for the x86 exceptions spec §7 names explicitly.
const (
	VecDivZero   = 0
	VecDebug     = 1
	VecNMI       = 2
	VecBreakpoint = 3
	VecOverflow  = 4
	VecBoundRange = 5
	VecInvalidOp = 6
	VecDoubleFault = 8
	VecGPFault   = 13
	VecPageFault = 14

	// IRQs are remapped past the exception vectors, the standard PIC
	// offset of 32.
	IRQBase     = 32
	IRQTimer    = IRQBase + 0
	IRQKeyboard = IRQBase + 1
)

// Frame is a simulated trap frame: the vector, any hardware error code,
// the faulting address (page faults), and the faulting instruction bytes
// (used for diagnostic disassembly).
type Frame struct {
	Vector    int
	ErrCode   uint32
	Eip       uint32
	FaultAddr uint32
	KernelMode bool
	Code      []byte // bytes at Eip, for disassembly
}

// HaltError is returned by Dispatch when the kernel must halt rather than
// continue, matching spec §7's "halt over silent corruption" policy for
// unrecoverable kernel-mode exceptions.
type HaltError struct {
	Reason string
}

func (h *HaltError) Error() string { return "halt: " + h.Reason }

// Core holds the collaborators the dispatch loop drives: the scheduler,
// process table, console, keyboard, and timer.
type Core struct {
	Sched    *proc.Scheduler
	Table    *proc.Table
	Console  *hal.Console
	Keyboard *hal.Keyboard
	Timer    *hal.Timer
}

func MkCore(sched *proc.Scheduler, table *proc.Table, console *hal.Console, kb *hal.Keyboard, timer *hal.Timer) *Core {
	return &Core{Sched: sched, Table: table, Console: console, Keyboard: kb, Timer: timer}
}

// Dispatch routes one trap frame for the given process (nil for traps
// taken in kernel context, e.g. IRQs with no current user process),
// matching spec §7's taxonomy of exception outcomes.
func (c *Core) Dispatch(f *Frame, p *proc.Process) error {
	switch f.Vector {
	case IRQTimer:
		c.handleTimer()
		return nil
	case IRQKeyboard:
		return nil // scan-code decode happens before Dispatch is called
	case VecPageFault:
		return c.handlePageFault(f, p)
	case VecBreakpoint, VecOverflow, VecBoundRange:
		// Recoverable: skip the two-byte software interrupt and continue.
		f.Eip += 2
		return nil
	case VecInvalidOp:
		if !f.KernelMode {
			c.diagnose(f)
			return c.terminate(p, -int32(defs.EINVAL))
		}
		return &HaltError{Reason: "invalid opcode in kernel mode"}
	case VecGPFault:
		c.diagnose(f)
		if !f.KernelMode {
			return c.terminate(p, -int32(defs.EFAULT))
		}
		return &HaltError{Reason: "general protection fault in kernel mode"}
	case VecDoubleFault:
		return &HaltError{Reason: "double fault"}
	default:
		if f.KernelMode {
			return &HaltError{Reason: fmt.Sprintf("unhandled kernel-mode exception %d", f.Vector)}
		}
		return c.terminate(p, -int32(defs.EINVAL))
	}
}

func (c *Core) handleTimer() {
	now := c.Timer.Tick()
	c.Sched.Tick(now)
}

func (c *Core) handlePageFault(f *Frame, p *proc.Process) error {
	if p == nil {
		return &HaltError{Reason: "page fault with no running process"}
	}
	writeFault := f.ErrCode&0x2 != 0
	err := p.Vm.Sys_pgfault(f.FaultAddr, writeFault)
	if err == 0 {
		return nil
	}
	if f.KernelMode {
		return &HaltError{Reason: fmt.Sprintf("page fault in kernel mode at %#x", f.FaultAddr)}
	}
	c.diagnose(f)
	return c.terminate(p, -int32(err))
}

// terminate routes a fatal fault through the same ZOMBIE->TERMINATED
// exit/wake path SYS_EXIT and SYS_KILL use (proc.Table.Exit), so a parent
// blocked in WAIT on the faulting process is woken and its status
// delivered instead of hanging forever.
func (c *Core) terminate(p *proc.Process, status int32) error {
	if p == nil {
		return &HaltError{Reason: "fatal exception with no process to terminate"}
	}
	c.Table.Exit(p, status)
	return nil
}

// diagnose disassembles the faulting instruction for the console
// diagnostic message, exercising golang.org/x/arch/x86/x86asm (SPEC_FULL.md
// DOMAIN STACK).
func (c *Core) diagnose(f *Frame) {
	if len(f.Code) == 0 {
		return
	}
	inst, err := x86asm.Decode(f.Code, 32)
	if err != nil {
		c.Console.Printf("fault at %#x: <undecodable: %v>\n", f.Eip, err)
		return
	}
	c.Console.Printf("fault at %#x: %s\n", f.Eip, inst.String())
}
